// Command docxgen renders DOCX templates from JSON, SQL or command line data.
package main

import "os"

func main() {
	os.Exit(Execute())
}
