package docxgen

import (
	"encoding/xml"
	"errors"
	"strconv"

	docxml "github.com/benjaminschreck/go-docxgen/pkg/docxgen/xml"
)

const wordprocessingMLNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// Root elements of parts that may carry placeholders
var templateRoots = map[string]bool{
	"document": true,
	"hdr":      true,
	"ftr":      true,
}

// parseErrorFor converts an XML decoding failure into a ParseError
func parseErrorFor(part string, err error) error {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ParseError{Part: part, Kind: Malformed, Line: syntaxErr.Line, Message: syntaxErr.Msg, Cause: err}
	}
	return &ParseError{Part: part, Kind: Malformed, Message: err.Error(), Cause: err}
}

// parseTemplatePart parses a body, header or footer part and checks that it is
// WordprocessingML.
func parseTemplatePart(name string, data []byte) (*docxml.Document, error) {
	doc, err := docxml.Parse(data)
	if err != nil {
		return nil, parseErrorFor(name, err)
	}
	if doc.Root.Space != wordprocessingMLNS || !templateRoots[doc.Root.Local] {
		space := doc.Root.Space
		if space == "" {
			space = "no namespace"
		}
		return nil, &ParseError{
			Part:    name,
			Kind:    UnsupportedSchema,
			Message: "root element <" + doc.Root.Local + "> in " + space + " is not a WordprocessingML document, header or footer",
		}
	}
	return doc, nil
}

// maxDocPrID returns the highest numeric wp:docPr id in the tree
func maxDocPrID(root *docxml.Node) int {
	max := 0
	root.Walk(func(n *docxml.Node) bool {
		if n.Kind == docxml.ElementNode && n.Local == "docPr" {
			if v, ok := n.Attr("id"); ok {
				if id, err := strconv.Atoi(v); err == nil && id > max {
					max = id
				}
			}
		}
		return true
	})
	return max
}

// partKind names a template part for logs and metrics
func partKind(name string) string {
	switch {
	case name == documentPartName:
		return "document"
	case headerFooterRegex.MatchString(name):
		return headerFooterRegex.FindStringSubmatch(name)[1]
	default:
		return "other"
	}
}
