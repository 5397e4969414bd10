// Package xml provides a mutable element tree for the XML parts of a DOCX package.
//
// DOCX parts such as word/document.xml carry many namespaces and vendor extensions
// (w14, wp14, mc:Ignorable, ...) that typed structs would silently drop. This package
// keeps every element, attribute and prefix exactly as it was read so that a part can
// be edited in place and written back without losing markup it does not understand.
//
// # Structure Organization
//
//   - node.go: Node, Attr and the tree mutation helpers (insert, remove, replace, clone)
//   - parse.go: Parse and ParseFragment, built on encoding/xml raw tokens
//   - write.go: serialization back to bytes
//
// # Usage
//
//	doc, err := xml.Parse(content)
//	if err != nil {
//	    return err
//	}
//	for _, row := range doc.Root.FindAll("w:tr") {
//	    clone := row.Clone()
//	    row.InsertAfter(clone)
//	}
//	out := doc.Bytes()
//
// Element names are matched by their qualified name as written in the source
// ("w:tr"), while Node.Space carries the resolved namespace URI for callers that
// need to check the vocabulary of a part.
package xml
