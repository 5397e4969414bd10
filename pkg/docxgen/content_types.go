package docxgen

import (
	"encoding/xml"
	"fmt"
	"strings"

	docxml "github.com/benjaminschreck/go-docxgen/pkg/docxgen/xml"
)

// ContentTypes is the typed view of [Content_Types].xml
type ContentTypes struct {
	XMLName   xml.Name              `xml:"Types"`
	Defaults  []ContentTypeDefault  `xml:"Default"`
	Overrides []ContentTypeOverride `xml:"Override"`
}

// ContentTypeDefault maps a file extension to a content type
type ContentTypeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypeOverride maps a single part to a content type
type ContentTypeOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

var extensionContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"rels": "application/vnd.openxmlformats-package.relationships+xml",
	"xml":  "application/xml",
}

// contentTypeSet is the editable [Content_Types].xml part
type contentTypeSet struct {
	doc     *docxml.Document
	known   map[string]bool
	added   []string
	changed bool
}

func newContentTypeSet(data []byte) (*contentTypeSet, error) {
	doc, err := docxml.Parse(data)
	if err != nil {
		return nil, parseErrorFor(contentTypesPartName, err)
	}
	if doc.Root.Local != "Types" {
		return nil, &ParseError{Part: contentTypesPartName, Kind: UnsupportedSchema, Message: "root element is <" + doc.Root.Name() + ">, expected <Types>"}
	}
	cs := &contentTypeSet{doc: doc, known: make(map[string]bool)}
	for _, def := range doc.Root.Elements() {
		if def.Local != "Default" {
			continue
		}
		if ext, ok := def.Attr("Extension"); ok {
			cs.known[strings.ToLower(ext)] = true
		}
	}
	return cs, nil
}

func (cs *contentTypeSet) clone() *contentTypeSet {
	known := make(map[string]bool, len(cs.known))
	for k, v := range cs.known {
		known[k] = v
	}
	return &contentTypeSet{doc: cs.doc.Clone(), known: known}
}

// ensureDefault registers a Default entry for ext unless one exists
func (cs *contentTypeSet) ensureDefault(ext string) {
	ext = strings.ToLower(ext)
	if cs.known[ext] {
		return
	}
	contentType, ok := extensionContentTypes[ext]
	if !ok {
		contentType = "image/" + ext
	}
	el := docxml.NewElement(cs.doc.Root.Prefix+prefixSep(cs.doc.Root.Prefix)+"Default",
		docxml.A("Extension", ext), docxml.A("ContentType", contentType))

	// Defaults precede Overrides in the schema.
	var firstOverride *docxml.Node
	for _, c := range cs.doc.Root.Elements() {
		if c.Local == "Override" {
			firstOverride = c
			break
		}
	}
	if firstOverride != nil {
		firstOverride.InsertBefore(el)
	} else {
		cs.doc.Root.AppendChild(el)
	}
	cs.known[ext] = true
	cs.added = append(cs.added, ext)
	cs.changed = true
}

func (cs *contentTypeSet) Bytes() []byte {
	return cs.doc.Bytes()
}

// parseContentTypes decodes [Content_Types].xml into typed entries
func parseContentTypes(data []byte) (*ContentTypes, error) {
	var ct ContentTypes
	if err := xml.Unmarshal(data, &ct); err != nil {
		return nil, fmt.Errorf("failed to parse content types: %w", err)
	}
	return &ct, nil
}
