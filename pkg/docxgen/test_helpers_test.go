package docxgen

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-docxgen/pkg/docxgen/render"
	docxml "github.com/benjaminschreck/go-docxgen/pkg/docxgen/xml"
)

const testNamespaces = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

const testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const testPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const testDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const testStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`

// testPart is an extra entry for newTestDocx
type testPart struct {
	name string
	data string
}

// newTestDocx builds a minimal package around body, the inner XML of <w:body>.
// Extra parts are appended after the standard ones; an extra part with the
// name of a standard one replaces it in place.
func newTestDocx(t *testing.T, body string, extra ...testPart) []byte {
	t.Helper()

	parts := []testPart{
		{contentTypesPartName, testContentTypes},
		{"_rels/.rels", testPackageRels},
		{documentPartName, documentXML(body)},
		{"word/_rels/document.xml.rels", testDocumentRels},
		{"word/styles.xml", testStyles},
	}
	for _, e := range extra {
		replaced := false
		for i := range parts {
			if parts[i].name == e.name {
				parts[i] = e
				replaced = true
			}
		}
		if !replaced {
			parts = append(parts, e)
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document ` + testNamespaces + `><w:body>` + body + `<w:sectPr/></w:body></w:document>`
}

func headerXML(inner string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:hdr ` + testNamespaces + `>` + inner + `</w:hdr>`
}

func para(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func row(cells ...string) string {
	var b strings.Builder
	b.WriteString("<w:tr>")
	for _, c := range cells {
		b.WriteString("<w:tc>" + para(c) + "</w:tc>")
	}
	b.WriteString("</w:tr>")
	return b.String()
}

func table(rows ...string) string {
	return `<w:tbl><w:tblPr/>` + strings.Join(rows, "") + `</w:tbl>`
}

// readEntries returns the entry names of a package in archive order
func readEntries(t *testing.T, docx []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	require.NoError(t, err)
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names
}

func readPart(t *testing.T, docx []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func parsePart(t *testing.T, docx []byte, name string) *docxml.Document {
	t.Helper()
	doc, err := docxml.Parse([]byte(readPart(t, docx, name)))
	require.NoError(t, err)
	return doc
}

// paragraphTexts returns the text of every top-level body paragraph
func paragraphTexts(t *testing.T, docx []byte) []string {
	t.Helper()
	body := parsePart(t, docx, documentPartName).Root.Find("w:body")
	require.NotNil(t, body)
	var out []string
	for _, p := range body.Elements("w:p") {
		out = append(out, render.ParagraphText(p))
	}
	return out
}

// tableRows returns the cell texts of every row of the first table of the body
func tableRows(t *testing.T, docx []byte) [][]string {
	t.Helper()
	tbl := parsePart(t, docx, documentPartName).Root.Find("w:body", "w:tbl")
	require.NotNil(t, tbl)
	var out [][]string
	for _, tr := range tbl.Elements("w:tr") {
		var cells []string
		for _, tc := range tr.Elements("w:tc") {
			cells = append(cells, cellText(tc))
		}
		out = append(out, cells)
	}
	return out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// testEngine returns an engine with caching off and the given options applied
func testEngine(opts ...Option) *Engine {
	return NewWithOptions(append([]Option{WithConfig(DefaultConfig()), WithCache(0)}, opts...)...)
}
