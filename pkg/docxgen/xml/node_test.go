package xml

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body><w:p><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">a &amp; b &lt;c&gt;</w:t></w:r></w:p><!-- note --><w:tbl><w:tr><w:tc><w:p><w:r><w:t>1</w:t></w:r></w:p></w:tc></w:tr><w:tr><w:tc><w:p><w:r><w:t>2</w:t></w:r></w:p></w:tc></w:tr></w:tbl><w:sectPr w:rsidR="00A1"/></w:body></w:document>`

func TestParse_RoundTrip(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, sampleDocument, string(doc.Bytes()))
}

func TestParse_ResolvesNamespaces(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, "document", doc.Root.Local)
	assert.Equal(t, "w", doc.Root.Prefix)
	assert.Equal(t, "http://schemas.openxmlformats.org/wordprocessingml/2006/main", doc.Root.Space)

	text := doc.Root.FindAll("w:t")[0]
	space, ok := text.Attr("xml:space")
	require.True(t, ok)
	assert.Equal(t, "preserve", space)
	assert.Equal(t, "a & b <c>", text.TextContent())
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"mismatched end tag", `<w:document xmlns:w="urn:w"><w:body></w:document>`},
		{"unclosed element", `<a><b></b>`},
		{"empty input", ``},
		{"two roots", `<a/><b/>`},
		{"text outside root", `<a/>junk`},
		{"stray end tag", `<a/></a>`},
		{"bad syntax", `<a attr=unquoted/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			var syntaxErr *xml.SyntaxError
			assert.ErrorAs(t, err, &syntaxErr)
		})
	}
}

func TestNode_Clone(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)

	row := doc.Root.FindAll("w:tr")[0]
	clone := row.Clone()

	assert.Nil(t, clone.Parent)
	assert.Equal(t, row.String(), clone.String())

	clone.FindAll("w:t")[0].Children[0].Text = "changed"
	assert.Equal(t, "1", row.TextContent())
	assert.Equal(t, "changed", clone.TextContent())

	for _, c := range clone.Children {
		assert.Same(t, clone, c.Parent)
	}
}

func TestNode_Mutation(t *testing.T) {
	doc, err := Parse([]byte(`<t><r>1</r><r>2</r><r>3</r></t>`))
	require.NoError(t, err)
	rows := doc.Root.Elements("r")
	require.Len(t, rows, 3)

	a := NewElement("r")
	a.AppendChild(NewText("a"))
	b := NewElement("r")
	b.AppendChild(NewText("b"))

	require.NoError(t, rows[1].InsertAfter(a, b))
	assert.Equal(t, `<t><r>1</r><r>2</r><r>a</r><r>b</r><r>3</r></t>`, string(doc.Bytes()))

	require.NoError(t, rows[1].ReplaceWith())
	assert.Equal(t, `<t><r>1</r><r>a</r><r>b</r><r>3</r></t>`, string(doc.Bytes()))
	assert.Nil(t, rows[1].Parent)

	require.NoError(t, rows[0].InsertBefore(NewElement("h")))
	assert.Equal(t, `<t><h/><r>1</r><r>a</r><r>b</r><r>3</r></t>`, string(doc.Bytes()))

	b.Remove()
	assert.Equal(t, `<t><h/><r>1</r><r>a</r><r>3</r></t>`, string(doc.Bytes()))

	assert.Error(t, NewElement("x").InsertAfter(NewElement("y")))
	assert.Error(t, rows[2].InsertAfter(rows[2]))
}

func TestNode_Path(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)

	texts := doc.Root.FindAll("w:t")
	require.Len(t, texts, 3)
	assert.Equal(t, "body[1]/p[1]/r[1]/t[1]", texts[0].Path())
	assert.Equal(t, "body[1]/tbl[1]/tr[2]/tc[1]/p[1]/r[1]/t[1]", texts[2].Path())
}

func TestNode_FindAndAncestor(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)

	assert.NotNil(t, doc.Root.Find("w:body", "w:tbl", "w:tr"))
	assert.Nil(t, doc.Root.Find("w:body", "w:missing"))

	text := doc.Root.FindAll("w:t")[1]
	tbl := text.Ancestor("w:tbl")
	require.NotNil(t, tbl)
	assert.True(t, text.IsDescendantOf(tbl))
	assert.Nil(t, doc.Root.FindAll("w:t")[0].Ancestor("w:tbl"))
}

func TestParseFragment(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)
	require.NoError(t, doc.EnsureNamespace("wp", "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"))

	body := doc.Root.Find("w:body")
	nodes, err := ParseFragment(`<w:r><w:drawing><wp:inline r:id="rId4"/></w:drawing></w:r>`, body)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	run := nodes[0]
	assert.Nil(t, run.Parent)
	assert.Equal(t, "http://schemas.openxmlformats.org/wordprocessingml/2006/main", run.Space)
	inline := run.FindAll("wp:inline")[0]
	assert.Equal(t, "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing", inline.Space)

	_, err = ParseFragment(`<w:r>`, body)
	assert.Error(t, err)
}

func TestDocument_EnsureNamespace(t *testing.T) {
	doc, err := Parse([]byte(`<w:document xmlns:w="urn:w"/>`))
	require.NoError(t, err)

	require.NoError(t, doc.EnsureNamespace("r", "urn:r"))
	require.NoError(t, doc.EnsureNamespace("r", "urn:r"))
	assert.Equal(t, `<w:document xmlns:w="urn:w" xmlns:r="urn:r"/>`, string(doc.Bytes()))

	assert.Error(t, doc.EnsureNamespace("w", "urn:other"))
}

func TestAttrEscaping(t *testing.T) {
	n := NewElement("w:t", A("w:val", "a\"b&c\n"))
	n.AppendChild(NewText("x < y"))
	assert.Equal(t, `<w:t w:val="a&quot;b&amp;c&#xA;">x &lt; y</w:t>`, n.String())
}
