package xml

import (
	"bytes"
	"io"
	"strings"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"\n", "&#xA;",
		"\r", "&#xD;",
		"\t", "&#x9;",
	)
)

// Bytes serializes the document.
func (doc *Document) Bytes() []byte {
	var buf bytes.Buffer
	doc.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo serializes the document to w. Prefixes and attribute order are kept
// as parsed; elements without children are written self-closed.
func (doc *Document) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, n := range doc.Prolog {
		writeNode(&buf, n)
	}
	if doc.Root != nil {
		writeNode(&buf, doc.Root)
	}
	for _, n := range doc.Epilog {
		writeNode(&buf, n)
	}
	return buf.WriteTo(w)
}

// String serializes a single node and its subtree
func (n *Node) String() string {
	var buf bytes.Buffer
	writeNode(&buf, n)
	return buf.String()
}

func writeNode(buf *bytes.Buffer, n *Node) {
	switch n.Kind {
	case TextNode:
		buf.WriteString(textEscaper.Replace(n.Text))
	case CommentNode:
		buf.WriteString("<!--")
		buf.WriteString(n.Text)
		buf.WriteString("-->")
	case ProcInstNode:
		buf.WriteString("<?")
		buf.WriteString(n.Target)
		if n.Text != "" {
			if !strings.ContainsAny(n.Text[:1], " \t\r\n") {
				buf.WriteByte(' ')
			}
			buf.WriteString(n.Text)
		}
		buf.WriteString("?>")
	case DirectiveNode:
		buf.WriteString("<!")
		buf.WriteString(n.Text)
		buf.WriteByte('>')
	case ElementNode:
		name := n.Name()
		buf.WriteByte('<')
		buf.WriteString(name)
		for _, a := range n.Attrs {
			buf.WriteByte(' ')
			buf.WriteString(a.Name())
			buf.WriteString(`="`)
			buf.WriteString(attrEscaper.Replace(a.Value))
			buf.WriteByte('"')
		}
		if len(n.Children) == 0 {
			buf.WriteString("/>")
			return
		}
		buf.WriteByte('>')
		for _, c := range n.Children {
			writeNode(buf, c)
		}
		buf.WriteString("</")
		buf.WriteString(name)
		buf.WriteByte('>')
	}
}
