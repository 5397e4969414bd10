package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// Document is a parsed XML part: the root element plus whatever surrounds it
// (declaration, comments, whitespace).
type Document struct {
	Prolog []*Node
	Root   *Node
	Epilog []*Node
}

// Parse reads an XML part into a Document. Syntax errors, mismatched end tags
// and missing or duplicate root elements are reported as *xml.SyntaxError.
func Parse(data []byte) (*Document, error) {
	doc := &Document{}
	var stack []*Node

	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = true
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := d.InputPos()

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && doc.Root != nil {
				return nil, &xml.SyntaxError{Msg: "multiple root elements", Line: line}
			}
			node := &Node{Kind: ElementNode, Prefix: t.Name.Space, Local: t.Name.Local}
			if len(t.Attr) > 0 {
				node.Attrs = make([]Attr, len(t.Attr))
				for i, a := range t.Attr {
					node.Attrs[i] = Attr{Prefix: a.Name.Space, Local: a.Name.Local, Value: a.Value}
				}
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				node.Parent = parent
				parent.Children = append(parent.Children, node)
			} else {
				doc.Root = node
			}
			node.Space = resolveSpace(node, node.Prefix)
			stack = append(stack, node)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, &xml.SyntaxError{Msg: "unexpected end element </" + rawName(t.Name) + ">", Line: line}
			}
			top := stack[len(stack)-1]
			if top.Prefix != t.Name.Space || top.Local != t.Name.Local {
				return nil, &xml.SyntaxError{
					Msg:  fmt.Sprintf("element <%s> closed by </%s>", top.Name(), rawName(t.Name)),
					Line: line,
				}
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			text := string(t)
			if len(stack) == 0 {
				if strings.TrimSpace(text) != "" {
					return nil, &xml.SyntaxError{Msg: "character data outside root element", Line: line}
				}
				doc.appendOutside(NewText(text))
				continue
			}
			parent := stack[len(stack)-1]
			if n := len(parent.Children); n > 0 && parent.Children[n-1].Kind == TextNode {
				parent.Children[n-1].Text += text
				continue
			}
			parent.Children = append(parent.Children, &Node{Kind: TextNode, Text: text, Parent: parent})

		case xml.Comment:
			doc.appendMisc(stack, &Node{Kind: CommentNode, Text: string(t)})
		case xml.ProcInst:
			doc.appendMisc(stack, &Node{Kind: ProcInstNode, Target: t.Target, Text: string(t.Inst)})
		case xml.Directive:
			doc.appendMisc(stack, &Node{Kind: DirectiveNode, Text: string(t)})
		}
	}

	if len(stack) > 0 {
		line, _ := d.InputPos()
		return nil, &xml.SyntaxError{Msg: "unexpected EOF: unclosed element <" + stack[len(stack)-1].Name() + ">", Line: line}
	}
	if doc.Root == nil {
		return nil, &xml.SyntaxError{Msg: "no root element", Line: 1}
	}
	return doc, nil
}

func (doc *Document) appendOutside(n *Node) {
	if doc.Root == nil {
		doc.Prolog = append(doc.Prolog, n)
	} else {
		doc.Epilog = append(doc.Epilog, n)
	}
}

func (doc *Document) appendMisc(stack []*Node, n *Node) {
	if len(stack) == 0 {
		doc.appendOutside(n)
		return
	}
	parent := stack[len(stack)-1]
	n.Parent = parent
	parent.Children = append(parent.Children, n)
}

func resolveSpace(n *Node, prefix string) string {
	if prefix == "xml" {
		return xmlNamespace
	}
	uri, _ := n.LookupNamespace(prefix)
	return uri
}

func rawName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// ParseFragment parses a snippet of markup that may use any prefix declared in
// scope at the given node. The returned nodes are detached.
func ParseFragment(src string, scope *Node) ([]*Node, error) {
	var b strings.Builder
	b.WriteString("<fragment")
	if scope != nil {
		for _, a := range scope.NamespaceDecls() {
			b.WriteByte(' ')
			b.WriteString(a.Name())
			b.WriteString(`="`)
			b.WriteString(attrEscaper.Replace(a.Value))
			b.WriteByte('"')
		}
	}
	b.WriteByte('>')
	b.WriteString(src)
	b.WriteString("</fragment>")

	doc, err := Parse([]byte(b.String()))
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	nodes := append([]*Node(nil), doc.Root.Children...)
	for _, n := range nodes {
		n.Parent = nil
	}
	doc.Root.Children = nil
	return nodes, nil
}

// Clone returns a deep copy of the document
func (doc *Document) Clone() *Document {
	c := &Document{Root: doc.Root.Clone()}
	for _, n := range doc.Prolog {
		c.Prolog = append(c.Prolog, n.Clone())
	}
	for _, n := range doc.Epilog {
		c.Epilog = append(c.Epilog, n.Clone())
	}
	return c
}

// EnsureNamespace declares prefix on the root element unless it is already
// declared there. It reports an error when the prefix is bound to another URI.
func (doc *Document) EnsureNamespace(prefix, uri string) error {
	if existing, ok := doc.Root.LookupNamespace(prefix); ok {
		if existing != uri {
			return fmt.Errorf("prefix %q already bound to %s", prefix, existing)
		}
		return nil
	}
	doc.Root.Attrs = append(doc.Root.Attrs, Attr{Prefix: "xmlns", Local: prefix, Value: uri})
	return nil
}
