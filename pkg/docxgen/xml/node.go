package xml

import (
	"fmt"
	"strings"
)

// Kind identifies what a Node holds
type Kind int

const (
	ElementNode Kind = iota
	TextNode
	CommentNode
	ProcInstNode
	DirectiveNode
)

func (k Kind) String() string {
	switch k {
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	case CommentNode:
		return "comment"
	case ProcInstNode:
		return "procinst"
	case DirectiveNode:
		return "directive"
	default:
		return "unknown"
	}
}

// Attr is an attribute as written in the source, prefix included
type Attr struct {
	Prefix string
	Local  string
	Value  string
}

// Name returns the qualified attribute name, e.g. "r:embed"
func (a Attr) Name() string {
	if a.Prefix == "" {
		return a.Local
	}
	return a.Prefix + ":" + a.Local
}

// IsNamespaceDecl reports whether the attribute declares a namespace
func (a Attr) IsNamespaceDecl() bool {
	return a.Prefix == "xmlns" || (a.Prefix == "" && a.Local == "xmlns")
}

// Node is a single node of a parsed XML part.
type Node struct {
	Kind   Kind
	Prefix string
	Local  string
	// Space is the namespace URI the prefix resolved to at parse time.
	Space    string
	Attrs    []Attr
	Children []*Node
	Parent   *Node

	// Text holds character data for text nodes, the body of comments and
	// directives, and the instruction of processing instructions.
	Text string
	// Target is the processing instruction target, e.g. "xml".
	Target string
}

// NewElement creates a detached element. name may carry a prefix ("w:r").
func NewElement(name string, attrs ...Attr) *Node {
	prefix, local := splitName(name)
	return &Node{Kind: ElementNode, Prefix: prefix, Local: local, Attrs: attrs}
}

// NewText creates a detached text node
func NewText(text string) *Node {
	return &Node{Kind: TextNode, Text: text}
}

// A builds an attribute from a qualified name
func A(name, value string) Attr {
	prefix, local := splitName(name)
	return Attr{Prefix: prefix, Local: local, Value: value}
}

func splitName(name string) (string, string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// Name returns the qualified element name as written in the source
func (n *Node) Name() string {
	if n.Prefix == "" {
		return n.Local
	}
	return n.Prefix + ":" + n.Local
}

// Is reports whether n is an element with the given qualified name
func (n *Node) Is(name string) bool {
	return n != nil && n.Kind == ElementNode && n.Name() == name
}

// Attr returns the value of the attribute with the given qualified name
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name() == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets an attribute, appending it if it does not exist yet
func (n *Node) SetAttr(name, value string) {
	for i, a := range n.Attrs {
		if a.Name() == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, A(name, value))
}

// RemoveAttr deletes the attribute if present
func (n *Node) RemoveAttr(name string) {
	for i, a := range n.Attrs {
		if a.Name() == name {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

// AppendChild attaches children at the end of n, detaching them from any previous parent.
func (n *Node) AppendChild(children ...*Node) {
	for _, c := range children {
		c.Remove()
		c.Parent = n
		n.Children = append(n.Children, c)
	}
}

// Index returns the position of n among its parent's children, or -1 when detached.
func (n *Node) Index() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// Remove detaches n from its parent. Removing a detached node is a no-op.
func (n *Node) Remove() {
	idx := n.Index()
	if idx < 0 {
		n.Parent = nil
		return
	}
	p := n.Parent
	p.Children = append(p.Children[:idx], p.Children[idx+1:]...)
	n.Parent = nil
}

// InsertBefore places nodes immediately before n in n's parent.
func (n *Node) InsertBefore(nodes ...*Node) error {
	return n.insertAt(0, nodes)
}

// InsertAfter places nodes immediately after n in n's parent, in the given order.
func (n *Node) InsertAfter(nodes ...*Node) error {
	return n.insertAt(1, nodes)
}

func (n *Node) insertAt(offset int, nodes []*Node) error {
	if n.Parent == nil {
		return fmt.Errorf("cannot insert next to detached node %s", n.Name())
	}
	for _, c := range nodes {
		if c == n {
			return fmt.Errorf("cannot insert node %s next to itself", n.Name())
		}
		c.Remove()
	}
	p := n.Parent
	idx := n.Index() + offset
	tail := append([]*Node(nil), p.Children[idx:]...)
	p.Children = append(p.Children[:idx], nodes...)
	p.Children = append(p.Children, tail...)
	for _, c := range nodes {
		c.Parent = p
	}
	return nil
}

// ReplaceWith substitutes n by nodes in n's parent. An empty list removes n.
func (n *Node) ReplaceWith(nodes ...*Node) error {
	if n.Parent == nil {
		return fmt.Errorf("cannot replace detached node %s", n.Name())
	}
	if len(nodes) > 0 {
		if err := n.InsertBefore(nodes...); err != nil {
			return err
		}
	}
	n.Remove()
	return nil
}

// Clone returns a deep copy of n. The copy is detached and shares no nodes with n.
func (n *Node) Clone() *Node {
	c := &Node{
		Kind:   n.Kind,
		Prefix: n.Prefix,
		Local:  n.Local,
		Space:  n.Space,
		Text:   n.Text,
		Target: n.Target,
	}
	if len(n.Attrs) > 0 {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			cc := child.Clone()
			cc.Parent = c
			c.Children[i] = cc
		}
	}
	return c
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	// Children may be mutated by fn on a sibling, iterate over a snapshot.
	children := append([]*Node(nil), n.Children...)
	for _, c := range children {
		c.Walk(fn)
	}
}

// FindAll returns the descendant elements of n with the given qualified name, in document order.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		c.Walk(func(d *Node) bool {
			if d.Is(name) {
				out = append(out, d)
			}
			return true
		})
	}
	return out
}

// Find follows a chain of child element names from n and returns the first match.
func (n *Node) Find(path ...string) *Node {
	cur := n
	for _, name := range path {
		var next *Node
		for _, c := range cur.Children {
			if c.Is(name) {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// Elements returns the element children of n, optionally filtered by name.
func (n *Node) Elements(name ...string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind != ElementNode {
			continue
		}
		if len(name) > 0 && c.Name() != name[0] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Ancestor returns the nearest ancestor element with the given name.
func (n *Node) Ancestor(name string) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Is(name) {
			return p
		}
	}
	return nil
}

// IsDescendantOf reports whether n lies strictly below other
func (n *Node) IsDescendantOf(other *Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == other {
			return true
		}
	}
	return false
}

// TextContent concatenates the character data of all descendant text nodes.
func (n *Node) TextContent() string {
	if n.Kind == TextNode {
		return n.Text
	}
	var b strings.Builder
	n.Walk(func(d *Node) bool {
		if d.Kind == TextNode {
			b.WriteString(d.Text)
		}
		return true
	})
	return b.String()
}

// Path describes the position of n below the root as local names with 1-based
// sibling indexes, e.g. "body/tbl[1]/tr[3]/tc[2]/p[1]".
func (n *Node) Path() string {
	var segs []string
	for cur := n; cur != nil && cur.Parent != nil; cur = cur.Parent {
		if cur.Kind != ElementNode {
			continue
		}
		pos := 0
		for _, sib := range cur.Parent.Children {
			if sib.Kind == ElementNode && sib.Name() == cur.Name() {
				pos++
			}
			if sib == cur {
				break
			}
		}
		segs = append(segs, fmt.Sprintf("%s[%d]", cur.Local, pos))
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return strings.Join(segs, "/")
}

// LookupNamespace resolves prefix against the declarations in scope at n.
func (n *Node) LookupNamespace(prefix string) (string, bool) {
	for cur := n; cur != nil; cur = cur.Parent {
		for _, a := range cur.Attrs {
			if prefix == "" && a.Prefix == "" && a.Local == "xmlns" {
				return a.Value, true
			}
			if prefix != "" && a.Prefix == "xmlns" && a.Local == prefix {
				return a.Value, true
			}
		}
	}
	return "", false
}

// NamespaceDecls collects the namespace declarations in scope at n, inner
// declarations shadowing outer ones.
func (n *Node) NamespaceDecls() []Attr {
	seen := make(map[string]bool)
	var out []Attr
	for cur := n; cur != nil; cur = cur.Parent {
		for _, a := range cur.Attrs {
			if !a.IsNamespaceDecl() || seen[a.Name()] {
				continue
			}
			seen[a.Name()] = true
			out = append(out, a)
		}
	}
	return out
}
