package render

import (
	"fmt"
	"strings"

	"github.com/benjaminschreck/go-docxgen/pkg/docxgen/xml"
)

// Segment is the slice of stream text contributed by one <w:t> element.
type Segment struct {
	Node  *xml.Node
	Start int
	End   int
}

// Stream is the logical text of a paragraph
type Stream struct {
	Para     *xml.Node
	Text     string
	Segments []Segment
}

// NewStream collects the text of para. Paragraphs nested inside para (text
// boxes, for instance) are not part of its stream.
func NewStream(para *xml.Node) *Stream {
	s := &Stream{Para: para}
	s.refresh()
	return s
}

func (s *Stream) refresh() {
	var b strings.Builder
	s.Segments = s.Segments[:0]
	for _, c := range s.Para.Children {
		c.Walk(func(n *xml.Node) bool {
			if n.Is("w:p") {
				return false
			}
			if n.Is("w:t") {
				text := n.TextContent()
				start := b.Len()
				b.WriteString(text)
				s.Segments = append(s.Segments, Segment{Node: n, Start: start, End: b.Len()})
				return false
			}
			return true
		})
	}
	s.Text = b.String()
}

// owner returns the index of the segment holding offset pos
func (s *Stream) owner(pos int) int {
	for i, seg := range s.Segments {
		if pos >= seg.Start && pos < seg.End {
			return i
		}
	}
	return -1
}

// Replace substitutes the stream range [start, end) with repl. The
// replacement lands in the segment where start falls; characters of the range
// held by later segments are removed from them.
func (s *Stream) Replace(start, end int, repl string) error {
	if start < 0 || end > len(s.Text) || start >= end {
		return fmt.Errorf("invalid stream range [%d, %d) for text of length %d", start, end, len(s.Text))
	}
	first := s.owner(start)
	if first < 0 {
		return fmt.Errorf("no segment at offset %d", start)
	}
	for i := first; i < len(s.Segments); i++ {
		seg := s.Segments[i]
		if seg.Start >= end {
			break
		}
		lo := max(start, seg.Start) - seg.Start
		hi := min(end, seg.End) - seg.Start
		text := seg.Node.TextContent()
		if i == first {
			setText(seg.Node, text[:lo]+repl+text[hi:])
		} else {
			setText(seg.Node, text[:lo]+text[hi:])
		}
	}
	s.refresh()
	return nil
}

// ReplaceWithRuns removes the stream range [start, end) and places runs at
// that position. The run owning start is split in two around the insertion
// point; halves left without text are dropped.
func (s *Stream) ReplaceWithRuns(start, end int, runs ...*xml.Node) error {
	first := s.owner(start)
	if first < 0 {
		return fmt.Errorf("no segment at offset %d", start)
	}
	text := s.Segments[first].Node
	offset := start - s.Segments[first].Start
	if err := s.Replace(start, end, ""); err != nil {
		return err
	}

	run := text.Parent
	if !run.Is("w:r") {
		return fmt.Errorf("text element at %s is not inside a run", text.Path())
	}
	full := text.TextContent()
	left, right := full[:offset], full[offset:]

	// tail receives the run properties and everything after the split point.
	tail := &xml.Node{
		Kind:   xml.ElementNode,
		Prefix: run.Prefix,
		Local:  run.Local,
		Space:  run.Space,
		Attrs:  append([]xml.Attr(nil), run.Attrs...),
	}
	if rPr := run.Find("w:rPr"); rPr != nil {
		tail.AppendChild(rPr.Clone())
	}
	rightText := text.Clone()
	setText(rightText, right)
	tail.AppendChild(rightText)
	tail.AppendChild(append([]*xml.Node(nil), run.Children[text.Index()+1:]...)...)

	setText(text, left)
	if left == "" {
		text.Remove()
	}
	if right == "" {
		rightText.Remove()
	}

	inserted := append(append([]*xml.Node(nil), runs...), tail)
	if err := run.InsertAfter(inserted...); err != nil {
		return err
	}
	if !hasContent(tail) {
		tail.Remove()
	}
	if !hasContent(run) {
		run.Remove()
	}
	s.refresh()
	return nil
}

// hasContent reports whether a run holds anything besides its properties.
func hasContent(run *xml.Node) bool {
	for _, c := range run.Children {
		if c.Kind == xml.ElementNode && !c.Is("w:rPr") {
			return true
		}
	}
	return false
}

// setText replaces the character data of a <w:t> element, keeping
// xml:space="preserve" when the value has significant edge whitespace.
func setText(t *xml.Node, text string) {
	t.Children = nil
	if text != "" {
		t.AppendChild(xml.NewText(text))
	}
	if text != strings.TrimSpace(text) {
		t.SetAttr("xml:space", "preserve")
	}
}

// SetText is setText for callers outside the package.
func SetText(t *xml.Node, text string) {
	setText(t, text)
}

// ParagraphText returns the stream text of para.
func ParagraphText(para *xml.Node) string {
	return NewStream(para).Text
}
