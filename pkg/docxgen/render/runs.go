package render

import (
	"strings"
	"unicode/utf8"

	"github.com/benjaminschreck/go-docxgen/pkg/docxgen/xml"
)

// runPropertiesEquivalent checks if two runs carry the same formatting
func runPropertiesEquivalent(r1, r2 *xml.Node) bool {
	p1, p2 := r1.Find("w:rPr"), r2.Find("w:rPr")
	if p1 == nil || p2 == nil {
		return p1 == nil && p2 == nil
	}
	return p1.String() == p2.String()
}

// isPlainTextRun reports whether run holds nothing but properties and <w:t> elements.
func isPlainTextRun(run *xml.Node) bool {
	if !run.Is("w:r") {
		return false
	}
	hasText := false
	for _, c := range run.Children {
		switch {
		case c.Kind == xml.TextNode && strings.TrimSpace(c.Text) == "":
		case c.Is("w:rPr"):
		case c.Is("w:t"):
			hasText = true
		default:
			return false
		}
	}
	return hasText
}

// MergeConsecutiveRuns merges adjacent plain text runs of para that share
// formatting, so that a placeholder split by the editor sits in a single run.
// It reports whether anything was merged.
func MergeConsecutiveRuns(para *xml.Node) bool {
	merged := false
	var current *xml.Node
	for _, c := range append([]*xml.Node(nil), para.Children...) {
		if c.Kind == xml.TextNode && strings.TrimSpace(c.Text) == "" {
			continue
		}
		if !isPlainTextRun(c) {
			current = nil
			continue
		}
		if current == nil || !runPropertiesEquivalent(current, c) {
			current = c
			continue
		}

		texts := current.Elements("w:t")
		last := texts[len(texts)-1]
		var b strings.Builder
		b.WriteString(last.TextContent())
		for _, t := range c.Elements("w:t") {
			b.WriteString(t.TextContent())
		}
		setText(last, b.String())
		c.Remove()
		merged = true
	}
	return merged
}

// UnclosedMarker returns the offset of the first "{{" in s that is never
// closed by a "}}", or -1 when every marker is closed.
func UnclosedMarker(s string) int {
	var open []int
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '{' && s[i+1] == '{' {
			open = append(open, i)
			i++
		} else if s[i] == '}' && s[i+1] == '}' {
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
			i++
		}
	}
	if len(open) == 0 {
		return -1
	}
	return open[0]
}

// Excerpt returns at most n bytes of s starting at offset at, cut back to a
// rune boundary.
func Excerpt(s string, at, n int) string {
	if at < 0 || at >= len(s) {
		return ""
	}
	end := min(at+n, len(s))
	for end > at && end < len(s) && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[at:end]
}
