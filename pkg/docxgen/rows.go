package docxgen

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docxgen/pkg/docxgen/render"
	docxml "github.com/benjaminschreck/go-docxgen/pkg/docxgen/xml"
)

// rowParagraphs returns the paragraphs that belong to row itself, leaving out
// paragraphs of tables nested in its cells.
func rowParagraphs(row *docxml.Node) []*docxml.Node {
	var out []*docxml.Node
	for _, c := range row.Children {
		c.Walk(func(n *docxml.Node) bool {
			if n.Is("w:tbl") {
				return false
			}
			if n.Is("w:p") {
				out = append(out, n)
				return false
			}
			return true
		})
	}
	return out
}

// loopMarkers lists the loop tokens of row in document order
func loopMarkers(row *docxml.Node) []Token {
	var out []Token
	for _, p := range rowParagraphs(row) {
		text := render.ParagraphText(p)
		if !strings.Contains(text, "{{") {
			continue
		}
		for _, tok := range ScanTokens(text) {
			if tok.IsLoop() {
				out = append(out, tok)
			}
		}
	}
	return out
}

func (r *resolver) malformedLoop(name string, at *docxml.Node, reason string) *ResolutionError {
	return &ResolutionError{Kind: MalformedLoop, Name: name, Part: r.job.part.Name, Location: at.Path(), Reason: reason}
}

// resolveTable resolves the table properties and then its rows.
func (r *resolver) resolveTable(tbl *docxml.Node, scope *Scope) error {
	if err := r.resolveAttrs(tbl, scope); err != nil {
		return err
	}
	var rows []*docxml.Node
	for _, c := range append([]*docxml.Node(nil), tbl.Children...) {
		if c.Kind != docxml.ElementNode {
			continue
		}
		if c.Is("w:tr") {
			rows = append(rows, c)
			continue
		}
		if err := r.resolveContainer(c, scope); err != nil {
			return err
		}
	}
	return r.resolveRows(rows, scope)
}

// resolveRows walks a run of sibling rows. A row holding a loop start opens
// a block that ends at the row holding the matching loop end; the block is
// expanded once per record. Other rows are resolved in place.
func (r *resolver) resolveRows(rows []*docxml.Node, scope *Scope) error {
	for i := 0; i < len(rows); {
		row := rows[i]
		markers := loopMarkers(row)
		if len(markers) == 0 {
			if err := r.resolveContainer(row, scope); err != nil {
				return err
			}
			i++
			continue
		}

		first := markers[0]
		if first.Type == TokenLoopEnd {
			return r.malformedLoop(first.Name, row, "loop end without a preceding loop start")
		}
		end, err := r.matchLoop(rows, i)
		if err != nil {
			return err
		}
		if err := r.expandLoop(rows[i:end+1], first.Name, scope); err != nil {
			return err
		}
		i = end + 1
	}
	return nil
}

// matchLoop finds the row closing the loop opened in rows[start].
func (r *resolver) matchLoop(rows []*docxml.Node, start int) (int, error) {
	var stack []string
	for i := start; i < len(rows); i++ {
		markers := loopMarkers(rows[i])
		for k, m := range markers {
			if m.Type == TokenLoopStart {
				stack = append(stack, m.Name)
				continue
			}
			if len(stack) == 0 {
				return 0, r.malformedLoop(m.Name, rows[i], "loop end without a preceding loop start")
			}
			if top := stack[len(stack)-1]; top != m.Name {
				return 0, r.malformedLoop(top, rows[i], "loop end {{/"+m.Name+"}} does not close {{#"+top+"}}")
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				if k != len(markers)-1 {
					return 0, r.malformedLoop(markers[k+1].Name, rows[i], "row holds markers of more than one loop block")
				}
				return i, nil
			}
		}
	}

	name := loopMarkers(rows[start])[0].Name
	reason := "no matching loop end"
	if strings.Contains(r.job.doc.Root.TextContent(), "{{/"+name+"}}") {
		reason = "loop end is not in the same table as the loop start"
	}
	return 0, r.malformedLoop(name, rows[start], reason)
}

// expandLoop replaces the template block by one copy per record of the list
// bound to name. Each copy is resolved against the record, then the outer scope.
func (r *resolver) expandLoop(block []*docxml.Node, name string, scope *Scope) error {
	v, ok := scope.Lookup(name)
	if !ok {
		switch r.cfg.OnMissing {
		case LeaveVerbatim:
			return nil
		case ReplaceEmpty:
			v = List()
		default:
			return &ResolutionError{Kind: UnboundPlaceholder, Name: name, Part: r.job.part.Name, Location: block[0].Path(), Reason: "loop is not bound"}
		}
	}
	if v.Kind != KindList {
		return r.malformedLoop(name, block[0], "bound to a "+v.Kind.String()+" value, expected a list")
	}

	copies := make([][]*docxml.Node, 0, len(v.List))
	var inserted []*docxml.Node
	for range v.List {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		rows := make([]*docxml.Node, len(block))
		for k, row := range block {
			rows[k] = row.Clone()
		}
		if err := stripMarker(rows[0], TokenLoopStart, name, false); err != nil {
			return &RebuildError{Part: r.job.part.Name, Reason: "cannot remove loop start", Cause: err}
		}
		if err := stripMarker(rows[len(rows)-1], TokenLoopEnd, name, true); err != nil {
			return &RebuildError{Part: r.job.part.Name, Reason: "cannot remove loop end", Cause: err}
		}
		copies = append(copies, rows)
		inserted = append(inserted, rows...)
	}

	location := block[0].Path()
	if len(inserted) > 0 {
		if err := block[len(block)-1].InsertAfter(inserted...); err != nil {
			return &RebuildError{Part: r.job.part.Name, Reason: "cannot insert loop rows", Cause: err}
		}
	}
	for _, row := range block {
		row.Remove()
	}
	r.job.modified = true
	r.job.loops++
	r.job.rows += len(inserted)
	r.log.Debug("expanded loop",
		zap.String("name", name),
		zap.String("location", location),
		zap.Int("records", len(v.List)),
		zap.Int("rows", len(inserted)))

	for i, rows := range copies {
		child := scope.Child(Context{IndexName: Text(strconv.Itoa(i))}).Child(v.List[i])
		if err := r.resolveRows(rows, child); err != nil {
			return err
		}
	}

	if r.cfg.MergeRepeatedCells && len(block) == 1 && len(copies) > 1 {
		merged := make([]*docxml.Node, len(copies))
		for i, rows := range copies {
			merged[i] = rows[0]
		}
		mergeRepeatedCells(merged)
	}
	return nil
}

// stripMarker removes the first (or last) loop token of the given type and
// name from the row's own paragraphs.
func stripMarker(row *docxml.Node, typ TokenType, name string, last bool) error {
	var target *render.Stream
	var found Token
	for _, p := range rowParagraphs(row) {
		s := render.NewStream(p)
		for _, tok := range ScanTokens(s.Text) {
			if tok.Type != typ || tok.Name != name {
				continue
			}
			if target == nil || last {
				target, found = s, tok
			}
			if !last {
				break
			}
		}
		if target != nil && !last {
			break
		}
	}
	if target == nil {
		return nil
	}
	return target.Replace(found.Start, found.End, "")
}

// mergeRepeatedCells merges vertically adjacent cells of consecutive rows
// whose text is equal and non-empty. The first cell of a run restarts the
// merge, the following ones continue it and are emptied.
func mergeRepeatedCells(rows []*docxml.Node) {
	cells := make([][]*docxml.Node, len(rows))
	columns := 0
	for i, row := range rows {
		cells[i] = row.Elements("w:tc")
		columns = max(columns, len(cells[i]))
	}

	for c := 0; c < columns; c++ {
		prev := ""
		var start *docxml.Node
		for i := range rows {
			if c >= len(cells[i]) {
				prev, start = "", nil
				continue
			}
			cell := cells[i][c]
			if _, merged := vMerge(cell); merged {
				prev, start = "", nil
				continue
			}
			text := cellText(cell)
			if text != "" && text == prev && start != nil {
				setVMerge(start, "restart")
				setVMerge(cell, "")
				for _, t := range cell.FindAll("w:t") {
					render.SetText(t, "")
				}
				continue
			}
			prev, start = text, cell
		}
	}
}

func cellText(cell *docxml.Node) string {
	var parts []string
	for _, p := range cell.Elements("w:p") {
		parts = append(parts, render.ParagraphText(p))
	}
	return strings.Join(parts, "\n")
}

// vMerge reports the w:vMerge value of a cell and whether it is set.
func vMerge(cell *docxml.Node) (string, bool) {
	tcPr := cell.Find("w:tcPr")
	if tcPr == nil {
		return "", false
	}
	m := tcPr.Find("w:vMerge")
	if m == nil {
		return "", false
	}
	v, _ := m.Attr("w:val")
	return v, true
}

func setVMerge(cell *docxml.Node, val string) {
	tcPr := cell.Find("w:tcPr")
	if tcPr == nil {
		tcPr = docxml.NewElement("w:tcPr")
		if len(cell.Children) > 0 {
			cell.Children[0].InsertBefore(tcPr)
		} else {
			cell.AppendChild(tcPr)
		}
	}
	m := tcPr.Find("w:vMerge")
	if m == nil {
		m = docxml.NewElement("w:vMerge")
		// vMerge follows tcW, gridSpan and hMerge in the cell properties.
		var after *docxml.Node
		for _, c := range tcPr.Elements() {
			if c.Is("w:tcW") || c.Is("w:gridSpan") || c.Is("w:hMerge") || c.Is("w:cnfStyle") {
				after = c
			}
		}
		if after != nil {
			after.InsertAfter(m)
		} else if len(tcPr.Children) > 0 {
			tcPr.Children[0].InsertBefore(m)
		} else {
			tcPr.AppendChild(m)
		}
	}
	if val == "" {
		m.RemoveAttr("w:val")
	} else {
		m.SetAttr("w:val", val)
	}
}
