package docxgen

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/benjaminschreck/go-docxgen/pkg/docxgen/render"
	docxml "github.com/benjaminschreck/go-docxgen/pkg/docxgen/xml"
)

// partJob holds everything one template part produces during a generation.
// A job is only touched by the goroutine resolving its part until the join.
type partJob struct {
	part     *Part
	doc      *docxml.Document
	relsName string
	baseRels *relationshipSet
	rels     *relationshipSet
	images   []*embeddedImage
	modified bool

	output     []byte
	relsOutput []byte
	relsEntry  *newEntry

	tokens int
	rows   int
	loops  int
}

// relationships returns the part's relationship set, creating it on first use.
func (j *partJob) relationships() (*relationshipSet, error) {
	if j.rels != nil {
		return j.rels, nil
	}
	if j.baseRels != nil {
		j.rels = j.baseRels.clone()
		return j.rels, nil
	}
	rels, err := newRelationshipSet(j.relsName, nil)
	if err != nil {
		return nil, err
	}
	j.rels = rels
	return rels, nil
}

// resolver binds one part's tree to data
type resolver struct {
	ctx   context.Context
	cfg   *Config
	job   *partJob
	log   *zap.Logger
	upper cases.Caser
}

func newResolver(ctx context.Context, cfg *Config, job *partJob, log *zap.Logger) *resolver {
	return &resolver{
		ctx:   ctx,
		cfg:   cfg,
		job:   job,
		log:   log,
		upper: cases.Upper(language.Und),
	}
}

// edit is the planned replacement of one token
type edit struct {
	tok  Token
	text string
	runs []*docxml.Node
	keep bool
}

func (r *resolver) unbound(tok Token, location string) *ResolutionError {
	return &ResolutionError{Kind: UnboundPlaceholder, Name: tok.Name, Part: r.job.part.Name, Location: location}
}

// resolveContainer resolves n and its descendants with scope. Tables and
// paragraphs get dedicated handling; other elements are walked through.
func (r *resolver) resolveContainer(n *docxml.Node, scope *Scope) error {
	if err := r.resolveAttrs(n, scope); err != nil {
		return err
	}
	for _, c := range append([]*docxml.Node(nil), n.Children...) {
		if c.Kind != docxml.ElementNode || c.Parent != n {
			continue
		}
		var err error
		switch {
		case c.Is("w:p"):
			err = r.resolveParagraph(c, scope)
		case c.Is("w:tbl"):
			err = r.resolveTable(c, scope)
		default:
			err = r.resolveContainer(c, scope)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// resolveParagraph substitutes the tokens of a paragraph's text stream, then
// the attributes and text boxes inside it.
func (r *resolver) resolveParagraph(p *docxml.Node, scope *Scope) error {
	if r.cfg.OnMissing == FailOnMissing {
		if err := r.firstUnbound(p, scope); err != nil {
			return err
		}
	}
	if err := r.resolveText(p, scope); err != nil {
		return err
	}

	var err error
	p.Walk(func(n *docxml.Node) bool {
		if err != nil || n.Kind != docxml.ElementNode {
			return false
		}
		if n.Is("w:txbxContent") {
			err = r.resolveContainer(n, scope)
			return false
		}
		err = r.resolveAttrs(n, scope)
		return err == nil
	})
	return err
}

// firstUnbound reports the first unbound placeholder of p in document order.
// Attribute tokens are positioned at their element, text tokens at the <w:t>
// where they start. Tables nested in text boxes open their own scopes and are
// left to their own pass.
func (r *resolver) firstUnbound(p *docxml.Node, scope *Scope) *ResolutionError {
	s := render.NewStream(p)
	starts := make(map[*docxml.Node][]Token)
	if strings.Contains(s.Text, "{{") {
		for _, tok := range ScanTokens(s.Text) {
			if tok.IsLoop() {
				continue
			}
			for _, seg := range s.Segments {
				if tok.Start >= seg.Start && tok.Start < seg.End {
					starts[seg.Node] = append(starts[seg.Node], tok)
					break
				}
			}
		}
	}

	var found *ResolutionError
	p.Walk(func(n *docxml.Node) bool {
		if found != nil || n.Kind != docxml.ElementNode || n.Is("w:tbl") {
			return false
		}
		if n != p && n.Is("w:p") {
			found = r.firstUnbound(n, scope)
			return false
		}
		for _, a := range n.Attrs {
			if a.IsNamespaceDecl() || !strings.Contains(a.Value, "{{") {
				continue
			}
			for _, tok := range ScanTokens(a.Value) {
				if tok.Type != TokenText && tok.Type != TokenUpper {
					continue
				}
				if _, ok := scope.Lookup(tok.Name); !ok {
					found = r.unbound(tok, n.Path()+"@"+a.Name())
					return false
				}
			}
		}
		for _, tok := range starts[n] {
			if _, ok := scope.Lookup(tok.Name); !ok {
				found = r.unbound(tok, p.Path())
				return false
			}
		}
		return true
	})
	return found
}

func (r *resolver) resolveText(p *docxml.Node, scope *Scope) error {
	s := render.NewStream(p)
	if !strings.Contains(s.Text, "{{") {
		return nil
	}
	tokens := ScanTokens(s.Text)
	if at := render.UnclosedMarker(s.Text); at >= 0 {
		r.log.Debug("unterminated placeholder",
			zap.String("location", p.Path()),
			zap.String("text", render.Excerpt(s.Text, at, 40)))
	}
	if len(tokens) == 0 {
		return nil
	}
	if render.MergeConsecutiveRuns(p) {
		s = render.NewStream(p)
		tokens = ScanTokens(s.Text)
	}

	location := p.Path()
	edits := make([]edit, 0, len(tokens))
	for _, tok := range tokens {
		e, err := r.planEdit(tok, p, scope, location)
		if err != nil {
			return err
		}
		edits = append(edits, e)
	}

	// Apply from the end so earlier offsets stay valid.
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		if e.keep {
			continue
		}
		var err error
		if e.runs != nil {
			err = s.ReplaceWithRuns(e.tok.Start, e.tok.End, e.runs...)
		} else {
			err = s.Replace(e.tok.Start, e.tok.End, e.text)
		}
		if err != nil {
			return &RebuildError{Part: r.job.part.Name, Reason: "cannot rewrite " + e.tok.Raw + " at " + location, Cause: err}
		}
		r.job.modified = true
		r.job.tokens++
	}
	return nil
}

func (r *resolver) planEdit(tok Token, p *docxml.Node, scope *Scope, location string) (edit, error) {
	e := edit{tok: tok}

	if tok.IsLoop() {
		reason := "loop marker outside a table row"
		if p.Ancestor("w:tr") != nil {
			reason = "loop marker without a matching row block"
		}
		return e, &ResolutionError{Kind: MalformedLoop, Name: tok.Name, Part: r.job.part.Name, Location: location, Reason: reason}
	}

	v, ok := scope.Lookup(tok.Name)
	if !ok {
		switch r.cfg.OnMissing {
		case LeaveVerbatim:
			e.keep = true
			return e, nil
		case ReplaceEmpty:
			return e, nil
		default:
			return e, r.unbound(tok, location)
		}
	}

	switch {
	case v.Kind == KindImage:
		runs, err := r.embedImage(tok, v.Image, nil, location)
		e.runs = runs
		return e, err
	case tok.Type == TokenImage && v.Kind == KindText:
		img, decodeErr := imageFromText(v.Text)
		runs, err := r.embedImage(tok, img, decodeErr, location)
		e.runs = runs
		return e, err
	case tok.Type == TokenImage:
		runs, err := r.embedImage(tok, nil, nil, location)
		e.runs = runs
		return e, err
	case v.Kind == KindList && r.cfg.ValueHandler == nil:
		r.log.Debug("list bound to text placeholder", zap.String("name", tok.Name), zap.String("location", location))
		return e, nil
	}

	e.text = r.format(tok, v, scope)
	return e, nil
}

// format renders a non-image value for a text token, passing it through the
// configured value handler first.
func (r *resolver) format(tok Token, v Value, scope *Scope) string {
	text := v.Text
	if r.cfg.ValueHandler != nil {
		text = r.cfg.ValueHandler(loopIndex(scope), tok.Name, v)
	}
	if tok.Type == TokenUpper {
		text = r.upper.String(text)
	}
	return text
}

// loopIndex returns the index of the innermost loop record, or -1 outside loops
func loopIndex(scope *Scope) int {
	v, ok := scope.Lookup(IndexName)
	if !ok {
		return -1
	}
	i, err := strconv.Atoi(v.Text)
	if err != nil {
		return -1
	}
	return i
}

// resolveAttrs substitutes text tokens inside attribute values of n.
func (r *resolver) resolveAttrs(n *docxml.Node, scope *Scope) error {
	for i, a := range n.Attrs {
		if a.IsNamespaceDecl() || !strings.Contains(a.Value, "{{") {
			continue
		}
		tokens := ScanTokens(a.Value)
		value := a.Value
		changed := false
		for k := len(tokens) - 1; k >= 0; k-- {
			tok := tokens[k]
			if tok.Type != TokenText && tok.Type != TokenUpper {
				continue
			}
			v, ok := scope.Lookup(tok.Name)
			var repl string
			switch {
			case ok && (v.Kind == KindText || (v.Kind == KindList && r.cfg.ValueHandler != nil)):
				repl = r.format(tok, v, scope)
			case ok:
				continue
			case r.cfg.OnMissing == LeaveVerbatim:
				continue
			case r.cfg.OnMissing == ReplaceEmpty:
			default:
				// Report the first unbound token of the value, not the last.
				for _, t := range tokens {
					if t.Type != TokenText && t.Type != TokenUpper {
						continue
					}
					if _, bound := scope.Lookup(t.Name); !bound {
						tok = t
						break
					}
				}
				return r.unbound(tok, n.Path()+"@"+a.Name())
			}
			value = value[:tok.Start] + repl + value[tok.End:]
			changed = true
		}
		if changed {
			n.Attrs[i].Value = value
			r.job.modified = true
		}
	}
	return nil
}
