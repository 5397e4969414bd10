package docxgen

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/benjaminschreck/go-docxgen/pkg/docxgen/metrics"
	"github.com/benjaminschreck/go-docxgen/pkg/docxgen/render"
	docxml "github.com/benjaminschreck/go-docxgen/pkg/docxgen/xml"
)

// Template is a parsed DOCX template ready to be generated any number of
// times, concurrently if needed. A Template is never modified by generation.
type Template struct {
	name         string
	parts        *PartSet
	sources      []*templateSource
	contentTypes *contentTypeSet
	maxDocPr     int
	config       *Config
	logger       *zap.Logger
	metrics      *metrics.Recorder
}

// templateSource is one parsed template part
type templateSource struct {
	part     *Part
	doc      *docxml.Document
	relsName string
	rels     *relationshipSet
}

// PlaceholderInfo describes one token found in a template part
type PlaceholderInfo struct {
	Part     string
	Location string
	Type     TokenType
	Name     string
	Raw      string
}

func prepareTemplate(ctx context.Context, name string, data []byte, config *Config, logger *zap.Logger) (*Template, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	parts, err := ReadPartSet(ctx, data)
	if err != nil {
		return nil, err
	}

	ctPart, _ := parts.Get(contentTypesPartName)
	ctData, err := ctPart.Read()
	if err != nil {
		return nil, err
	}
	contentTypes, err := newContentTypeSet(ctData)
	if err != nil {
		return nil, err
	}

	templateParts := parts.TemplateParts()
	sources := make([]*templateSource, len(templateParts))
	errs := make([]error, len(templateParts))

	var g errgroup.Group
	g.SetLimit(config.Concurrency)
	for i, p := range templateParts {
		g.Go(func() error {
			sources[i], errs[i] = loadSource(ctx, parts, p)
			return errs[i]
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Report the failure of the earliest part regardless of scheduling.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	t := &Template{
		name:         name,
		parts:        parts,
		sources:      sources,
		contentTypes: contentTypes,
		config:       config,
		logger:       logger.With(zap.String("template", name)),
		metrics:      metrics.NewRecorder(name),
	}
	for _, src := range sources {
		t.maxDocPr = max(t.maxDocPr, maxDocPrID(src.doc.Root))
	}
	t.logger.Debug("prepared template",
		zap.Int("entries", len(parts.Parts())),
		zap.Int("template_parts", len(sources)))
	return t, nil
}

func loadSource(ctx context.Context, parts *PartSet, p *Part) (*templateSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.Read()
	if err != nil {
		return nil, err
	}
	doc, err := parseTemplatePart(p.Name, data)
	if err != nil {
		return nil, err
	}

	src := &templateSource{part: p, doc: doc, relsName: relsPartName(p.Name)}
	if relsPart, ok := parts.Get(src.relsName); ok {
		relsData, err := relsPart.Read()
		if err != nil {
			return nil, err
		}
		if src.rels, err = newRelationshipSet(src.relsName, relsData); err != nil {
			return nil, err
		}
	}
	return src, nil
}

// Name returns the name the template was prepared under
func (t *Template) Name() string {
	return t.name
}

// Config returns the configuration the template generates with
func (t *Template) Config() *Config {
	return t.config
}

// Placeholders lists every token of the template parts in part order, then
// document order.
func (t *Template) Placeholders() []PlaceholderInfo {
	var out []PlaceholderInfo
	for _, src := range t.sources {
		src.doc.Root.Walk(func(n *docxml.Node) bool {
			if n.Kind != docxml.ElementNode {
				return true
			}
			for _, a := range n.Attrs {
				if a.IsNamespaceDecl() || !strings.Contains(a.Value, "{{") {
					continue
				}
				for _, tok := range ScanTokens(a.Value) {
					out = append(out, placeholderInfo(src.part.Name, n.Path()+"@"+a.Name(), tok))
				}
			}
			if !n.Is("w:p") {
				return true
			}
			text := render.ParagraphText(n)
			if strings.Contains(text, "{{") {
				for _, tok := range ScanTokens(text) {
					out = append(out, placeholderInfo(src.part.Name, n.Path(), tok))
				}
			}
			return true
		})
	}
	return out
}

func placeholderInfo(part, location string, tok Token) PlaceholderInfo {
	return PlaceholderInfo{Part: part, Location: location, Type: tok.Type, Name: tok.Name, Raw: tok.Raw}
}

// Close releases the template. A template holds only in-memory parts, so
// Close returns nil and generations already running are unaffected.
func (t *Template) Close() error {
	return nil
}
