package docxgen

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/benjaminschreck/go-docxgen/pkg/docxgen/metrics"
)

// generationStats summarizes one generation for logs and metrics
type generationStats struct {
	parts    int
	modified int
	tokens   int
	loops    int
	rows     int
	images   int
}

// Generate binds data to the template and returns the generated package.
// Nothing is returned unless every part resolved and the package was verified.
func (t *Template) Generate(ctx context.Context, data Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.GenerateTo(ctx, data, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateTo is like Generate but writes the package to w. On error w may
// have received nothing or an incomplete archive, never a verified one.
func (t *Template) GenerateTo(ctx context.Context, data Context, w io.Writer) error {
	timer := metrics.NewTimer()
	log := t.logger.With(zap.String("request_id", uuid.NewString()))

	plan, stats, err := t.plan(ctx, data, log)
	if err == nil {
		var buf bytes.Buffer
		if err = plan.write(ctx, &buf); err == nil {
			if _, werr := w.Write(buf.Bytes()); werr != nil {
				err = NewDocumentError("write", t.name, werr)
			} else {
				t.metrics.RecordGeneration("success", buf.Len(), timer.Duration())
				t.metrics.RecordContent(stats.rows, stats.images)
				log.Debug("generated document",
					zap.Int("parts", stats.parts),
					zap.Int("modified_parts", stats.modified),
					zap.Int("tokens", stats.tokens),
					zap.Int("loops", stats.loops),
					zap.Int("rows", stats.rows),
					zap.Int("images", stats.images),
					zap.Int("bytes", buf.Len()),
					zap.Duration("duration", timer.Duration()))
				return nil
			}
		}
	}

	t.metrics.RecordGeneration("error", 0, timer.Duration())
	t.metrics.RecordError(errorType(err))
	log.Debug("generation failed", zap.Error(err))
	return err
}

// plan resolves every template part concurrently, then numbers the new
// parts and serializes the results. Numbering happens after the join so
// the output does not depend on scheduling.
func (t *Template) plan(ctx context.Context, data Context, log *zap.Logger) (*rebuildPlan, *generationStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	scope := NewScope(data)

	jobs := make([]*partJob, len(t.sources))
	errs := make([]error, len(t.sources))
	var g errgroup.Group
	g.SetLimit(t.config.Concurrency)
	for i, src := range t.sources {
		g.Go(func() error {
			jobs[i], errs[i] = t.resolvePart(ctx, src, scope, log)
			return errs[i]
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}

	stats := &generationStats{parts: len(jobs)}
	plan := newRebuildPlan(t.parts)
	contentTypes := t.contentTypes.clone()
	mediaNext := t.parts.MaxMediaIndex() + 1
	docPrNext := t.maxDocPr + 1

	for _, job := range jobs {
		t.metrics.RecordPart(partKind(job.part.Name))
		stats.tokens += job.tokens
		stats.loops += job.loops
		stats.rows += job.rows
		stats.images += len(job.images)

		for _, img := range job.images {
			name := mediaDir + "image" + strconv.Itoa(mediaNext) + "." + img.ext
			for plan.has(name) {
				mediaNext++
				name = mediaDir + "image" + strconv.Itoa(mediaNext) + "." + img.ext
			}
			mediaNext++

			img.name = name
			img.rel.Target = relTarget(job.part.Name, name)
			img.number(docPrNext)
			docPrNext++
			contentTypes.ensureDefault(img.ext)
			plan.add(name, img.data, zip.Store)
			plan.media = append(plan.media, name)
		}
		if job.rels != nil && len(job.rels.added) > 0 && !job.rels.exists {
			contentTypes.ensureDefault("rels")
			job.relsEntry = plan.add(job.relsName, nil, zip.Deflate)
		}
	}

	// Serialize modified parts in parallel; each job owns its tree.
	var sg errgroup.Group
	sg.SetLimit(t.config.Concurrency)
	for i, job := range jobs {
		if !job.modified {
			continue
		}
		sg.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return err
			}
			job.output = job.doc.Bytes()
			if job.rels != nil && len(job.rels.added) > 0 {
				job.relsOutput, errs[i] = job.rels.Bytes()
			}
			return errs[i]
		})
	}
	_ = sg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}

	for _, job := range jobs {
		if !job.modified {
			continue
		}
		stats.modified++
		plan.replaced[job.part.Name] = job.output
		switch {
		case job.relsEntry != nil:
			job.relsEntry.data = job.relsOutput
		case job.relsOutput != nil:
			plan.replaced[job.relsName] = job.relsOutput
		}
	}
	if contentTypes.changed {
		plan.replaced[contentTypesPartName] = contentTypes.Bytes()
	}

	if err := plan.verify(); err != nil {
		return nil, nil, err
	}
	return plan, stats, nil
}

// resolvePart binds one part on a private copy of its tree.
func (t *Template) resolvePart(ctx context.Context, src *templateSource, scope *Scope, log *zap.Logger) (job *partJob, err error) {
	defer func() {
		if r := recover(); r != nil {
			job, err = nil, WithContext(RecoverError(r), "resolve", map[string]interface{}{"part": src.part.Name})
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	job = &partJob{
		part:     src.part,
		doc:      src.doc.Clone(),
		relsName: src.relsName,
		baseRels: src.rels,
	}
	plog := log.With(zap.String("part", src.part.Name))
	r := newResolver(ctx, t.config, job, plog)
	if err := r.resolveContainer(job.doc.Root, scope); err != nil {
		return nil, err
	}
	plog.Debug("resolved part",
		zap.Bool("modified", job.modified),
		zap.Int("tokens", job.tokens),
		zap.Int("loops", job.loops),
		zap.Int("images", len(job.images)))
	return job, nil
}

// errorType labels an error for the errors metric
func errorType(err error) string {
	var resErr *ResolutionError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case IsParseError(err):
		return "parse"
	case errors.As(err, &resErr):
		return strings.ReplaceAll(resErr.Kind.String(), " ", "_")
	case IsRebuildError(err):
		return "rebuild"
	case IsDocumentError(err):
		return "document"
	default:
		return "other"
	}
}
