package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docxgen/internal/datasource"
	"github.com/benjaminschreck/go-docxgen/internal/storage"
	"github.com/benjaminschreck/go-docxgen/pkg/docxgen"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

type renderOptions struct {
	data            string
	set             []string
	images          []string
	pgQuery         string
	pgBind          string
	pgArgs          []string
	out             string
	metricsTextfile string
}

func newRenderCmd(a *app) *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Render a template into a new document",
		Long: `Render binds data to TEMPLATE and writes the generated document to --out.

Data sources are merged in this order, later ones winning on equal names:
--data, --pg-query, --image, --set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.render(cmd.Context(), args[0], opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.data, "data", "d", "", "JSON data file, or - for stdin")
	f.StringArrayVar(&opts.set, "set", nil, "bind a text value (name=value, repeatable)")
	f.StringArrayVar(&opts.images, "image", nil, "bind an image file (name=path or name=s3://bucket/key, repeatable)")
	f.StringVar(&opts.pgQuery, "pg-query", "", "SQL query whose rows are bound as a loop list")
	f.StringVar(&opts.pgBind, "pg-bind", "rows", "name the query rows are bound to")
	f.StringArrayVar(&opts.pgArgs, "pg-arg", nil, "query parameter ($1, $2, ...; repeatable)")
	f.StringVarP(&opts.out, "out", "o", "", "output path, s3://bucket/key, or - for stdout")
	f.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after rendering")

	f.String("pg-dsn", "", "PostgreSQL connection string")
	f.String("on-missing", "fail", "unbound placeholders: leave_verbatim, replace_empty or fail")
	f.String("on-invalid-image", "fail", "invalid images: fail or substitute_default")
	f.String("default-image", "", "image substituted for invalid images")
	f.Int("dpi", docxgen.DefaultDPI, "resolution used to size images")
	f.Int64("max-image-emu", docxgen.DefaultMaxImageEMU, "largest image side in EMU (0 disables scaling)")
	f.Bool("merge-cells", false, "vertically merge repeated cell values produced by loops")
	f.Int("concurrency", 0, "parts processed at once (0 uses all CPUs)")
	f.String("s3-region", "", "S3 region")
	f.String("s3-endpoint", "", "S3 endpoint for S3-compatible storage")
	f.Bool("s3-path-style", false, "use path-style S3 addressing")

	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) render(ctx context.Context, template string, opts renderOptions, stdout io.Writer) error {
	start := time.Now()
	log := a.logger.With(zap.String("template", template))

	cfg, err := a.settings.engineConfig()
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}
	engineOpts := []docxgen.Option{docxgen.WithConfig(cfg), docxgen.WithLogger(a.logger.Named("docxgen"))}
	if a.settings.DefaultImage != "" {
		img, err := a.store.Read(ctx, a.settings.DefaultImage)
		if err != nil {
			return &ExitError{Code: exitUsage, Err: fmt.Errorf("failed to read default image: %w", err)}
		}
		engineOpts = append(engineOpts, docxgen.WithDefaultImage(docxgen.Image{Data: img}))
	}

	data, err := a.loadData(ctx, opts)
	if err != nil {
		return err
	}

	src, err := a.store.Read(ctx, template)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	loc, _ := storage.Parse(template)

	engine := docxgen.NewWithOptions(engineOpts...)
	defer engine.Close()

	tmpl, err := engine.PrepareBytes(ctx, loc.Base(), src)
	if err != nil {
		return classify(err)
	}
	defer tmpl.Close()

	out, err := tmpl.Generate(ctx, data)
	if err != nil {
		return classify(err)
	}

	if opts.out == "-" {
		if _, err := stdout.Write(out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	} else if err := a.store.Write(ctx, opts.out, out, docxContentType); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if opts.metricsTextfile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsTextfile, prometheus.DefaultGatherer); err != nil {
			log.Warn("failed to write metrics", zap.String("path", opts.metricsTextfile), zap.Error(err))
		}
	}

	log.Info("rendered document",
		zap.String("out", opts.out),
		zap.Int("bytes", len(out)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// loadData merges all configured data sources into one context
func (a *app) loadData(ctx context.Context, opts renderOptions) (docxgen.Context, error) {
	data := make(docxgen.Context)

	if opts.data != "" {
		jsonCtx, err := a.readJSON(ctx, opts.data)
		if err != nil {
			return nil, &ExitError{Code: exitUsage, Err: err}
		}
		datasource.Merge(data, jsonCtx)
	}

	if opts.pgQuery != "" {
		rows, err := a.queryRows(ctx, opts)
		if err != nil {
			return nil, err
		}
		datasource.Merge(data, rows)
	}

	images, err := datasource.LoadImages(opts.images, func(location string) ([]byte, error) {
		return a.store.Read(ctx, location)
	})
	if err != nil {
		return nil, &ExitError{Code: exitUsage, Err: err}
	}
	datasource.Merge(data, images)

	values, err := datasource.ParseAssignments(opts.set)
	if err != nil {
		return nil, &ExitError{Code: exitUsage, Err: err}
	}
	datasource.Merge(data, values)

	return data, nil
}

func (a *app) readJSON(ctx context.Context, location string) (docxgen.Context, error) {
	if location == "-" {
		return datasource.LoadJSON(os.Stdin)
	}
	raw, err := a.store.Read(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return docxgen.FromJSON(raw)
}

func (a *app) queryRows(ctx context.Context, opts renderOptions) (docxgen.Context, error) {
	dsn := a.settings.Postgres.DSN
	if dsn == "" {
		return nil, &ExitError{Code: exitUsage, Err: errors.New("--pg-query requires --pg-dsn or DOCXGEN_POSTGRES_DSN")}
	}

	src, err := datasource.Connect(ctx, dsn, a.logger.Named("postgres"))
	if err != nil {
		return nil, err
	}
	defer src.Close()

	args := make([]any, len(opts.pgArgs))
	for i, arg := range opts.pgArgs {
		args[i] = arg
	}
	return src.Bind(ctx, opts.pgBind, opts.pgQuery, args...)
}
