package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docxgen/internal/storage"
	"github.com/benjaminschreck/go-docxgen/pkg/docxgen"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// app carries the state shared by all subcommands of one invocation
type app struct {
	viper      *viper.Viper
	configFile string
	settings   settings
	logger     *zap.Logger
	store      *storage.Store
}

func newRootCmd() *cobra.Command {
	a := &app{viper: viper.New(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "docxgen",
		Short: "Generate Word documents from DOCX templates",
		Long: `docxgen fills DOCX templates with data.

Templates are ordinary Word documents containing placeholders:

  {{name}}                 text
  {{^name}}                upper-cased text
  {{@logo}}                image
  {{#items}} ... {{/items}} table rows repeated per record ({{$index}} is the row number)

Data comes from a JSON file, name=value assignments, image files and
PostgreSQL queries. Templates and outputs may be local paths or s3://bucket/key.

Examples:
  docxgen render invoice.docx --data invoice.json --out invoice-42.docx
  docxgen render s3://templates/report.docx --pg-query "SELECT * FROM sales" --pg-bind sales --out report.docx
  docxgen inspect invoice.docx`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	// Global flags
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", defaultLogFormat, "log format (console or json)")

	root.AddCommand(newRenderCmd(a))
	root.AddCommand(newInspectCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// init loads settings and builds the logger and store for the running command
func (a *app) init(cmd *cobra.Command) error {
	s, err := loadSettings(a.viper, a.configFile, cmd)
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}
	a.settings = s

	logger, err := docxgen.NewLogger(docxgen.LogConfig{Level: s.LogLevel, Format: s.LogFormat})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	a.store = storage.New(s.S3, logger.Named("storage"))
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return run(ctx, newRootCmd(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, root *cobra.Command, args []string, stdout, stderr io.Writer) int {
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return exitFailure
	}
	return exitOK
}
