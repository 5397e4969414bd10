package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-docxgen/internal/storage"
	"github.com/benjaminschreck/go-docxgen/pkg/docxgen"
)

type placeholderJSON struct {
	Part     string `json:"part"`
	Location string `json:"location"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Raw      string `json:"raw"`
}

func newInspectCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect TEMPLATE",
		Short: "List the placeholders of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.inspect(cmd.Context(), args[0], asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print placeholders as JSON")
	cmd.Flags().String("s3-region", "", "S3 region")
	cmd.Flags().String("s3-endpoint", "", "S3 endpoint for S3-compatible storage")
	cmd.Flags().Bool("s3-path-style", false, "use path-style S3 addressing")
	return cmd
}

func (a *app) inspect(ctx context.Context, template string, asJSON bool, w io.Writer) error {
	src, err := a.store.Read(ctx, template)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	loc, _ := storage.Parse(template)

	engine := docxgen.NewWithOptions(docxgen.WithCache(0), docxgen.WithLogger(a.logger.Named("docxgen")))
	defer engine.Close()

	tmpl, err := engine.PrepareBytes(ctx, loc.Base(), src)
	if err != nil {
		return classify(err)
	}
	defer tmpl.Close()

	found := tmpl.Placeholders()
	if asJSON {
		out := make([]placeholderJSON, len(found))
		for i, p := range found {
			out[i] = placeholderJSON{Part: p.Part, Location: p.Location, Type: p.Type.String(), Name: p.Name, Raw: p.Raw}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PART\tTYPE\tNAME\tLOCATION")
	for _, p := range found {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Part, p.Type, p.Name, p.Location)
	}
	return tw.Flush()
}
