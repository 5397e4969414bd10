// Package datasource builds generation data from JSON documents, command line
// assignments and SQL queries.
package datasource

import (
	"fmt"
	"io"
	"strings"

	"github.com/benjaminschreck/go-docxgen/pkg/docxgen"
)

// LoadJSON decodes a JSON object from r.
func LoadJSON(r io.Reader) (docxgen.Context, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return docxgen.FromJSON(data)
}

// ParseAssignments parses name=value pairs into text values.
func ParseAssignments(pairs []string) (docxgen.Context, error) {
	ctx := make(docxgen.Context, len(pairs))
	for _, pair := range pairs {
		name, value, err := splitAssignment(pair)
		if err != nil {
			return nil, err
		}
		ctx[name] = docxgen.Text(value)
	}
	return ctx, nil
}

// LoadImages parses name=location pairs and binds the content read from each
// location as an image.
func LoadImages(pairs []string, read func(location string) ([]byte, error)) (docxgen.Context, error) {
	ctx := make(docxgen.Context, len(pairs))
	for _, pair := range pairs {
		name, location, err := splitAssignment(pair)
		if err != nil {
			return nil, err
		}
		data, err := read(location)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", name, err)
		}
		ctx[name] = docxgen.ImageOf(docxgen.Image{Data: data})
	}
	return ctx, nil
}

func splitAssignment(pair string) (string, string, error) {
	name, value, ok := strings.Cut(pair, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid assignment %q: expected name=value", pair)
	}
	return name, value, nil
}

// Merge copies the values of each source into dst. Later sources win.
func Merge(dst docxgen.Context, sources ...docxgen.Context) docxgen.Context {
	if dst == nil {
		dst = make(docxgen.Context)
	}
	for _, src := range sources {
		for name, v := range src {
			dst[name] = v
		}
	}
	return dst
}
