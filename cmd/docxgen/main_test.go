package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wordNamespaces = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

// writeTemplate writes a minimal DOCX whose body holds the given paragraphs
// followed by a one-row loop table over items.
func writeTemplate(t *testing.T, dir string, paragraphs ...string) string {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>{{#items}}{{name}}{{/items}}</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`)

	parts := []struct{ name, data string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document ` + wordNamespaces + `><w:body>` + body.String() + `</w:body></w:document>`},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, "template.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func documentXML(t *testing.T, docx []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(data)
		}
	}
	t.Fatal("word/document.xml not found")
	return ""
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), newRootCmd(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := execute(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "docxgen dev (built from source)\n", out)
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "Customer: {{customer.name}}", "Ref: {{^ref}}")
	data := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(data, []byte(`{"customer": {"name": "Acme"}, "items": [{"name": "bolt"}, {"name": "nut"}]}`), 0o644))
	out := filepath.Join(dir, "out.docx")

	code, _, stderr := execute(t, "render", tmpl, "--data", data, "--set", "ref=inv-42", "--out", out)
	require.Equal(t, exitOK, code, stderr)

	docx, err := os.ReadFile(out)
	require.NoError(t, err)
	doc := documentXML(t, docx)
	assert.Contains(t, doc, "Customer: Acme")
	assert.Contains(t, doc, "Ref: INV-42")
	assert.Contains(t, doc, ">bolt<")
	assert.Contains(t, doc, ">nut<")
	assert.NotContains(t, doc, "{{")
}

func TestRender_Stdout(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "{{greeting}}")

	code, out, stderr := execute(t, "render", tmpl, "--set", "greeting=hello", "--on-missing", "replace_empty", "--out", "-")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, documentXML(t, []byte(out)), "hello")
}

func TestRender_UnboundPlaceholder(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "{{missing}}")
	out := filepath.Join(dir, "out.docx")

	code, _, stderr := execute(t, "render", tmpl, "--set", "other=x", "--out", out)
	assert.Equal(t, exitTemplate, code)
	assert.Contains(t, stderr, "missing")

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no output on error")
}

func TestRender_Policies(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "[{{missing}}]")
	out := filepath.Join(dir, "out.docx")

	t.Run("flag", func(t *testing.T) {
		code, _, stderr := execute(t, "render", tmpl, "--on-missing", "leave_verbatim", "--out", out)
		require.Equal(t, exitOK, code, stderr)
		docx, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, documentXML(t, docx), "[{{missing}}]")
	})

	t.Run("config file", func(t *testing.T) {
		cfg := filepath.Join(dir, "docxgen.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("on_missing: replace_empty\n"), 0o644))

		code, _, stderr := execute(t, "render", tmpl, "--config", cfg, "--out", out)
		require.Equal(t, exitOK, code, stderr)
		docx, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, documentXML(t, docx), "[]")
	})

	t.Run("environment overrides config file", func(t *testing.T) {
		cfg := filepath.Join(dir, "docxgen.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("on_missing: replace_empty\n"), 0o644))
		t.Setenv("DOCXGEN_ON_MISSING", "leave_verbatim")

		code, _, stderr := execute(t, "render", tmpl, "--config", cfg, "--out", out)
		require.Equal(t, exitOK, code, stderr)
		docx, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, documentXML(t, docx), "[{{missing}}]")
	})

	t.Run("flag overrides environment", func(t *testing.T) {
		t.Setenv("DOCXGEN_ON_MISSING", "leave_verbatim")

		code, _, stderr := execute(t, "render", tmpl, "--on-missing", "replace_empty", "--out", out)
		require.Equal(t, exitOK, code, stderr)
		docx, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, documentXML(t, docx), "[]")
	})

	t.Run("invalid policy", func(t *testing.T) {
		code, _, stderr := execute(t, "render", tmpl, "--on-missing", "ignore", "--out", out)
		assert.Equal(t, exitUsage, code)
		assert.Contains(t, stderr, "invalid missing placeholder policy")
	})
}

func TestRender_UsageErrors(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "x")
	out := filepath.Join(dir, "out.docx")

	tests := []struct {
		name string
		args []string
		code int
		msg  string
	}{
		{"bad assignment", []string{"--set", "novalue"}, exitUsage, "expected name=value"},
		{"query without dsn", []string{"--pg-query", "SELECT 1"}, exitUsage, "--pg-dsn"},
		{"missing data file", []string{"--data", filepath.Join(dir, "nope.json")}, exitUsage, "failed to read data"},
		{"missing config file", []string{"--config", filepath.Join(dir, "nope.yaml")}, exitUsage, "failed to read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"render", tmpl, "--out", out}, tt.args...)
			code, _, stderr := execute(t, args...)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, stderr, tt.msg)
		})
	}

	t.Run("missing template", func(t *testing.T) {
		code, _, stderr := execute(t, "render", filepath.Join(dir, "nope.docx"), "--out", out)
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr, "failed to read template")
	})

	t.Run("out is required", func(t *testing.T) {
		code, _, _ := execute(t, "render", tmpl)
		assert.Equal(t, exitFailure, code)
	})
}

func TestRender_MetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "{{a}}")
	metricsPath := filepath.Join(dir, "docxgen.prom")

	code, _, stderr := execute(t, "render", tmpl,
		"--set", "a=1", "--on-missing", "replace_empty",
		"--out", filepath.Join(dir, "out.docx"),
		"--metrics-textfile", metricsPath)
	require.Equal(t, exitOK, code, stderr)

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `docxgen_generations_total{status="success",template="template.docx"}`)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "{{customer}} {{@logo}}")

	t.Run("table", func(t *testing.T) {
		code, out, stderr := execute(t, "inspect", tmpl)
		require.Equal(t, exitOK, code, stderr)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 6)
		assert.True(t, strings.HasPrefix(lines[0], "PART"))
		assert.Contains(t, lines[1], "customer")
		assert.Contains(t, lines[2], "image")
	})

	t.Run("json", func(t *testing.T) {
		code, out, stderr := execute(t, "inspect", tmpl, "--json")
		require.Equal(t, exitOK, code, stderr)

		var found []placeholderJSON
		require.NoError(t, json.Unmarshal([]byte(out), &found))
		var names []string
		for _, p := range found {
			assert.Equal(t, "word/document.xml", p.Part)
			names = append(names, p.Type+":"+p.Name)
		}
		assert.Equal(t, []string{"text:customer", "image:logo", "loop-start:items", "text:name", "loop-end:items"}, names)
	})
}
