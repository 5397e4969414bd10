package docxgen

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEngine_PrepareFileUsesCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letter.docx")
	require.NoError(t, os.WriteFile(path, newTestDocx(t, para("Dear {{name}}")), 0o644))

	engine := NewWithOptions(WithConfig(DefaultConfig()), WithCache(4))
	defer engine.Close()

	first, err := engine.PrepareFile(context.Background(), path)
	require.NoError(t, err)
	second, err := engine.PrepareFile(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "letter.docx", first.Name())

	engine.ClearCache()
	third, err := engine.PrepareFile(context.Background(), path)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestEngine_PrepareFileMissing(t *testing.T) {
	_, err := testEngine().PrepareFile(context.Background(), filepath.Join(t.TempDir(), "nope.docx"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEngine_Prepare(t *testing.T) {
	tmpl, err := testEngine().Prepare(context.Background(), bytes.NewReader(newTestDocx(t, para("{{a}}"))))
	require.NoError(t, err)

	out, err := tmpl.Generate(context.Background(), Context{"a": Text("b")})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, paragraphTexts(t, out))
}

func TestEngine_GenerateTo(t *testing.T) {
	var buf bytes.Buffer
	err := testEngine().GenerateTo(context.Background(), bytes.NewReader(newTestDocx(t, para("{{a}}"))), Context{"a": Text("streamed")}, &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"streamed"}, paragraphTexts(t, buf.Bytes()))
}

func TestGenerate_PackageLevelOptions(t *testing.T) {
	tmpl := newTestDocx(t, para("[{{missing}}]"))

	out, err := Generate(context.Background(), tmpl, Context{}, WithConfig(DefaultConfig()), WithOnMissing(ReplaceEmpty))
	require.NoError(t, err)
	assert.Equal(t, []string{"[]"}, paragraphTexts(t, out))
}

func TestNewWithOptions_DoesNotTouchGlobalConfig(t *testing.T) {
	before := GetGlobalConfig()
	engine := NewWithOptions(WithOnMissing(LeaveVerbatim), WithDPI(300), WithConcurrency(2))

	assert.Equal(t, LeaveVerbatim, engine.Config().OnMissing)
	assert.Equal(t, 300, engine.Config().DPI)
	assert.Equal(t, 2, engine.Config().Concurrency)
	assert.Equal(t, before, GetGlobalConfig())
}

func TestEngine_LogsWithRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	engine := testEngine(WithLogger(zap.New(core)), WithOnInvalidImage(SubstituteDefault))

	_, err := engine.Generate(context.Background(), newTestDocx(t, para("{{@logo}}")), Context{"logo": Text("!!!")})
	require.NoError(t, err)

	warnings := logs.FilterMessage("substituting default image").All()
	require.Len(t, warnings, 1)
	fields := warnings[0].ContextMap()
	assert.Equal(t, "logo", fields["name"])
	assert.Equal(t, documentPartName, fields["part"])
	assert.NotEmpty(t, fields["request_id"])

	assert.Len(t, logs.FilterMessage("generated document").All(), 1)
}
