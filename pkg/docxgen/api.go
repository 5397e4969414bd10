package docxgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Engine prepares templates and generates documents from them.
// Use New() to create a new engine instance.
type Engine struct {
	config *Config
	cache  *TemplateCache
	logger *zap.Logger
}

// New creates an engine with the global configuration.
func New() *Engine {
	return NewWithConfig(GetGlobalConfig())
}

// NewWithConfig creates an engine with a custom configuration.
func NewWithConfig(config *Config) *Engine {
	return &Engine{
		config: config,
		cache:  NewTemplateCacheWithConfig(CacheConfig{MaxSize: config.CacheMaxSize, TTL: config.CacheTTL}),
	}
}

// Option represents a configuration option for the engine.
type Option func(*Engine)

// WithConfig replaces the engine configuration.
func WithConfig(config *Config) Option {
	return func(e *Engine) {
		c := *config
		e.config = &c
	}
}

// WithCache sets the cache size (0 disables caching).
func WithCache(maxSize int) Option {
	return func(e *Engine) {
		e.config.CacheMaxSize = maxSize
	}
}

// WithLogger sets the logger used by the engine and its templates.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithOnMissing sets the policy for unbound placeholders.
func WithOnMissing(policy MissingPolicy) Option {
	return func(e *Engine) {
		e.config.OnMissing = policy
	}
}

// WithOnInvalidImage sets the policy for image payloads that cannot be embedded.
func WithOnInvalidImage(policy InvalidImagePolicy) Option {
	return func(e *Engine) {
		e.config.OnInvalidImage = policy
	}
}

// WithDefaultImage sets the image substituted for invalid payloads.
func WithDefaultImage(img Image) Option {
	return func(e *Engine) {
		e.config.DefaultImage = &img
	}
}

func WithDPI(dpi int) Option {
	return func(e *Engine) {
		e.config.DPI = dpi
	}
}

func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.config.Concurrency = n
	}
}

func WithMergeRepeatedCells(merge bool) Option {
	return func(e *Engine) {
		e.config.MergeRepeatedCells = merge
	}
}

// WithValueHandler sets a function that renders text values, for instance
// to format numbers per locale. A nil handler restores the default.
func WithValueHandler(h ValueHandler) Option {
	return func(e *Engine) {
		e.config.ValueHandler = h
	}
}

// NewWithOptions creates a new engine with the specified options applied
// to a copy of the global configuration.
func NewWithOptions(opts ...Option) *Engine {
	config := *GetGlobalConfig()
	e := &Engine{config: &config}
	for _, opt := range opts {
		opt(e)
	}
	e.cache = NewTemplateCacheWithConfig(CacheConfig{MaxSize: e.config.CacheMaxSize, TTL: e.config.CacheTTL})
	return e
}

func (e *Engine) log() *zap.Logger {
	if e.logger != nil {
		return e.logger
	}
	return GetLogger()
}

// Prepare reads and parses a template from r.
func (e *Engine) Prepare(ctx context.Context, r io.Reader) (*Template, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewDocumentError("read", "", err)
	}
	return e.PrepareBytes(ctx, "template", data)
}

// PrepareBytes parses a template held in memory. name labels the template
// in logs and metrics.
func (e *Engine) PrepareBytes(ctx context.Context, name string, data []byte) (*Template, error) {
	return prepareTemplate(ctx, name, data, e.config, e.log())
}

// PrepareFile loads and parses a template from a file path.
// The template is cached if caching is enabled in the configuration.
func (e *Engine) PrepareFile(ctx context.Context, path string) (*Template, error) {
	return e.cache.GetOrPrepare(path, func() (*Template, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open template file: %w", err)
		}
		return e.PrepareBytes(ctx, filepath.Base(path), data)
	})
}

// Generate prepares template and generates a document from it in one step.
func (e *Engine) Generate(ctx context.Context, template []byte, data Context) ([]byte, error) {
	tmpl, err := e.PrepareBytes(ctx, "template", template)
	if err != nil {
		return nil, err
	}
	defer tmpl.Close()
	return tmpl.Generate(ctx, data)
}

// GenerateTo is like Generate but streams the result to w.
func (e *Engine) GenerateTo(ctx context.Context, template io.Reader, data Context, w io.Writer) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(template); err != nil {
		return NewDocumentError("read", "", err)
	}
	tmpl, err := e.PrepareBytes(ctx, "template", buf.Bytes())
	if err != nil {
		return err
	}
	defer tmpl.Close()
	return tmpl.GenerateTo(ctx, data, w)
}

// Config returns the engine's configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// ClearCache removes all templates from the cache.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// Close releases any resources held by the engine.
func (e *Engine) Close() error {
	return e.cache.Close()
}

// DefaultEngine is the global default engine instance.
var DefaultEngine = New()

// Generate binds data to a template package and returns the generated
// package. Options apply to this call only.
func Generate(ctx context.Context, template []byte, data Context, opts ...Option) ([]byte, error) {
	if len(opts) == 0 {
		return DefaultEngine.Generate(ctx, template, data)
	}
	return NewWithOptions(opts...).Generate(ctx, template, data)
}

// Prepare parses a template from r using the default engine.
func Prepare(ctx context.Context, r io.Reader) (*Template, error) {
	return DefaultEngine.Prepare(ctx, r)
}

// PrepareFile loads a template from a file path using the default engine.
func PrepareFile(ctx context.Context, path string) (*Template, error) {
	return DefaultEngine.PrepareFile(ctx, path)
}

// ClearCache clears the default engine's template cache.
func ClearCache() {
	DefaultEngine.ClearCache()
}
