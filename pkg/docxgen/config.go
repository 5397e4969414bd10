package docxgen

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MissingPolicy decides what happens to a placeholder whose name is not bound.
type MissingPolicy string

const (
	// LeaveVerbatim keeps the token text in the output
	LeaveVerbatim MissingPolicy = "leave_verbatim"
	// ReplaceEmpty substitutes the empty string (an unbound loop yields zero rows)
	ReplaceEmpty MissingPolicy = "replace_empty"
	// FailOnMissing aborts generation with an UnboundPlaceholder error
	FailOnMissing MissingPolicy = "fail"
)

// InvalidImagePolicy decides what happens to an image payload that cannot be embedded.
type InvalidImagePolicy string

const (
	FailOnInvalidImage InvalidImagePolicy = "fail"
	SubstituteDefault  InvalidImagePolicy = "substitute_default"
)

const (
	// DefaultDPI is used to convert pixel sizes to EMU
	DefaultDPI = 96
	// DefaultMaxImageEMU bounds the larger side of an embedded image
	DefaultMaxImageEMU int64 = 1800000
)

// ValueHandler renders a bound value as placeholder text
type ValueHandler func(index int, name string, v Value) string

// Config contains all configuration options for document generation
type Config struct {
	// OnMissing controls unbound placeholders. Defaults to FailOnMissing.
	OnMissing MissingPolicy
	// OnInvalidImage controls image payloads that cannot be embedded. Defaults to FailOnInvalidImage.
	OnInvalidImage InvalidImagePolicy
	// DefaultImage is embedded in place of an invalid image under SubstituteDefault.
	// A 1x1 transparent PNG is used when nil.
	DefaultImage *Image
	// DPI converts pixel dimensions to EMU
	DPI int
	// MaxImageEMU scales images down so neither side exceeds it. 0 disables scaling.
	MaxImageEMU int64
	// MergeRepeatedCells vertically merges equal adjacent cells produced by a loop
	MergeRepeatedCells bool
	// ValueHandler, when set, renders every text or list value bound to a text
	// placeholder. It receives the index of the innermost loop record (-1
	// outside loops), the placeholder name and the bound value. Upper-casing
	// applies to its result.
	ValueHandler ValueHandler
	// Concurrency is the number of parts processed at once
	Concurrency int
	// CacheMaxSize is the maximum number of templates to cache. 0 disables caching.
	CacheMaxSize int
	// CacheTTL is the time-to-live for cached templates. 0 means no expiration.
	CacheTTL time.Duration
	// LogLevel controls the verbosity of logging (debug, info, warn, error)
	LogLevel string
}

var (
	globalConfig      = ConfigFromEnvironment()
	globalConfigMutex sync.RWMutex
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		OnMissing:      FailOnMissing,
		OnInvalidImage: FailOnInvalidImage,
		DPI:            DefaultDPI,
		MaxImageEMU:    DefaultMaxImageEMU,
		Concurrency:    runtime.GOMAXPROCS(0),
		CacheMaxSize:   100,
		CacheTTL:       0,
		LogLevel:       "info",
	}
}

// ConfigFromEnvironment creates a configuration from DOCXGEN_* environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()

	if val := os.Getenv("DOCXGEN_ON_MISSING"); val != "" {
		config.OnMissing = MissingPolicy(strings.ToLower(val))
	}

	if val := os.Getenv("DOCXGEN_ON_INVALID_IMAGE"); val != "" {
		config.OnInvalidImage = InvalidImagePolicy(strings.ToLower(val))
	}

	if val := os.Getenv("DOCXGEN_DPI"); val != "" {
		if dpi, err := strconv.Atoi(val); err == nil {
			config.DPI = dpi
		}
	}

	if val := os.Getenv("DOCXGEN_MAX_IMAGE_EMU"); val != "" {
		if emu, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.MaxImageEMU = emu
		}
	}

	if val := os.Getenv("DOCXGEN_MERGE_REPEATED_CELLS"); val != "" {
		config.MergeRepeatedCells = parseBool(val)
	}

	if val := os.Getenv("DOCXGEN_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Concurrency = n
		}
	}

	if val := os.Getenv("DOCXGEN_CACHE_MAX_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.CacheMaxSize = size
		}
	}

	if val := os.Getenv("DOCXGEN_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.CacheTTL = duration
		}
	}

	if val := os.Getenv("DOCXGEN_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	return config
}

// NewConfigWithDefaults creates a new configuration with defaults applied to unset fields
func NewConfigWithDefaults(overrides *Config) *Config {
	defaults := DefaultConfig()

	if overrides == nil {
		return defaults
	}

	config := *overrides

	if config.OnMissing == "" {
		config.OnMissing = defaults.OnMissing
	}
	if config.OnInvalidImage == "" {
		config.OnInvalidImage = defaults.OnInvalidImage
	}
	if config.DPI == 0 {
		config.DPI = defaults.DPI
	}
	if config.Concurrency == 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}

	return &config
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.OnMissing {
	case LeaveVerbatim, ReplaceEmpty, FailOnMissing:
	default:
		return fmt.Errorf("invalid missing placeholder policy: %q", c.OnMissing)
	}

	switch c.OnInvalidImage {
	case FailOnInvalidImage, SubstituteDefault:
	default:
		return fmt.Errorf("invalid image policy: %q", c.OnInvalidImage)
	}

	if c.DPI <= 0 {
		return errors.New("dpi must be positive")
	}

	if c.MaxImageEMU < 0 {
		return errors.New("max image size cannot be negative")
	}

	if c.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}

	if c.CacheMaxSize < 0 {
		return errors.New("cache max size cannot be negative")
	}

	if c.CacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	return nil
}

// GetGlobalConfig returns the global configuration
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	// Outside the lock, UpdateLoggerFromConfig reads the config again.
	UpdateLoggerFromConfig()
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
