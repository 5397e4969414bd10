package docxgen

import (
	"runtime"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.OnMissing != FailOnMissing {
		t.Errorf("DefaultConfig OnMissing = %q, want %q", config.OnMissing, FailOnMissing)
	}
	if config.OnInvalidImage != FailOnInvalidImage {
		t.Errorf("DefaultConfig OnInvalidImage = %q, want %q", config.OnInvalidImage, FailOnInvalidImage)
	}
	if config.DPI != 96 {
		t.Errorf("DefaultConfig DPI = %d, want 96", config.DPI)
	}
	if config.Concurrency != runtime.GOMAXPROCS(0) {
		t.Errorf("DefaultConfig Concurrency = %d, want %d", config.Concurrency, runtime.GOMAXPROCS(0))
	}
	if config.CacheMaxSize != 100 {
		t.Errorf("DefaultConfig CacheMaxSize = %d, want 100", config.CacheMaxSize)
	}
	if config.MergeRepeatedCells {
		t.Error("DefaultConfig MergeRepeatedCells = true, want false")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig is invalid: %v", err)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, config *Config)
	}{
		{
			name:    "missing policy",
			envVars: map[string]string{"DOCXGEN_ON_MISSING": "Replace_Empty"},
			check: func(t *testing.T, config *Config) {
				if config.OnMissing != ReplaceEmpty {
					t.Errorf("OnMissing = %q, want %q", config.OnMissing, ReplaceEmpty)
				}
			},
		},
		{
			name:    "image policy",
			envVars: map[string]string{"DOCXGEN_ON_INVALID_IMAGE": "substitute_default"},
			check: func(t *testing.T, config *Config) {
				if config.OnInvalidImage != SubstituteDefault {
					t.Errorf("OnInvalidImage = %q, want %q", config.OnInvalidImage, SubstituteDefault)
				}
			},
		},
		{
			name: "image sizing",
			envVars: map[string]string{
				"DOCXGEN_DPI":           "300",
				"DOCXGEN_MAX_IMAGE_EMU": "5000000",
			},
			check: func(t *testing.T, config *Config) {
				if config.DPI != 300 {
					t.Errorf("DPI = %d, want 300", config.DPI)
				}
				if config.MaxImageEMU != 5000000 {
					t.Errorf("MaxImageEMU = %d, want 5000000", config.MaxImageEMU)
				}
			},
		},
		{
			name: "generation",
			envVars: map[string]string{
				"DOCXGEN_MERGE_REPEATED_CELLS": "yes",
				"DOCXGEN_CONCURRENCY":          "3",
			},
			check: func(t *testing.T, config *Config) {
				if !config.MergeRepeatedCells {
					t.Error("MergeRepeatedCells = false, want true")
				}
				if config.Concurrency != 3 {
					t.Errorf("Concurrency = %d, want 3", config.Concurrency)
				}
			},
		},
		{
			name: "cache",
			envVars: map[string]string{
				"DOCXGEN_CACHE_MAX_SIZE": "50",
				"DOCXGEN_CACHE_TTL":      "5m",
			},
			check: func(t *testing.T, config *Config) {
				if config.CacheMaxSize != 50 {
					t.Errorf("CacheMaxSize = %d, want 50", config.CacheMaxSize)
				}
				if config.CacheTTL != 5*time.Minute {
					t.Errorf("CacheTTL = %v, want 5m", config.CacheTTL)
				}
			},
		},
		{
			name:    "invalid numbers are ignored",
			envVars: map[string]string{"DOCXGEN_DPI": "high"},
			check: func(t *testing.T, config *Config) {
				if config.DPI != DefaultDPI {
					t.Errorf("DPI = %d, want %d", config.DPI, DefaultDPI)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			tt.check(t, ConfigFromEnvironment())
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"leave verbatim", func(c *Config) { c.OnMissing = LeaveVerbatim }, false},
		{"unknown missing policy", func(c *Config) { c.OnMissing = "ignore" }, true},
		{"unknown image policy", func(c *Config) { c.OnInvalidImage = "skip" }, true},
		{"zero dpi", func(c *Config) { c.DPI = 0 }, true},
		{"negative max image size", func(c *Config) { c.MaxImageEMU = -1 }, true},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, true},
		{"negative cache size", func(c *Config) { c.CacheMaxSize = -1 }, true},
		{"negative TTL", func(c *Config) { c.CacheTTL = -time.Second }, true},
		{"invalid log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewConfigWithDefaults(t *testing.T) {
	config := NewConfigWithDefaults(&Config{OnMissing: LeaveVerbatim, CacheMaxSize: 5})

	if config.OnMissing != LeaveVerbatim {
		t.Errorf("OnMissing = %q, want %q", config.OnMissing, LeaveVerbatim)
	}
	if config.OnInvalidImage != FailOnInvalidImage {
		t.Errorf("OnInvalidImage = %q, want default", config.OnInvalidImage)
	}
	if config.DPI != DefaultDPI || config.Concurrency <= 0 || config.LogLevel != "info" {
		t.Errorf("defaults not applied: %+v", config)
	}
	if config.CacheMaxSize != 5 {
		t.Errorf("CacheMaxSize = %d, want 5", config.CacheMaxSize)
	}
}

func TestPrepareRejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.OnMissing = "sometimes"

	_, err := NewWithConfig(config).PrepareBytes(t.Context(), "t", newTestDocx(t, para("x")))
	if err == nil {
		t.Fatal("expected an error for an invalid configuration")
	}
}
