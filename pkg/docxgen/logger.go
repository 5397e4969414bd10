package docxgen

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig holds logger construction settings
type LogConfig struct {
	Level       string
	Format      string // "json" or "console"
	OutputPath  string
	Development bool
}

var (
	globalLogger     *zap.Logger
	globalLevel      = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	globalLoggerMu   sync.RWMutex
	globalLoggerOnce sync.Once
)

// initGlobalLogger installs a no-op logger. Callers opt in to output with
// EnableLogging or SetLogger.
func initGlobalLogger() {
	globalLoggerOnce.Do(func() {
		if lvl, err := zapcore.ParseLevel(GetGlobalConfig().LogLevel); err == nil {
			globalLevel.SetLevel(lvl)
		}
		globalLoggerMu.Lock()
		if globalLogger == nil {
			globalLogger = zap.NewNop()
		}
		globalLoggerMu.Unlock()
	})
}

// EnableLogging replaces the package logger with one writing to stderr in the
// given format ("json" or "console"). Its level follows the global
// configuration's LogLevel.
func EnableLogging(format string) error {
	initGlobalLogger()
	logger, err := buildLogger(LogConfig{Format: format}, globalLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	SetLogger(logger)
	return nil
}

// NewLogger builds a zap logger. Unknown levels fall back to info.
func NewLogger(config LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(config.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return buildLogger(config, level)
}

func buildLogger(config LogConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	var zapConfig zap.Config
	if config.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level = level

	if config.Format == "console" {
		zapConfig.Encoding = "console"
	} else {
		zapConfig.Encoding = "json"
	}

	zapConfig.OutputPaths = []string{"stderr"}
	if config.OutputPath != "" {
		zapConfig.OutputPaths = []string{config.OutputPath}
	}

	return zapConfig.Build()
}

// SetLogger replaces the package logger. A nil logger silences logging.
func SetLogger(logger *zap.Logger) {
	initGlobalLogger()
	if logger == nil {
		logger = zap.NewNop()
	}
	globalLoggerMu.Lock()
	globalLogger = logger
	globalLoggerMu.Unlock()
}

// GetLogger returns the package logger
func GetLogger() *zap.Logger {
	initGlobalLogger()
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// UpdateLoggerFromConfig updates the level of the default logger from the global configuration.
func UpdateLoggerFromConfig() {
	initGlobalLogger()
	if lvl, err := zapcore.ParseLevel(GetGlobalConfig().LogLevel); err == nil {
		globalLevel.SetLevel(lvl)
	}
}
