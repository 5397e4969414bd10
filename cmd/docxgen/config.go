package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/benjaminschreck/go-docxgen/internal/storage"
	"github.com/benjaminschreck/go-docxgen/pkg/docxgen"
)

const (
	defaultLogLevel  = "warn"
	defaultLogFormat = "console"
	envPrefix        = "DOCXGEN"
)

// settings is the merged CLI configuration. Precedence, highest first:
// flags, DOCXGEN_* environment variables, config file, defaults.
type settings struct {
	LogLevel       string           `mapstructure:"log_level"`
	LogFormat      string           `mapstructure:"log_format"`
	OnMissing      string           `mapstructure:"on_missing"`
	OnInvalidImage string           `mapstructure:"on_invalid_image"`
	DefaultImage   string           `mapstructure:"default_image"`
	DPI            int              `mapstructure:"dpi"`
	MaxImageEMU    int64            `mapstructure:"max_image_emu"`
	MergeCells     bool             `mapstructure:"merge_cells"`
	Concurrency    int              `mapstructure:"concurrency"`
	Postgres       postgresSettings `mapstructure:"postgres"`
	S3             storage.S3Config `mapstructure:"s3"`
}

type postgresSettings struct {
	DSN string `mapstructure:"dsn"`
}

// flagKeys maps flag names to configuration keys
var flagKeys = map[string]string{
	"log-level":        "log_level",
	"log-format":       "log_format",
	"on-missing":       "on_missing",
	"on-invalid-image": "on_invalid_image",
	"default-image":    "default_image",
	"dpi":              "dpi",
	"max-image-emu":    "max_image_emu",
	"merge-cells":      "merge_cells",
	"concurrency":      "concurrency",
	"pg-dsn":           "postgres.dsn",
	"s3-region":        "s3.region",
	"s3-endpoint":      "s3.endpoint",
	"s3-path-style":    "s3.use_path_style",
}

func loadSettings(v *viper.Viper, configFile string, cmd *cobra.Command) (settings, error) {
	defaults := docxgen.DefaultConfig()
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_format", defaultLogFormat)
	v.SetDefault("on_missing", string(defaults.OnMissing))
	v.SetDefault("on_invalid_image", string(defaults.OnInvalidImage))
	v.SetDefault("default_image", "")
	v.SetDefault("dpi", defaults.DPI)
	v.SetDefault("max_image_emu", defaults.MaxImageEMU)
	v.SetDefault("merge_cells", false)
	v.SetDefault("concurrency", 0)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.use_path_style", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return settings{}, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return settings{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return s, nil
}

// engineConfig converts the settings into a validated generation config
func (s settings) engineConfig() (*docxgen.Config, error) {
	cfg := docxgen.DefaultConfig()
	cfg.OnMissing = docxgen.MissingPolicy(strings.ToLower(s.OnMissing))
	cfg.OnInvalidImage = docxgen.InvalidImagePolicy(strings.ToLower(s.OnInvalidImage))
	cfg.DPI = s.DPI
	cfg.MaxImageEMU = s.MaxImageEMU
	cfg.MergeRepeatedCells = s.MergeCells
	if s.Concurrency > 0 {
		cfg.Concurrency = s.Concurrency
	}
	cfg.CacheMaxSize = 0
	cfg.LogLevel = s.LogLevel

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
