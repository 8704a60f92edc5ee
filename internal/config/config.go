// Package config loads datasweeper settings from defaults, an optional YAML
// file and SWEEPER_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable, e.g. SWEEPER_LOGGING_LEVEL.
const EnvPrefix = "SWEEPER"

// DefaultFile is read when SWEEPER_CONFIG is not set.
const DefaultFile = "sweeper.yaml"

const (
	SourceOriginal = "original"
	SourceEdited   = "edited"
)

// Config holds all application configuration
type Config struct {
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Output  OutputConfig  `yaml:"output" envconfig:"OUTPUT"`
	Preview PreviewConfig `yaml:"preview" envconfig:"PREVIEW"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
	// File receives log output; empty means stderr, or nothing in the terminal UI.
	File string `yaml:"file" envconfig:"FILE"`
}

// OutputConfig controls where and what conversions write.
type OutputConfig struct {
	Dir string `yaml:"dir" envconfig:"DIR" validate:"required"`
	// Source picks the table that is exported: the table as loaded or the
	// cleaned copy.
	Source string `yaml:"source" envconfig:"SOURCE" validate:"oneof=original edited"`
}

// PreviewConfig sizes previews and charts.
type PreviewConfig struct {
	Rows         int `yaml:"rows" envconfig:"ROWS" validate:"min=1,max=10000"`
	ChartWidth   int `yaml:"chart_width" envconfig:"CHART_WIDTH" validate:"min=100"`
	ChartHeight  int `yaml:"chart_height" envconfig:"CHART_HEIGHT" validate:"min=100"`
	ChartMaxBars int `yaml:"chart_max_bars" envconfig:"CHART_MAX_BARS" validate:"min=10,max=5000"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"min=1024"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Output:  OutputConfig{Dir: ".", Source: SourceOriginal},
		Preview: PreviewConfig{Rows: 20, ChartWidth: 1024, ChartHeight: 512, ChartMaxBars: 500},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadBytes:  32 << 20,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the config file and the
// environment, then validates it.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv(EnvPrefix + "_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := loadFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// only variables that are set override the file
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration against its field rules.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// ExportEdited reports whether conversions export the cleaned table.
func (c *Config) ExportEdited() bool {
	return c.Output.Source == SourceEdited
}
