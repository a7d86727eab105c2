package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Logging    LoggingConfig    `koanf:"logging"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Generation GenerationConfig `koanf:"generation"`

	// Configuration file path
	ConfigFile string `env:"FORMAI_CONFIG_FILE" koanf:"-"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	// HTTP server address
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080" koanf:"http_addr" validate:"required"`

	// gRPC server address
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50051" koanf:"grpc_addr"`

	// Enable the gRPC listener
	GRPCEnabled bool `env:"GRPC_ENABLED" envDefault:"true" koanf:"grpc_enabled"`

	// Graceful shutdown budget
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s" koanf:"shutdown_timeout" validate:"gt=0"`
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	// Data directory path
	DataDir string `env:"DATA_DIR" envDefault:"./data" koanf:"data_dir" validate:"required"`

	// Forms database file, defaults to <data_dir>/forms.db
	FormsDB string `env:"FORMS_DB" koanf:"forms_db"`

	// Number of test records deleted per batch during publish
	PurgeBatchSize int `env:"PURGE_BATCH_SIZE" envDefault:"500" koanf:"purge_batch_size" validate:"min=1,max=100000"`

	// Interval between namespace checkpoints, 0 disables them
	CheckpointInterval time.Duration `env:"CHECKPOINT_INTERVAL" envDefault:"5m" koanf:"checkpoint_interval" validate:"gte=0"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	// Log level: "debug", "info", "warn", "error"
	Level string `env:"LOG_LEVEL" envDefault:"info" koanf:"level"`

	// Log format: "json", "text"
	Format string `env:"LOG_FORMAT" envDefault:"json" koanf:"format"`

	// Log file path (empty for stdout)
	Output string `env:"LOG_OUTPUT" envDefault:"" koanf:"output"`

	// Enable log rotation
	Rotation bool `env:"LOG_ROTATION" envDefault:"true" koanf:"rotation"`

	// Max log file size in MB
	MaxSize int `env:"LOG_MAX_SIZE" envDefault:"100" koanf:"max_size" validate:"min=1"`

	// Number of backup files to keep
	MaxBackups int `env:"LOG_MAX_BACKUPS" envDefault:"7" koanf:"max_backups" validate:"min=0"`

	// Max age in days
	MaxAge int `env:"LOG_MAX_AGE" envDefault:"30" koanf:"max_age" validate:"min=0"`
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	// Enable Prometheus metrics
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true" koanf:"enabled"`

	// Metrics server address
	Addr string `env:"METRICS_ADDR" envDefault:":9090" koanf:"addr"`

	// Enable OpenTelemetry tracing
	TracingEnabled bool `env:"TRACING_ENABLED" envDefault:"false" koanf:"tracing_enabled"`

	// OpenTelemetry endpoint
	TracingEndpoint string `env:"TRACING_ENDPOINT" envDefault:"" koanf:"tracing_endpoint"`

	// OTLP exporter: "grpc" or "http"
	TracingExporter string `env:"TRACING_EXPORTER" envDefault:"grpc" koanf:"tracing_exporter"`

	// Sampling probability for the ratio strategy
	TracingSampleRatio float64 `env:"TRACING_SAMPLE_RATIO" envDefault:"1" koanf:"tracing_sample_ratio" validate:"gte=0,lte=1"`
}

// GenerationConfig holds settings for the text generation service
type GenerationConfig struct {
	// API key; ANTHROPIC_API_KEY is used when unset
	APIKey string `env:"AI_API_KEY" koanf:"api_key"`

	// Model identifier
	Model string `env:"AI_MODEL" envDefault:"claude-sonnet-4-5-20250929" koanf:"model" validate:"required"`

	// Maximum output tokens
	MaxTokens int `env:"AI_MAX_TOKENS" envDefault:"4096" koanf:"max_tokens" validate:"min=256,max=64000"`

	// Per attempt timeout
	Timeout time.Duration `env:"AI_TIMEOUT" envDefault:"90s" koanf:"timeout" validate:"gt=0"`

	// Retries after the first generation attempt
	MaxRetries int `env:"AI_MAX_RETRIES" envDefault:"2" koanf:"max_retries" validate:"min=0,max=10"`
}

// Load loads configuration from multiple sources, later ones winning:
// 1. Default values
// 2. Environment variables
// 3. Configuration file (JSON), when path or FORMAI_CONFIG_FILE is set
// Command line flags are applied by the caller before Validate.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if path != "" {
		cfg.ConfigFile = path
	}

	if cfg.ConfigFile != "" {
		if err := loadFromFile(cfg, cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Normalize cleans paths and fills derived defaults
func (c *Config) Normalize() {
	c.Storage.DataDir = filepath.Clean(c.Storage.DataDir)
	if c.Storage.FormsDB == "" {
		c.Storage.FormsDB = filepath.Join(c.Storage.DataDir, "forms.db")
	}
	if c.Generation.APIKey == "" {
		c.Generation.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	validExporters := map[string]bool{
		"grpc": true,
		"http": true,
	}
	if !validExporters[strings.ToLower(c.Metrics.TracingExporter)] {
		return fmt.Errorf("invalid tracing exporter: %s", c.Metrics.TracingExporter)
	}

	if c.Metrics.TracingEnabled && c.Metrics.TracingEndpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}

	if c.Server.GRPCEnabled && c.Server.GRPCAddr == "" {
		return fmt.Errorf("grpc server address cannot be empty when grpc is enabled")
	}

	return nil
}

// loadFromFile overlays a JSON configuration file onto cfg
func loadFromFile(cfg *Config, path string) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return err
	}
	return k.Unmarshal("", cfg)
}
