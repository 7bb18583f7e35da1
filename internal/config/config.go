// Package config provides configuration management for the webhook worker.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Environments accepted by ValidEnvironment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Configuration validation errors.
var (
	ErrInvalidEnvironment = errors.New("environment must be one of: development, staging, production")
	ErrBatchBounds        = errors.New("batch.min_size cannot exceed batch.max_size")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Config represents the complete worker configuration.
type Config struct {
	Environment string          `yaml:"environment" validate:"required"`
	Source      SourceConfig    `yaml:"source"`
	Retry       RetryPolicy     `yaml:"retry"`
	Batch       BatchConfig     `yaml:"batch"`
	Selection   SelectionConfig `yaml:"selection"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	Output      OutputConfig    `yaml:"output"`
	History     HistoryConfig   `yaml:"history"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// SourceConfig describes the remote batch endpoint.
type SourceConfig struct {
	URL       string `yaml:"url" validate:"required,url"`
	UserAgent string `yaml:"user_agent"`
	TimeoutMs int    `yaml:"timeout_ms" validate:"gte=1"`
	MaxBodyKb int    `yaml:"max_body_kb" validate:"gte=1"`
}

// GetTimeout returns the request timeout duration.
func (s *SourceConfig) GetTimeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts" validate:"gte=1"`
	InitialDelayMs    int     `yaml:"initial_delay_ms" validate:"gte=0"`
	MaxDelayMs        int     `yaml:"max_delay_ms" validate:"gte=0"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" validate:"gte=1"`
}

// BatchConfig bounds the accepted size of a fetched batch.
type BatchConfig struct {
	MinSize int `yaml:"min_size" validate:"gte=1"`
	MaxSize int `yaml:"max_size" validate:"gte=1"`
}

// SelectionConfig controls top-N selection.
type SelectionConfig struct {
	Limit int `yaml:"limit" validate:"gte=0"`
}

// PipelineConfig controls per-record processing.
type PipelineConfig struct {
	Workers int `yaml:"workers" validate:"gte=1"`
}

// OutputConfig defines output behavior.
type OutputConfig struct {
	Dir            string `yaml:"dir" validate:"required"`
	CollectionFile string `yaml:"collection_file" validate:"required"`
	SummaryFile    string `yaml:"summary_file" validate:"required"`
	Format         string `yaml:"format" validate:"oneof=json jsonl"`
	PrettyPrint    bool   `yaml:"pretty_print"`
}

// HistoryConfig enables the SQLite run history when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig enables the Prometheus textfile export when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// envOverrides lists the environment variables read over the file config.
type envOverrides struct {
	Limit        *int   `envconfig:"TOP_LIMIT"`
	Environment  string `envconfig:"NODE_ENV"`
	SourceURL    string `envconfig:"WEBHOOK_API_URL"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
	OutputDir    string `envconfig:"OUTPUT_DIR"`
	HistoryPath  string `envconfig:"HISTORY_DB"`
	MetricsFile  string `envconfig:"METRICS_TEXTFILE"`
	TimeoutMs    int    `envconfig:"API_TIMEOUT"`
	BatchMinSize int    `envconfig:"BATCH_MIN_SIZE"`
	BatchMaxSize int    `envconfig:"BATCH_MAX_SIZE"`
	PayloadMin   int    `envconfig:"MIN_PAYLOAD_SIZE"`
	PayloadMax   int    `envconfig:"MAX_PAYLOAD_SIZE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment: EnvProduction,
		Source: SourceConfig{
			URL:       "https://jsonplaceholder.typicode.com/posts",
			UserAgent: "webhookworker/1.0",
			TimeoutMs: 5000,
			MaxBodyKb: 4096,
		},
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    500,
			MaxDelayMs:        5000,
			BackoffMultiplier: 2.0,
		},
		Batch: BatchConfig{
			MinSize: 1,
			MaxSize: 100,
		},
		Selection: SelectionConfig{Limit: 5},
		Pipeline:  PipelineConfig{Workers: 4},
		Output: OutputConfig{
			Dir:            "output",
			CollectionFile: "webhooks_processados.json",
			SummaryFile:    "summary.json",
			Format:         "json",
			PrettyPrint:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads defaults, the optional YAML file and the environment, then validates.
func LoadConfig(filepath string) (*Config, error) {
	cfg, err := Load(filepath)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Load reads defaults, the optional YAML file and the environment without validating,
// so callers can apply further overrides before calling Validate.
func Load(filepath string) (*Config, error) {
	cfg := Default()

	if filepath != "" {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if env.Environment != "" {
		c.Environment = env.Environment
	}

	if env.SourceURL != "" {
		c.Source.URL = env.SourceURL
	}

	if env.TimeoutMs > 0 {
		c.Source.TimeoutMs = env.TimeoutMs
	}

	if env.LogLevel != "" {
		c.Logging.Level = strings.ToLower(env.LogLevel)
	}

	if env.OutputDir != "" {
		c.Output.Dir = env.OutputDir
	}

	if env.Limit != nil {
		c.Selection.Limit = *env.Limit
	}

	// BATCH_* wins over the older *_PAYLOAD_SIZE names
	if n := cmp.Or(env.BatchMinSize, env.PayloadMin); n > 0 {
		c.Batch.MinSize = n
	}

	if n := cmp.Or(env.BatchMaxSize, env.PayloadMax); n > 0 {
		c.Batch.MaxSize = n
	}

	if env.HistoryPath != "" {
		c.History.Path = env.HistoryPath
	}

	if env.MetricsFile != "" {
		c.Metrics.Textfile = env.MetricsFile
	}

	return nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !ValidEnvironment(c.Environment) {
		return fmt.Errorf("%w: %q", ErrInvalidEnvironment, c.Environment)
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}

		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Batch.MinSize > c.Batch.MaxSize {
		return ErrBatchBounds
	}

	return nil
}

// ValidEnvironment reports whether env is a known deployment environment.
func ValidEnvironment(env string) bool {
	return slices.Contains([]string{EnvDevelopment, EnvStaging, EnvProduction}, env)
}

// BatchSizeValid reports whether a batch of n records is within [minSize, maxSize].
func BatchSizeValid(n, minSize, maxSize int) bool {
	if n < minSize {
		return false
	}

	if n > maxSize {
		return false
	}

	return true
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	maxMs := float64(rp.MaxDelayMs)

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt && delayMs < maxMs; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if delayMs > maxMs {
		delayMs = maxMs
	}

	return time.Duration(int64(delayMs)) * time.Millisecond
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Env: %s, Source: %s, Limit: %d, Output: %s}",
		c.Environment,
		c.Source.URL,
		c.Selection.Limit,
		c.Output.Dir,
	)
}
