package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ligustah/stacfetch/internal/planner"
	"github.com/ligustah/stacfetch/internal/progress"
	"github.com/ligustah/stacfetch/internal/retry"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "STACFETCH_"

// Config defines configuration for the stacfetch CLI.
type Config struct {
	OutputDir    string        `yaml:"output_dir"`
	Bucket       string        `yaml:"bucket"`
	Include      []string      `yaml:"include"`
	Exclude      []string      `yaml:"exclude"`
	ProductTypes []string      `yaml:"product_types"`
	Workers      int           `yaml:"workers"`
	Threaded     bool          `yaml:"threaded"`
	Progress     bool          `yaml:"progress"`
	Override     bool          `yaml:"override"`
	Resume       bool          `yaml:"resume"`
	SeparateDirs bool          `yaml:"separate_dirs"`
	BufferSize   int64         `yaml:"buffer_size"`
	Timeout      time.Duration `yaml:"timeout"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	MetricsFile  string        `yaml:"metrics_file"`
	Retry        RetryConfig   `yaml:"retry"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		OutputDir:  os.TempDir(),
		BufferSize: 1024 * 1024, // 1MiB
		Timeout:    30 * time.Second,
		LogLevel:   "info",
		LogFormat:  "text",
		Retry: RetryConfig{
			Attempts:   8,
			Backoff:    retry.DefaultBase,
			MaxBackoff: retry.DefaultMax,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	OutputDir    string          `yaml:"output_dir"`
	Bucket       string          `yaml:"bucket"`
	Include      []string        `yaml:"include"`
	Exclude      []string        `yaml:"exclude"`
	ProductTypes []string        `yaml:"product_types"`
	Workers      int             `yaml:"workers"`
	Threaded     bool            `yaml:"threaded"`
	Progress     bool            `yaml:"progress"`
	Override     bool            `yaml:"override"`
	Resume       bool            `yaml:"resume"`
	SeparateDirs bool            `yaml:"separate_dirs"`
	BufferSize   string          `yaml:"buffer_size"`
	Timeout      string          `yaml:"timeout"`
	LogLevel     string          `yaml:"log_level"`
	LogFormat    string          `yaml:"log_format"`
	MetricsFile  string          `yaml:"metrics_file"`
	Retry        yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.OutputDir != "" {
		cfg.OutputDir = yc.OutputDir
	}
	if yc.Bucket != "" {
		cfg.Bucket = yc.Bucket
	}
	cfg.Include = yc.Include
	cfg.Exclude = yc.Exclude
	cfg.ProductTypes = yc.ProductTypes
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	cfg.Threaded = yc.Threaded
	cfg.Progress = yc.Progress
	cfg.Override = yc.Override
	cfg.Resume = yc.Resume
	cfg.SeparateDirs = yc.SeparateDirs
	if yc.BufferSize != "" {
		size, err := progress.ParseBytes(yc.BufferSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse buffer_size: %w", err)
		}
		cfg.BufferSize = size
	}
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.LogFormat != "" {
		cfg.LogFormat = yc.LogFormat
	}
	cfg.MetricsFile = yc.MetricsFile
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Variables
// already set are left alone. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the STACFETCH_ prefix; lists are comma-separated.
func (c *Config) LoadFromEnv() error {
	if v := getenv("OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := getenv("BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := getenv("INCLUDE"); v != "" {
		c.Include = planner.SplitList(v)
	}
	if v := getenv("EXCLUDE"); v != "" {
		c.Exclude = planner.SplitList(v)
	}
	if v := getenv("PRODUCT_TYPES"); v != "" {
		c.ProductTypes = planner.SplitList(v)
	}
	if v := getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sWORKERS: %w", EnvPrefix, err)
		}
		c.Workers = n
	}
	for name, dst := range map[string]*bool{
		"THREADED":      &c.Threaded,
		"PROGRESS":      &c.Progress,
		"OVERRIDE":      &c.Override,
		"RESUME":        &c.Resume,
		"SEPARATE_DIRS": &c.SeparateDirs,
	} {
		if v := getenv(name); v != "" {
			*dst = v == "true" || v == "1"
		}
	}
	if v := getenv("BUFFER_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse %sBUFFER_SIZE: %w", EnvPrefix, err)
		}
		c.BufferSize = size
	}
	if v := getenv("TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sTIMEOUT: %w", EnvPrefix, err)
		}
		c.Timeout = d
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := getenv("METRICS_FILE"); v != "" {
		c.MetricsFile = v
	}
	if v := getenv("RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sRETRY_ATTEMPTS: %w", EnvPrefix, err)
		}
		c.Retry.Attempts = n
	}
	if v := getenv("RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sRETRY_BACKOFF: %w", EnvPrefix, err)
		}
		c.Retry.Backoff = d
	}
	if v := getenv("RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sRETRY_MAX_BACKOFF: %w", EnvPrefix, err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("config: output_dir is required")
	}
	if c.Workers < 0 {
		return errors.New("config: workers must not be negative")
	}
	if c.BufferSize <= 0 {
		return errors.New("config: buffer_size must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	if c.Retry.Attempts < 0 {
		return errors.New("config: retry.attempts must not be negative")
	}
	if c.Retry.Backoff <= 0 {
		return errors.New("config: retry.backoff must be positive")
	}
	if c.Retry.MaxBackoff < c.Retry.Backoff {
		return errors.New("config: retry.max_backoff must not be below retry.backoff")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored, so a false bool never clears a true
// one; callers holding explicitly set flags apply those afterwards.
func (c Config) Merge(override Config) Config {
	if override.OutputDir != "" {
		c.OutputDir = override.OutputDir
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if len(override.Include) > 0 {
		c.Include = override.Include
	}
	if len(override.Exclude) > 0 {
		c.Exclude = override.Exclude
	}
	if len(override.ProductTypes) > 0 {
		c.ProductTypes = override.ProductTypes
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Threaded {
		c.Threaded = override.Threaded
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Override {
		c.Override = override.Override
	}
	if override.Resume {
		c.Resume = override.Resume
	}
	if override.SeparateDirs {
		c.SeparateDirs = override.SeparateDirs
	}
	if override.BufferSize != 0 {
		c.BufferSize = override.BufferSize
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.LogFormat != "" {
		c.LogFormat = override.LogFormat
	}
	if override.MetricsFile != "" {
		c.MetricsFile = override.MetricsFile
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}

// RetryPolicy returns the retry policy described by the configuration.
func (c Config) RetryPolicy() retry.Policy {
	p := retry.Default()
	if c.Retry.Backoff > 0 {
		p.Base = c.Retry.Backoff
	}
	if c.Retry.MaxBackoff > 0 {
		p.Max = c.Retry.MaxBackoff
	}
	p.MaxAttempts = c.Retry.Attempts
	return p
}
