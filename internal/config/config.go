// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Scoring  ScoringConfig  `mapstructure:"scoring" yaml:"scoring"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Intent   IntentConfig   `mapstructure:"intent" yaml:"intent"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	StabilizeQuiet    time.Duration `mapstructure:"stabilize_quiet" yaml:"stabilize_quiet"`
	StabilizeTimeout  time.Duration `mapstructure:"stabilize_timeout" yaml:"stabilize_timeout"`
	// DispatchRate limits actions dispatched to the page, per second.
	// Zero disables pacing.
	DispatchRate float64  `mapstructure:"dispatch_rate" yaml:"dispatch_rate"`
	Args         []string `mapstructure:"args" yaml:"args"`
}

// EngineConfig configures the workflow engine.
type EngineConfig struct {
	// GlobalTimeout bounds a whole workflow run, enforced at step
	// boundaries. Zero means no limit.
	GlobalTimeout time.Duration `mapstructure:"global_timeout" yaml:"global_timeout"`
	// EventBuffer is the capacity of the progress event channel.
	EventBuffer int `mapstructure:"event_buffer" yaml:"event_buffer"`
	// MaxLoopIterations bounds while-loops that declare no bound.
	MaxLoopIterations int `mapstructure:"max_loop_iterations" yaml:"max_loop_iterations"`
	// ParallelLimit is the default concurrency bound for parallel steps.
	ParallelLimit int `mapstructure:"parallel_limit" yaml:"parallel_limit"`
}

// ScoringConfig tunes element resolution.
type ScoringConfig struct {
	// AcceptanceThreshold is the minimum final score for a match.
	AcceptanceThreshold float64 `mapstructure:"acceptance_threshold" yaml:"acceptance_threshold"`
	// MaxFuzzyDistance is the largest accepted Levenshtein distance.
	MaxFuzzyDistance int `mapstructure:"max_fuzzy_distance" yaml:"max_fuzzy_distance"`
}

// ExecutorConfig tunes the step executor's retry loop.
type ExecutorConfig struct {
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`
}

// IntentConfig controls instruction normalization and the optional LLM
// fallback for instructions the pattern table cannot classify.
type IntentConfig struct {
	LLMEnabled bool          `mapstructure:"llm_enabled" yaml:"llm_enabled"`
	Model      string        `mapstructure:"model" yaml:"model"`
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// StoreConfig selects where execution records are persisted.
type StoreConfig struct {
	// Backend is "file" or "postgres".
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Dir is the directory for the file backend.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// PostgresURL is the connection string for the postgres backend.
	PostgresURL string `mapstructure:"postgres_url" yaml:"-"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.stabilize_quiet", "1500ms")
	v.SetDefault("browser.stabilize_timeout", "30s")
	v.SetDefault("browser.dispatch_rate", 0.0)

	// -- Engine --
	v.SetDefault("engine.global_timeout", "0")
	v.SetDefault("engine.event_buffer", 256)
	v.SetDefault("engine.max_loop_iterations", 100)
	v.SetDefault("engine.parallel_limit", 4)

	// -- Scoring --
	v.SetDefault("scoring.acceptance_threshold", 0.2)
	v.SetDefault("scoring.max_fuzzy_distance", 2)

	// -- Executor --
	v.SetDefault("executor.max_retries", 3)
	v.SetDefault("executor.backoff_base", "2s")

	// -- Intent --
	v.SetDefault("intent.llm_enabled", false)
	v.SetDefault("intent.model", "gemini-2.5-flash")
	v.SetDefault("intent.api_timeout", "30s")

	// -- Store --
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.dir", ".webpilot")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults always unmarshal; anything else is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("intent.api_key", "WEBPILOT_GEMINI_API_KEY")
	v.BindEnv("store.postgres_url", "WEBPILOT_POSTGRES_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Scoring.AcceptanceThreshold < 0 || c.Scoring.AcceptanceThreshold > 1 {
		return fmt.Errorf("scoring.acceptance_threshold must be between 0.0 and 1.0")
	}
	if c.Scoring.MaxFuzzyDistance < 0 {
		return fmt.Errorf("scoring.max_fuzzy_distance must not be negative")
	}
	if c.Executor.MaxRetries <= 0 {
		return fmt.Errorf("executor.max_retries must be a positive integer")
	}
	if c.Executor.BackoffBase < 0 {
		return fmt.Errorf("executor.backoff_base must not be negative")
	}
	if c.Engine.ParallelLimit <= 0 {
		return fmt.Errorf("engine.parallel_limit must be a positive integer")
	}
	if c.Engine.MaxLoopIterations <= 0 {
		return fmt.Errorf("engine.max_loop_iterations must be a positive integer")
	}
	if c.Intent.LLMEnabled && c.Intent.APIKey == "" {
		return fmt.Errorf("intent.llm_enabled requires WEBPILOT_GEMINI_API_KEY to be set")
	}
	switch c.Store.Backend {
	case "file", "postgres":
	default:
		return fmt.Errorf("store.backend must be \"file\" or \"postgres\", got %q", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.PostgresURL == "" {
		return fmt.Errorf("store.backend \"postgres\" requires WEBPILOT_POSTGRES_URL to be set")
	}
	return nil
}
