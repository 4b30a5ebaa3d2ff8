// Package config provides configuration management for the market dashboard.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/market"
	"market-dashboard/internal/security"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig   `mapstructure:"server"`
	Data        DataConfig     `mapstructure:"data"`
	LLM         LLMConfig      `mapstructure:"llm"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Analysis    AnalysisConfig `mapstructure:"analysis"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
	// Created lists template files written because they were missing.
	Created []string `mapstructure:"-"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

// DataConfig holds market data configuration.
type DataConfig struct {
	Provider       string        `mapstructure:"provider"` // "alpaca", "mock"
	Fallback       bool          `mapstructure:"fallback"`
	DBPath         string        `mapstructure:"db_path"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

// LLMConfig holds language model configuration.
type LLMConfig struct {
	Model             string  `mapstructure:"model"`
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// AnalysisConfig holds indicator and signal configuration.
type AnalysisConfig struct {
	DefaultPeriod string  `mapstructure:"default_period"`
	Workers       int     `mapstructure:"workers"`
	RSIOversold   float64 `mapstructure:"rsi_oversold"`
	RSIOverbought float64 `mapstructure:"rsi_overbought"`
	ADXTrend      float64 `mapstructure:"adx_trend"`
}

// Credentials holds API credentials.
type Credentials struct {
	Alpaca AlpacaCredentials `mapstructure:"alpaca"`
	OpenAI OpenAICredentials `mapstructure:"openai"`
}

// AlpacaCredentials holds Alpaca market data credentials.
type AlpacaCredentials struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// OpenAICredentials holds OpenAI API credentials.
type OpenAICredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/market-dashboard"
	}
	return filepath.Join(home, ".config", "market-dashboard")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are written from templates and the defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env files never override variables already set.
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	cfg := &Config{Dir: configDir}

	created, err := loadConfigFile(configDir, "config", configTemplate, 0644, setDefaults, cfg)
	if err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}
	if created != "" {
		cfg.Created = append(cfg.Created, created)
	}

	created, err = loadConfigFile(configDir, "credentials", credentialsTemplate, 0600, nil, &cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}
	if created != "" {
		cfg.Created = append(cfg.Created, created)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("data.provider", "alpaca")
	v.SetDefault("data.fallback", true)
	v.SetDefault("data.db_path", filepath.Join(DefaultConfigDir(), "dashboard.db"))
	v.SetDefault("data.cache_ttl", "15m")
	v.SetDefault("data.retry_attempts", 3)
	v.SetDefault("data.breaker_timeout", "30s")

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.requests_per_minute", 30.0)
	v.SetDefault("llm.burst", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(DefaultConfigDir(), "logs", "dashboard.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("analysis.default_period", "3mo")
	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.rsi_oversold", 30.0)
	v.SetDefault("analysis.rsi_overbought", 70.0)
	v.SetDefault("analysis.adx_trend", 25.0)
}

// loadConfigFile reads configDir/name.toml into target. A missing file is
// written from the template and the path is returned.
func loadConfigFile(configDir, name, template string, perm os.FileMode, defaults func(*viper.Viper), target interface{}) (string, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	if defaults != nil {
		defaults(v)
	}

	var created string
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return "", err
		}
		path, err := writeTemplate(configDir, name, template, perm)
		if err != nil {
			return "", err
		}
		created = path
	}

	return created, v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	// Alpaca credentials
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Credentials.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_SECRET_KEY"); v != "" {
		cfg.Credentials.Alpaca.APISecret = v
	}

	// OpenAI credentials and endpoint
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL_NAME"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("DASHBOARD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", apperrors.ErrConfigInvalid, fmt.Sprintf(format, args...))
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return invalid("server.addr is required")
	}
	if c.Server.RequestTimeout < 0 {
		return invalid("server.request_timeout must be non-negative")
	}

	switch c.Data.Provider {
	case "alpaca":
		if !c.HasAlpacaCredentials() && !c.Data.Fallback {
			return invalid("alpaca credentials are required when data.fallback is disabled")
		}
	case "mock":
	default:
		return invalid("invalid data provider: %s (must be 'alpaca' or 'mock')", c.Data.Provider)
	}
	if c.Data.CacheTTL < 0 {
		return invalid("data.cache_ttl must be non-negative")
	}
	if c.Data.RetryAttempts < 1 {
		return invalid("data.retry_attempts must be at least 1")
	}

	if c.LLM.RequestsPerMinute < 0 {
		return invalid("llm.requests_per_minute must be non-negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("invalid log level: %s", c.Logging.Level)
	}

	if err := market.ValidatePeriod(c.Analysis.DefaultPeriod); err != nil {
		return invalid("analysis.default_period: %v", err)
	}
	if c.Analysis.Workers < 0 {
		return invalid("analysis.workers must be non-negative")
	}
	if c.Analysis.RSIOversold < 0 || c.Analysis.RSIOverbought > 100 || c.Analysis.RSIOversold >= c.Analysis.RSIOverbought {
		return invalid("rsi thresholds must satisfy 0 <= oversold < overbought <= 100")
	}
	if c.Analysis.ADXTrend <= 0 {
		return invalid("analysis.adx_trend must be positive")
	}

	return nil
}

// HasAlpacaCredentials reports whether both Alpaca keys are set.
func (c *Config) HasAlpacaCredentials() bool {
	return c.Credentials.Alpaca.APIKey != "" && c.Credentials.Alpaca.APISecret != ""
}

// HasLLM reports whether a language model key is configured.
func (c *Config) HasLLM() bool {
	return c.Credentials.OpenAI.APIKey != ""
}

// Redacted returns a copy of the configuration with credentials masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Credentials.Alpaca.APIKey = security.MaskCredential(c.Credentials.Alpaca.APIKey)
	out.Credentials.Alpaca.APISecret = security.MaskCredential(c.Credentials.Alpaca.APISecret)
	out.Credentials.OpenAI.APIKey = security.MaskCredential(c.Credentials.OpenAI.APIKey)
	return out
}
