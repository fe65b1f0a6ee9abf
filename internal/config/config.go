package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	return Load("")
}

// Load reads configuration from file, or searches the default paths when file is empty
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mail-risk-analyzer/")
		v.AddConfigPath("$HOME/.mail-risk-analyzer")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_RISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// HTTP frontend defaults
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.listen_address", "0.0.0.0:8000")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.analyze_limit", 3)

	// IMAP defaults
	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.insecure_skip_verify", false)
	v.SetDefault("imap.timeout", "30s")
	v.SetDefault("transport.workers", 4)

	// AI provider defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("ai.timeout", "30s")

	// OpenAI defaults, pointed at OpenRouter
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openai.model_name", "openai/gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 512)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("openai.top_p", 1.0)
	v.SetDefault("openai.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 512)
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 512)
	v.SetDefault("bedrock.temperature", 0.2)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Analysis defaults
	v.SetDefault("analysis.max_recipients", 10)
	v.SetDefault("analysis.header_anomaly_days", 30)
	v.SetDefault("analysis.dangerous_extensions", []string{})
	v.SetDefault("analysis.brands", []string{})

	// Cache defaults
	v.SetDefault("cache.ttl", "300s")
	v.SetDefault("cache.capacity", 100)
	v.SetDefault("cache.cleanup_frequency", "1m")
	v.SetDefault("cache.compute_timeout", "2m")

	// Rate limit defaults
	v.SetDefault("ratelimit.max_requests", 100)
	v.SetDefault("ratelimit.window", "60s")

	// Change notifier defaults
	v.SetDefault("notifier.poll_interval", "30s")
	v.SetDefault("notifier.heartbeat_interval", "10s")
	v.SetDefault("notifier.error_backoff", "30s")

	// Audit defaults
	v.SetDefault("audit.type", "log")
	v.SetDefault("audit.retention", "720h")
	v.SetDefault("audit.cleanup_frequency", "1h")
	v.SetDefault("audit.sqlite_path", "/data/audit.db")
	v.SetDefault("audit.mysql_dsn", "user:password@tcp(localhost:3306)/mail_risk")

	// SMTP content filter defaults
	v.SetDefault("filter.enabled", false)
	v.SetDefault("filter.listen_address", "0.0.0.0:10025")
	v.SetDefault("filter.block_high_risk", false)
	v.SetDefault("filter.modify_subject", false)
	v.SetDefault("filter.headers.score", "X-Risk-Score")
	v.SetDefault("filter.headers.level", "X-Risk-Level")
	v.SetDefault("filter.headers.reasons", "X-Risk-Reasons")
	v.SetDefault("filter.relay.enabled", true)
	v.SetDefault("filter.relay.address", "localhost")
	v.SetDefault("filter.relay.port", 10026)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
