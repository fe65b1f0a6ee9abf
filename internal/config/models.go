package config

import (
	"time"
)

// LLMConfig represents the configuration for the AI provider
type LLMConfig struct {
	Provider string
	Timeout  time.Duration
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI compatible APIs
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// IMAPConfig represents the mailbox connection settings
type IMAPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	Mailbox            string
	TLS                bool
	InsecureSkipVerify bool
	Timeout            time.Duration
	Workers            int
}

// AnalysisConfig holds the heuristic thresholds
type AnalysisConfig struct {
	MaxRecipients       int
	HeaderAnomalyDays   int
	DangerousExtensions []string
	Brands              []string
}

// CacheConfig holds the analysis cache settings
type CacheConfig struct {
	TTL              time.Duration
	Capacity         int
	CleanupFrequency time.Duration
	ComputeTimeout   time.Duration
}

// RateLimitConfig holds the sliding window settings
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// NotifierConfig holds the change notification intervals
type NotifierConfig struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	ErrorBackoff      time.Duration
}

// AuditConfig selects and configures the audit sink
type AuditConfig struct {
	Type             string
	SQLitePath       string
	MySQLDSN         string
	Retention        time.Duration
	CleanupFrequency time.Duration
}

// HTTPConfig holds the HTTP frontend settings
type HTTPConfig struct {
	Enabled       bool
	ListenAddress string
	CORSOrigins   []string
	AnalyzeLimit  int
}

// FilterConfig holds the SMTP content filter settings
type FilterConfig struct {
	Enabled       bool
	ListenAddress string
	BlockHighRisk bool
	ModifySubject bool
	ScoreHeader   string
	LevelHeader   string
	ReasonsHeader string
	RelayEnabled  bool
	RelayAddress  string
	RelayPort     int
}

// GetLLM returns the AI provider configuration
func (c *Config) GetLLM() (LLMConfig, error) {
	timeout, err := c.GetDuration("ai.timeout")
	if err != nil {
		return LLMConfig{}, err
	}
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
		Timeout:  timeout,
	}, nil
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetIMAP returns the mailbox configuration
func (c *Config) GetIMAP() (IMAPConfig, error) {
	timeout, err := c.GetDuration("imap.timeout")
	if err != nil {
		return IMAPConfig{}, err
	}
	return IMAPConfig{
		Host:               c.GetString("imap.host"),
		Port:               c.GetInt("imap.port"),
		Username:           c.GetString("imap.username"),
		Password:           c.GetString("imap.password"),
		Mailbox:            c.GetString("imap.mailbox"),
		TLS:                c.GetBool("imap.tls"),
		InsecureSkipVerify: c.GetBool("imap.insecure_skip_verify"),
		Timeout:            timeout,
		Workers:            c.GetInt("transport.workers"),
	}, nil
}

// GetAnalysis returns the heuristic configuration
func (c *Config) GetAnalysis() AnalysisConfig {
	return AnalysisConfig{
		MaxRecipients:       c.GetInt("analysis.max_recipients"),
		HeaderAnomalyDays:   c.GetInt("analysis.header_anomaly_days"),
		DangerousExtensions: c.GetStringSlice("analysis.dangerous_extensions"),
		Brands:              c.GetStringSlice("analysis.brands"),
	}
}

// GetCache returns the analysis cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	computeTimeout, err := c.GetDuration("cache.compute_timeout")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		TTL:              ttl,
		Capacity:         c.GetInt("cache.capacity"),
		CleanupFrequency: cleanup,
		ComputeTimeout:   computeTimeout,
	}, nil
}

// GetRateLimit returns the rate limiter configuration
func (c *Config) GetRateLimit() (RateLimitConfig, error) {
	window, err := c.GetDuration("ratelimit.window")
	if err != nil {
		return RateLimitConfig{}, err
	}
	return RateLimitConfig{
		MaxRequests: c.GetInt("ratelimit.max_requests"),
		Window:      window,
	}, nil
}

// GetNotifier returns the change notifier configuration
func (c *Config) GetNotifier() (NotifierConfig, error) {
	var (
		cfg NotifierConfig
		err error
	)
	if cfg.PollInterval, err = c.GetDuration("notifier.poll_interval"); err != nil {
		return NotifierConfig{}, err
	}
	if cfg.HeartbeatInterval, err = c.GetDuration("notifier.heartbeat_interval"); err != nil {
		return NotifierConfig{}, err
	}
	if cfg.ErrorBackoff, err = c.GetDuration("notifier.error_backoff"); err != nil {
		return NotifierConfig{}, err
	}
	return cfg, nil
}

// GetAudit returns the audit sink configuration
func (c *Config) GetAudit() (AuditConfig, error) {
	retention, err := c.GetDuration("audit.retention")
	if err != nil {
		return AuditConfig{}, err
	}
	cleanup, err := c.GetDuration("audit.cleanup_frequency")
	if err != nil {
		return AuditConfig{}, err
	}
	return AuditConfig{
		Type:             c.GetString("audit.type"),
		SQLitePath:       c.GetString("audit.sqlite_path"),
		MySQLDSN:         c.GetString("audit.mysql_dsn"),
		Retention:        retention,
		CleanupFrequency: cleanup,
	}, nil
}

// GetHTTP returns the HTTP frontend configuration
func (c *Config) GetHTTP() HTTPConfig {
	return HTTPConfig{
		Enabled:       c.GetBool("http.enabled"),
		ListenAddress: c.GetString("http.listen_address"),
		CORSOrigins:   c.GetStringSlice("http.cors_origins"),
		AnalyzeLimit:  c.GetInt("http.analyze_limit"),
	}
}

// GetFilter returns the SMTP content filter configuration
func (c *Config) GetFilter() FilterConfig {
	return FilterConfig{
		Enabled:       c.GetBool("filter.enabled"),
		ListenAddress: c.GetString("filter.listen_address"),
		BlockHighRisk: c.GetBool("filter.block_high_risk"),
		ModifySubject: c.GetBool("filter.modify_subject"),
		ScoreHeader:   c.GetString("filter.headers.score"),
		LevelHeader:   c.GetString("filter.headers.level"),
		ReasonsHeader: c.GetString("filter.headers.reasons"),
		RelayEnabled:  c.GetBool("filter.relay.enabled"),
		RelayAddress:  c.GetString("filter.relay.address"),
		RelayPort:     c.GetInt("filter.relay.port"),
	}
}
