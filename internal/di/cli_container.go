package di

import (
	"context"
	"errors"
	"io"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-risk-analyzer/internal/adapters/filter"
	"github.com/mikey/mail-risk-analyzer/internal/analysis"
	"github.com/mikey/mail-risk-analyzer/internal/config"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/factory"
	"github.com/mikey/mail-risk-analyzer/internal/logging"
)

// CLIFlags contains all command line flags of the check tool
type CLIFlags struct {
	// AI provider flags
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64
	MaxBodySize int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModelName string

	// Brand domains checked for lookalikes
	Brands []string

	// Output flags
	Verbose    bool
	JSONLog    bool
	JSONOutput bool
	ConfigFile string

	// Out receives the reports
	Out io.Writer
}

// ErrNoMailbox is returned by mailbox operations of the check tool when no
// IMAP host is configured
var ErrNoMailbox = errors.New("no mailbox configured")

// BuildCLIContainer creates and configures the container of the check tool
func BuildCLIContainer(flags *CLIFlags, version string) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.Load(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// The mailbox is optional for the check tool
	if err := container.Provide(factory.NewTransportFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, f *factory.TransportFactory) (core.MailTransport, error) {
		if cfg.GetString("imap.host") == "" {
			return offlineTransport{}, nil
		}
		return f.CreateTransport()
	}); err != nil {
		return nil, err
	}

	// Register risk analysis service without cache and audit
	if err := container.Provide(func(
		cfg *config.Config,
		transport core.MailTransport,
		assessor core.AIAssessor,
		headers *analysis.HeaderAnalyzer,
		links *analysis.LinkAnalyzer,
		logger *zap.Logger,
	) (*core.RiskAnalysisService, error) {
		llmCfg, err := cfg.GetLLM()
		if err != nil {
			return nil, err
		}
		service := core.NewRiskAnalysisService(transport, assessor, headers, links, nil, nil, nil, logger, version)
		service.SetAITimeout(llmCfg.Timeout)
		return service, nil
	}); err != nil {
		return nil, err
	}

	// Register CLI filter
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory, flags *CLIFlags) *filter.CLIFilter {
		return f.CreateCLIFilter(flags.Out, flags.Verbose, flags.JSONOutput)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set AI provider
	v.Set("llm.provider", flags.Provider)

	// Set provider-specific configuration
	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
		v.Set("bedrock.max_tokens", flags.MaxTokens)
		v.Set("bedrock.temperature", flags.Temperature)
		v.Set("bedrock.top_p", flags.TopP)
		v.Set("bedrock.max_body_size", flags.MaxBodySize)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
		v.Set("gemini.max_tokens", flags.MaxTokens)
		v.Set("gemini.temperature", flags.Temperature)
		v.Set("gemini.top_p", flags.TopP)
		v.Set("gemini.max_body_size", flags.MaxBodySize)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		if flags.OpenAIBaseURL != "" {
			v.Set("openai.base_url", flags.OpenAIBaseURL)
		}
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.max_tokens", flags.MaxTokens)
		v.Set("openai.temperature", flags.Temperature)
		v.Set("openai.top_p", flags.TopP)
		v.Set("openai.max_body_size", flags.MaxBodySize)
	}

	if len(flags.Brands) > 0 {
		v.Set("analysis.brands", flags.Brands)
	}

	return config.NewFromViper(v)
}

// offlineTransport stands in for the mailbox when the check tool only scores files
type offlineTransport struct{}

func (offlineTransport) FetchLatest(context.Context, int) ([]*core.Message, error) {
	return nil, ErrNoMailbox
}

func (offlineTransport) FetchMessage(context.Context, string) (*core.Message, error) {
	return nil, ErrNoMailbox
}

func (offlineTransport) MessageCount(context.Context) (int, error) {
	return 0, ErrNoMailbox
}

func (offlineTransport) ModifySubject(context.Context, string, string) (bool, error) {
	return false, ErrNoMailbox
}

func (offlineTransport) Ping(context.Context) error {
	return ErrNoMailbox
}
