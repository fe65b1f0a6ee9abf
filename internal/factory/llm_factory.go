package factory

import (
	"fmt"

	"github.com/mikey/mail-risk-analyzer/internal/adapters/bedrock"
	"github.com/mikey/mail-risk-analyzer/internal/adapters/gemini"
	"github.com/mikey/mail-risk-analyzer/internal/adapters/openai"
	"github.com/mikey/mail-risk-analyzer/internal/config"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/utils"
	"go.uber.org/zap"
)

// ProviderNone runs the pipeline without an AI backend
const ProviderNone = "none"

// LLMFactory creates AI assessors
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAssessor creates the AI assessor selected by llm.provider.
// The "none" provider returns a nil assessor and every AI result is degraded.
func (f *LLMFactory) CreateAssessor() (core.AIAssessor, error) {
	llmCfg, err := f.cfg.GetLLM()
	if err != nil {
		return nil, err
	}
	provider := llmCfg.Provider

	switch provider {
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case "openai":
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case ProviderNone, "":
		f.logger.Warn("No AI provider configured, AI assessments are disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
