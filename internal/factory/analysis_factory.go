package factory

import (
	"github.com/mikey/mail-risk-analyzer/internal/analysis"
	"github.com/mikey/mail-risk-analyzer/internal/config"
	"github.com/mikey/mail-risk-analyzer/internal/utils"
	"github.com/mikey/mail-risk-analyzer/internal/whitelist"
	"go.uber.org/zap"
)

// AnalysisFactory creates the heuristic analyzers and the prompt text processor
type AnalysisFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewAnalysisFactory creates a new analysis factory
func NewAnalysisFactory(cfg *config.Config, logger *zap.Logger) *AnalysisFactory {
	return &AnalysisFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *AnalysisFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateBrandTable creates the brand table from analysis.brands
func (f *AnalysisFactory) CreateBrandTable() *whitelist.BrandTable {
	brands := f.cfg.GetAnalysis().Brands
	if len(brands) > 0 {
		f.logger.Info("Loaded brand domains", zap.Strings("brands", brands))
	}
	return whitelist.NewBrandTable(brands, f.logger)
}

// CreateHeaderAnalyzer creates the header analyzer
func (f *AnalysisFactory) CreateHeaderAnalyzer(brands *whitelist.BrandTable) *analysis.HeaderAnalyzer {
	analysisCfg := f.cfg.GetAnalysis()
	return analysis.NewHeaderAnalyzer(analysis.HeaderConfig{
		DangerousExtensions: analysisCfg.DangerousExtensions,
		MaxRecipients:       analysisCfg.MaxRecipients,
		HeaderAnomalyDays:   analysisCfg.HeaderAnomalyDays,
	}, brands, f.logger)
}

// CreateLinkAnalyzer creates the link analyzer
func (f *AnalysisFactory) CreateLinkAnalyzer() *analysis.LinkAnalyzer {
	return analysis.NewLinkAnalyzer(f.logger)
}
