package factory

import (
	"io"

	"github.com/mikey/mail-risk-analyzer/internal/adapters/filter"
	"github.com/mikey/mail-risk-analyzer/internal/config"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"go.uber.org/zap"
)

// FilterFactory creates the mail filters
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.RiskAnalysisService
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.RiskAnalysisService) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateSMTPFilter creates the SMTP content filter
func (f *FilterFactory) CreateSMTPFilter() *filter.SMTPFilter {
	filterCfg := f.cfg.GetFilter()
	return filter.NewSMTPFilter(f.service, f.logger, filter.SMTPOptions{
		ListenAddress: filterCfg.ListenAddress,
		BlockHighRisk: filterCfg.BlockHighRisk,
		ModifySubject: filterCfg.ModifySubject,
		Headers: filter.HeaderNames{
			Score:   filterCfg.ScoreHeader,
			Level:   filterCfg.LevelHeader,
			Reasons: filterCfg.ReasonsHeader,
		},
		RelayEnabled: filterCfg.RelayEnabled,
		RelayAddress: filterCfg.RelayAddress,
		RelayPort:    filterCfg.RelayPort,
	})
}

// CreateCLIFilter creates a filter that prints reports to out
func (f *FilterFactory) CreateCLIFilter(out io.Writer, verbose, asJSON bool) *filter.CLIFilter {
	return filter.NewCLIFilter(f.service, f.logger, out, verbose, asJSON)
}
