package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-risk-analyzer/internal/adapters/cache"
	"github.com/mikey/mail-risk-analyzer/internal/adapters/filter"
	"github.com/mikey/mail-risk-analyzer/internal/adapters/httpapi"
	"github.com/mikey/mail-risk-analyzer/internal/analysis"
	"github.com/mikey/mail-risk-analyzer/internal/config"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/factory"
	"github.com/mikey/mail-risk-analyzer/internal/logging"
	"github.com/mikey/mail-risk-analyzer/internal/metrics"
	"github.com/mikey/mail-risk-analyzer/internal/notifier"
	"github.com/mikey/mail-risk-analyzer/internal/ports"
	"github.com/mikey/mail-risk-analyzer/internal/ratelimit"
	"github.com/mikey/mail-risk-analyzer/internal/utils"
	"github.com/mikey/mail-risk-analyzer/internal/whitelist"
)

// ServiceParams are the components the risk analysis service is built from
type ServiceParams struct {
	dig.In

	Transport core.MailTransport
	Assessor  core.AIAssessor
	Headers   *analysis.HeaderAnalyzer
	Links     *analysis.LinkAnalyzer
	Cache     *cache.MemoryCache
	Audit     core.AuditLog
	Collector *metrics.Collector
	Config    *config.Config
	Logger    *zap.Logger
}

// BuildContainer creates and configures the container of the service binary
func BuildContainer(version string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewTransportFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.TransportFactory) (core.MailTransport, error) {
		return f.CreateTransport()
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) (*cache.MemoryCache, error) {
		return f.CreateCache()
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewAuditFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.AuditFactory) (core.AuditLog, error) {
		return f.CreateAuditLog()
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(metrics.NewCollector); err != nil {
		return nil, err
	}

	// Register risk analysis service
	if err := container.Provide(func(p ServiceParams) (*core.RiskAnalysisService, error) {
		llmCfg, err := p.Config.GetLLM()
		if err != nil {
			return nil, err
		}
		p.Collector.RegisterGauge("cache_entries", "Number of cached analysis results", func() float64 {
			return float64(p.Cache.Len())
		})
		service := core.NewRiskAnalysisService(
			p.Transport,
			p.Assessor,
			p.Headers,
			p.Links,
			p.Cache,
			p.Audit,
			p.Collector,
			p.Logger,
			version,
		)
		service.SetAITimeout(llmCfg.Timeout)
		return service, nil
	}); err != nil {
		return nil, err
	}

	// Register HTTP frontend
	if err := container.Provide(factory.NewHTTPFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.HTTPFactory, collector *metrics.Collector) (*ratelimit.Limiter, error) {
		limiter, err := f.CreateRateLimiter()
		if err != nil {
			return nil, err
		}
		collector.RegisterGauge("ratelimit_clients", "Number of clients tracked by the rate limiter", func() float64 {
			return float64(limiter.Clients())
		})
		return limiter, nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.HTTPFactory, service *core.RiskAnalysisService) (*notifier.Notifier, error) {
		return f.CreateNotifier(service)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		f *factory.HTTPFactory,
		service *core.RiskAnalysisService,
		changes *notifier.Notifier,
		limiter *ratelimit.Limiter,
		audit core.AuditLog,
		collector *metrics.Collector,
	) *httpapi.Server {
		return f.CreateServer(service, changes, limiter, audit, collector)
	}); err != nil {
		return nil, err
	}

	// Register SMTP content filter
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) *filter.SMTPFilter {
		return f.CreateSMTPFilter()
	}); err != nil {
		return nil, err
	}

	// Register the enabled frontends
	if err := container.Provide(func(
		cfg *config.Config,
		server *httpapi.Server,
		smtpFilter *filter.SMTPFilter,
		logger *zap.Logger,
	) []ports.Frontend {
		var frontends []ports.Frontend
		if cfg.GetHTTP().Enabled {
			frontends = append(frontends, server)
		}
		if cfg.GetFilter().Enabled {
			frontends = append(frontends, smtpFilter)
		}
		if len(frontends) == 0 {
			logger.Warn("No frontend enabled")
		}
		return frontends
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCommon registers the analyzers and the AI assessor shared by both binaries
func provideCommon(container *dig.Container) error {
	if err := container.Provide(factory.NewAnalysisFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.AnalysisFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.AnalysisFactory) *whitelist.BrandTable {
		return f.CreateBrandTable()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.AnalysisFactory, brands *whitelist.BrandTable) *analysis.HeaderAnalyzer {
		return f.CreateHeaderAnalyzer(brands)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.AnalysisFactory) *analysis.LinkAnalyzer {
		return f.CreateLinkAnalyzer()
	}); err != nil {
		return err
	}

	// Register AI assessor
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	return container.Provide(func(f *factory.LLMFactory) (core.AIAssessor, error) {
		return f.CreateAssessor()
	})
}
