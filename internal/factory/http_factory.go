package factory

import (
	"net/http"

	"github.com/mikey/mail-risk-analyzer/internal/adapters/httpapi"
	"github.com/mikey/mail-risk-analyzer/internal/config"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/metrics"
	"github.com/mikey/mail-risk-analyzer/internal/notifier"
	"github.com/mikey/mail-risk-analyzer/internal/ratelimit"
	"go.uber.org/zap"
)

// HTTPFactory creates the HTTP frontend and the stateful components it gates
type HTTPFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewHTTPFactory creates a new HTTP factory
func NewHTTPFactory(cfg *config.Config, logger *zap.Logger) *HTTPFactory {
	return &HTTPFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRateLimiter creates the per-client rate limiter
func (f *HTTPFactory) CreateRateLimiter() (*ratelimit.Limiter, error) {
	rlCfg, err := f.cfg.GetRateLimit()
	if err != nil {
		return nil, err
	}
	return ratelimit.NewLimiter(rlCfg.MaxRequests, rlCfg.Window, f.logger), nil
}

// CreateNotifier creates the change notifier driven by service
func (f *HTTPFactory) CreateNotifier(service *core.RiskAnalysisService) (*notifier.Notifier, error) {
	nCfg, err := f.cfg.GetNotifier()
	if err != nil {
		return nil, err
	}
	return notifier.New(service, notifier.Config{
		PollInterval:      nCfg.PollInterval,
		HeartbeatInterval: nCfg.HeartbeatInterval,
		ErrorBackoff:      nCfg.ErrorBackoff,
	}, f.logger), nil
}

// CreateServer creates the HTTP frontend
func (f *HTTPFactory) CreateServer(
	service *core.RiskAnalysisService,
	changes *notifier.Notifier,
	limiter *ratelimit.Limiter,
	audit core.AuditLog,
	collector *metrics.Collector,
) *httpapi.Server {
	httpCfg := f.cfg.GetHTTP()

	var metricsHandler http.Handler
	if f.cfg.GetBool("metrics.enabled") {
		metricsHandler = collector.Handler()
	}

	return httpapi.NewServer(service, changes, limiter, audit, collector, f.logger, httpapi.Options{
		ListenAddress:  httpCfg.ListenAddress,
		CORSOrigins:    httpCfg.CORSOrigins,
		AnalyzeLimit:   httpCfg.AnalyzeLimit,
		MetricsHandler: metricsHandler,
	})
}
