package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mail_risk"

// Collector holds the Prometheus metrics of the analyzer. It implements
// core.AnalysisObserver.
type Collector struct {
	registry *prometheus.Registry

	// analyses counts finished pipelines.
	// Labels: risk_level, cache (hit, miss)
	analyses *prometheus.CounterVec

	// scores is the distribution of composite scores
	scores prometheus.Histogram

	// aiDegraded counts results whose AI assessment could not be used
	aiDegraded prometheus.Counter

	// failures counts pipeline failures.
	// Labels: stage (fetch, validate, analyze, modify_subject)
	failures *prometheus.CounterVec

	// rateLimited counts rejected HTTP requests
	rateLimited prometheus.Counter

	// httpRequests counts HTTP requests.
	// Labels: route, status
	httpRequests *prometheus.CounterVec

	// httpDuration measures HTTP handler latency.
	// Labels: route
	httpDuration *prometheus.HistogramVec
}

// NewCollector registers all metrics on a fresh registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total analysed messages by risk level and cache outcome",
		}, []string{"risk_level", "cache"}),
		scores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "Distribution of composite risk scores",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		aiDegraded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "degraded_total",
			Help:      "Total analyses with a degraded AI assessment",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Total pipeline failures by stage",
		}, []string{"stage"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status",
		}, []string{"route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"route"}),
	}
}

// ObserveAnalysis records one finished pipeline
func (c *Collector) ObserveAnalysis(result *core.AnalysisResult, cacheHit bool) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	c.analyses.WithLabelValues(result.Final.RiskLevel, cache).Inc()
	if cacheHit {
		return
	}
	c.scores.Observe(float64(result.Final.Score))
	if result.AI.IsDegraded() {
		c.aiDegraded.Inc()
	}
}

// ObserveFailure records a pipeline failure at stage
func (c *Collector) ObserveFailure(stage string) {
	c.failures.WithLabelValues(stage).Inc()
}

// ObserveRateLimited records a rejected request
func (c *Collector) ObserveRateLimited() {
	c.rateLimited.Inc()
}

// ObserveRequest records a served HTTP request
func (c *Collector) ObserveRequest(route string, status int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RegisterGauge exposes a value computed at scrape time, e.g. the cache size
func (c *Collector) RegisterGauge(name, help string, fn func() float64) {
	promauto.With(c.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

var _ core.AnalysisObserver = (*Collector)(nil)
