package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(score int, level string, degraded bool) *core.AnalysisResult {
	r := &core.AnalysisResult{Final: core.CompositeScore{Score: score, RiskLevel: level}}
	if degraded {
		r.AI = core.Degraded("plain text", errors.New("no JSON object found"))
	} else {
		r.AI = core.OK(core.AIFinding{Classification: "Spam", RiskLevel: level, Score: float64(score)})
	}
	return r
}

func TestCollector_ObserveAnalysis(t *testing.T) {
	c := NewCollector()

	c.ObserveAnalysis(result(85, core.RiskHigh, false), false)
	c.ObserveAnalysis(result(85, core.RiskHigh, false), true)
	c.ObserveAnalysis(result(20, core.RiskLow, true), false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.analyses.WithLabelValues(core.RiskHigh, "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.analyses.WithLabelValues(core.RiskHigh, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.analyses.WithLabelValues(core.RiskLow, "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.aiDegraded))
	assert.Equal(t, 1, testutil.CollectAndCount(c.scores))
}

func TestCollector_Failures(t *testing.T) {
	c := NewCollector()

	c.ObserveFailure("fetch")
	c.ObserveFailure("fetch")
	c.ObserveFailure("validate")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.failures.WithLabelValues("fetch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("validate")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ObserveRequest("/api/health", 200, 5*time.Millisecond)
	c.ObserveRateLimited()
	c.RegisterGauge("cache_entries", "Number of cached analyses", func() float64 { return 3 })

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mail_risk_http_requests_total{route="/api/health",status="200"} 1`)
	assert.Contains(t, string(body), "mail_risk_http_rate_limited_total 1")
	assert.Contains(t, string(body), "mail_risk_cache_entries 3")
}
