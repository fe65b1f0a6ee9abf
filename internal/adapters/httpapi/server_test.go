package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/metrics"
	"github.com/mikey/mail-risk-analyzer/internal/notifier"
	"github.com/mikey/mail-risk-analyzer/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeService struct {
	mu         sync.Mutex
	lastLimit  int
	analyzeErr error
	modifyErr  error
	change     *core.SubjectChange
}

func (f *fakeService) Analyze(_ context.Context, limit int) ([]core.MessageReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return []core.MessageReport{{
		MessageID: "42",
		Result: &core.AnalysisResult{
			MessageID: "42",
			Subject:   "Invoice",
			Final:     core.CompositeScore{Score: 72, RiskLevel: core.RiskHigh},
		},
	}}, nil
}

func (f *fakeService) ModifySubject(_ context.Context, id, level string) (*core.SubjectChange, error) {
	if f.modifyErr != nil {
		return nil, f.modifyErr
	}
	if f.change != nil {
		return f.change, nil
	}
	return &core.SubjectChange{Success: true, NewSubject: core.RiskPrefix(level) + "msg " + id}, nil
}

func (f *fakeService) Health(context.Context) *core.HealthReport {
	return &core.HealthReport{Status: core.HealthOK, Version: "test", Services: map[string]string{"imap": core.HealthOK}}
}

func (f *fakeService) Stats() core.Stats {
	return core.Stats{Total: 2, HighRisk: 1, AverageScore: 55.5, TopThreats: []core.ThreatCount{}}
}

type fakeSubscriber struct {
	events []notifier.Event
}

func (f *fakeSubscriber) Run(_ context.Context, emit notifier.EmitFunc) error {
	for _, e := range f.events {
		if err := emit(e); err != nil {
			return err
		}
	}
	return nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingAudit) RecordAnalysis(context.Context, *core.AnalysisResult) error { return nil }

func (r *recordingAudit) RecordSubjectChange(context.Context, string, string, string, string) error {
	return nil
}

func (r *recordingAudit) RecordSecurityEvent(_ context.Context, eventType string, _ map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recordingAudit) Ping(context.Context) error { return nil }

func newTestServer(svc Service, sub Subscriber, limiter RateLimiter, audit core.AuditLog, collector *metrics.Collector) http.Handler {
	opts := Options{AnalyzeLimit: 3}
	var observer Observer
	if collector != nil {
		observer = collector
		opts.MetricsHandler = collector.Handler()
	}
	return NewServer(svc, sub, limiter, audit, observer, zap.NewNop(), opts).Router()
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyze_DefaultLimit(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc, &fakeSubscriber{}, nil, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/analyze")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, svc.lastLimit)

	var body struct {
		Results []core.MessageReport `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "42", body.Results[0].MessageID)
	assert.Equal(t, 72, body.Results[0].Result.Final.Score)
}

func TestAnalyze_ExplicitAndInvalidLimit(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc, &fakeSubscriber{}, nil, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/analyze?limit=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, svc.lastLimit)

	rec = do(t, h, http.MethodGet, "/api/analyze?limit=seven")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &core.ValidationError{Field: "limit", Reason: "must be positive"}, http.StatusBadRequest, "validation_error"},
		{"transport", &core.TransportError{Op: "fetch", Err: errors.New("connection refused")}, http.StatusInternalServerError, "transport_error"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeService{analyzeErr: tt.err}, &fakeSubscriber{}, nil, nil, nil)

			rec := do(t, h, http.MethodGet, "/api/analyze")

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body.ErrorCode)
			assert.NotContains(t, body.Detail, "connection refused")
		})
	}
}

func TestModifySubject(t *testing.T) {
	h := newTestServer(&fakeService{}, &fakeSubscriber{}, nil, nil, nil)

	rec := do(t, h, http.MethodPost, "/api/modify-subject?uid=9&risk=high")
	require.Equal(t, http.StatusOK, rec.Code)

	var change core.SubjectChange
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&change))
	assert.True(t, change.Success)
	assert.Equal(t, core.RiskPrefix(core.RiskHigh)+"msg 9", change.NewSubject)

	rec = do(t, h, http.MethodPost, "/api/modify-subject?risk=high")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/modify-subject?uid=9&risk=high")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestModifySubject_AlreadyApplied(t *testing.T) {
	svc := &fakeService{change: &core.SubjectChange{AlreadyApplied: true, Subject: "[HIGH RISK] hi", Error: "subject already has risk prefix"}}
	h := newTestServer(svc, &fakeSubscriber{}, nil, nil, nil)

	rec := do(t, h, http.MethodPost, "/api/modify-subject?uid=9&risk=high")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"already_applied":true`)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHealthAndStats(t *testing.T) {
	h := newTestServer(&fakeService{}, &fakeSubscriber{}, nil, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health core.HealthReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, core.HealthOK, health.Status)

	rec = do(t, h, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats core.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Total)
	assert.InDelta(t, 55.5, stats.AverageScore, 0.001)
}

func TestEvents_StreamsSSE(t *testing.T) {
	sub := &fakeSubscriber{events: []notifier.Event{
		{ID: "a", Kind: notifier.KindHeartbeat, Timestamp: 1, Status: "alive"},
		{ID: "b", Kind: notifier.KindUpdate, Timestamp: 2, Type: "new_email", EmailCount: 4},
	}}
	h := newTestServer(&fakeService{}, sub, nil, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/events")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	frames := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.Len(t, frames, 2)
	assert.Equal(t, `event: heartbeat`+"\n"+`data: {"id":"a","timestamp":1,"status":"alive"}`, frames[0])
	assert.True(t, strings.HasPrefix(frames[1], "event: email_update\ndata: "))
	assert.Contains(t, frames[1], `"email_count":4`)
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(2, time.Minute, zap.NewNop())
	audit := &recordingAudit{}
	collector := metrics.NewCollector()
	h := newTestServer(&fakeService{}, &fakeSubscriber{}, limiter, audit, collector)

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodGet, "/api/health")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := do(t, h, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")

	assert.Equal(t, []string{SecurityEventRateLimited}, audit.events)
	metricsBody := do(t, h, http.MethodGet, "/metrics").Body.String()
	assert.Contains(t, metricsBody, "mail_risk_http_rate_limited_total 1")
}

func TestRateLimit_PerClient(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, time.Minute, zap.NewNop())
	h := newTestServer(&fakeService{}, &fakeSubscriber{}, limiter, nil, nil)

	first := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	first.RemoteAddr = "198.51.100.1:5000"
	second := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	second.RemoteAddr = "198.51.100.2:5000"

	for _, req := range []*http.Request{first, second} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMetricsEndpointAndRequestCounter(t *testing.T) {
	collector := metrics.NewCollector()
	h := newTestServer(&fakeService{}, &fakeSubscriber{}, nil, nil, collector)

	do(t, h, http.MethodGet, "/api/health")
	rec := do(t, h, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mail_risk_http_requests_total{route="/api/health",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(&fakeService{}, &fakeSubscriber{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartStop(t *testing.T) {
	s := NewServer(&fakeService{}, &fakeSubscriber{}, nil, nil, nil, zap.NewNop(), Options{ListenAddress: "127.0.0.1:0"})
	require.NoError(t, s.Start())
	assert.NoError(t, s.Stop())
}
