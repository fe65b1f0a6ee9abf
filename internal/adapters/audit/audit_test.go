package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleResult() *core.AnalysisResult {
	return &core.AnalysisResult{
		MessageID: "17",
		Subject:   "Your parcel",
		From:      "dhl@dhl-track.test",
		AI:        core.Degraded("oops", errors.New("bad")),
		Final:     core.CompositeScore{Score: 12, RiskLevel: core.RiskLow},
	}
}

func TestLoggerAuditLog(t *testing.T) {
	obsCore, logs := observer.New(zapcore.InfoLevel)
	l := NewLoggerAuditLog(zap.New(obsCore))
	ctx := context.Background()

	require.NoError(t, l.RecordAnalysis(ctx, sampleResult()))
	require.NoError(t, l.RecordSubjectChange(ctx, "17", "Your parcel", "[Info] Your parcel", "low"))
	require.NoError(t, l.RecordSecurityEvent(ctx, "rate_limit_exceeded", map[string]string{"client": "192.0.2.7"}))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, EventAnalysis, entries[0].ContextMap()["event"])
	assert.Equal(t, int64(12), entries[0].ContextMap()["score"])
	assert.Equal(t, "[Info] Your parcel", entries[1].ContextMap()["new_subject"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "192.0.2.7", entries[2].ContextMap()["client"])
}

func newMemoryLog(t *testing.T) *SQLiteAuditLog {
	t.Helper()
	l, err := NewSQLiteAuditLog(":memory:", zap.NewNop(), 24*time.Hour, 0)
	require.NoError(t, err)
	t.Cleanup(l.Stop)
	return l
}

func TestSQLiteAuditLog_RecordsEvents(t *testing.T) {
	l := newMemoryLog(t)
	ctx := context.Background()

	require.NoError(t, l.Ping(ctx))
	require.NoError(t, l.RecordAnalysis(ctx, sampleResult()))
	require.NoError(t, l.RecordSubjectChange(ctx, "17", "Your parcel", "[Info] Your parcel", "low"))

	events, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, EventSubjectChange, events[0].Type)
	assert.Equal(t, "[Info] Your parcel", events[0].Details["new_subject"])
	assert.Equal(t, EventAnalysis, events[1].Type)
	assert.Equal(t, "17", events[1].MessageID)
	assert.Equal(t, "12", events[1].Details["score"])
	assert.Equal(t, "true", events[1].Details["ai_degraded"])
}

func TestSQLiteAuditLog_Cleanup(t *testing.T) {
	l := newMemoryLog(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	l.now = func() time.Time { return base }
	require.NoError(t, l.RecordSecurityEvent(ctx, "old", nil))
	l.now = func() time.Time { return base.Add(23 * time.Hour) }
	require.NoError(t, l.RecordSecurityEvent(ctx, "recent", map[string]string{"k": "v"}))

	l.now = func() time.Time { return base.Add(25 * time.Hour) }
	require.NoError(t, l.Cleanup(ctx))

	events, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "recent", events[0].Type)
	assert.Equal(t, base.Add(23*time.Hour), events[0].CreatedAt)
}

type failingSink struct {
	LoggerAuditLog
	err error
}

func (f *failingSink) RecordAnalysis(context.Context, *core.AnalysisResult) error { return f.err }
func (f *failingSink) Ping(context.Context) error                                  { return f.err }

func TestMultiAuditLog(t *testing.T) {
	obsCore, logs := observer.New(zapcore.InfoLevel)
	boom := errors.New("disk full")
	failing := &failingSink{LoggerAuditLog: *NewLoggerAuditLog(zap.NewNop()), err: boom}
	m := NewMultiAuditLog(failing, nil, NewLoggerAuditLog(zap.New(obsCore)))

	err := m.RecordAnalysis(context.Background(), sampleResult())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, logs.Len())
	assert.ErrorIs(t, m.Ping(context.Background()), boom)
}

func TestMultiAuditLog_StopsSQLSinks(t *testing.T) {
	sink, err := NewSQLiteAuditLog(filepath.Join(t.TempDir(), "audit.db"), zap.NewNop(), time.Hour, time.Hour)
	require.NoError(t, err)
	m := NewMultiAuditLog(NewLoggerAuditLog(zap.NewNop()), sink)

	m.Stop()

	assert.Error(t, sink.Ping(context.Background()))
}
