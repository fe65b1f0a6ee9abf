package audit

import (
	"context"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"go.uber.org/zap"
)

// LoggerAuditLog writes audit events to a named zap logger
type LoggerAuditLog struct {
	logger *zap.Logger
}

// NewLoggerAuditLog creates an audit log on the "audit" child of logger
func NewLoggerAuditLog(logger *zap.Logger) *LoggerAuditLog {
	return &LoggerAuditLog{logger: logger.Named("audit")}
}

func (l *LoggerAuditLog) RecordAnalysis(_ context.Context, result *core.AnalysisResult) error {
	l.logger.Info("Email analysis",
		zap.String("event", EventAnalysis),
		zap.String("uid", result.MessageID),
		zap.String("subject", result.Subject),
		zap.String("from", result.From),
		zap.Int("score", result.Final.Score),
		zap.String("risk_level", result.Final.RiskLevel),
		zap.Bool("ai_degraded", result.AI.IsDegraded()))
	return nil
}

func (l *LoggerAuditLog) RecordSubjectChange(_ context.Context, id, oldSubject, newSubject, riskLevel string) error {
	l.logger.Info("Subject modification",
		zap.String("event", EventSubjectChange),
		zap.String("uid", id),
		zap.String("old_subject", oldSubject),
		zap.String("new_subject", newSubject),
		zap.String("risk_level", riskLevel))
	return nil
}

func (l *LoggerAuditLog) RecordSecurityEvent(_ context.Context, eventType string, details map[string]string) error {
	fields := make([]zap.Field, 0, len(details)+1)
	fields = append(fields, zap.String("event", eventType))
	for key, value := range details {
		fields = append(fields, zap.String(key, value))
	}
	l.logger.Warn("Security event", fields...)
	return nil
}

func (l *LoggerAuditLog) Ping(context.Context) error {
	return nil
}

// MultiAuditLog fans every event out to several sinks
type MultiAuditLog struct {
	sinks []core.AuditLog
}

// NewMultiAuditLog combines sinks; nil entries are skipped
func NewMultiAuditLog(sinks ...core.AuditLog) *MultiAuditLog {
	m := &MultiAuditLog{}
	for _, sink := range sinks {
		if sink != nil {
			m.sinks = append(m.sinks, sink)
		}
	}
	return m
}

func (m *MultiAuditLog) RecordAnalysis(ctx context.Context, result *core.AnalysisResult) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.RecordAnalysis(ctx, result); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiAuditLog) RecordSubjectChange(ctx context.Context, id, oldSubject, newSubject, riskLevel string) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.RecordSubjectChange(ctx, id, oldSubject, newSubject, riskLevel); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiAuditLog) RecordSecurityEvent(ctx context.Context, eventType string, details map[string]string) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.RecordSecurityEvent(ctx, eventType, details); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiAuditLog) Ping(ctx context.Context) error {
	for _, sink := range m.sinks {
		if err := sink.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops every sink that runs background work
func (m *MultiAuditLog) Stop() {
	for _, sink := range m.sinks {
		if s, ok := sink.(interface{ Stop() }); ok {
			s.Stop()
		}
	}
}
