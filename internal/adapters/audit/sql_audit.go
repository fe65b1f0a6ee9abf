package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"go.uber.org/zap"
)

// timestampLayout is used for created_at in both SQL dialects
const timestampLayout = "2006-01-02 15:04:05"

// Event types written to the audit trail
const (
	EventAnalysis      = "analysis"
	EventSubjectChange = "subject_change"
)

// Event is one row of the audit trail
type Event struct {
	Type      string
	MessageID string
	Details   map[string]string
	CreatedAt time.Time
}

// sqlAuditLog holds the dialect independent part of the SQL audit sinks
type sqlAuditLog struct {
	db          *sql.DB
	name        string
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	now         func() time.Time
}

func newSQLAuditLog(db *sql.DB, name string, logger *zap.Logger, retention, cleanupFreq time.Duration) *sqlAuditLog {
	l := &sqlAuditLog{
		db:          db,
		name:        name,
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if retention > 0 && cleanupFreq > 0 {
		go l.startCleanupTask()
	}

	return l
}

// RecordAnalysis stores the outcome of one analysis
func (l *sqlAuditLog) RecordAnalysis(ctx context.Context, result *core.AnalysisResult) error {
	details := map[string]string{
		"subject":     result.Subject,
		"from":        result.From,
		"score":       fmt.Sprintf("%d", result.Final.Score),
		"risk_level":  result.Final.RiskLevel,
		"ai_degraded": fmt.Sprintf("%t", result.AI.IsDegraded()),
	}
	return l.insert(ctx, EventAnalysis, result.MessageID, details)
}

// RecordSubjectChange stores a subject modification
func (l *sqlAuditLog) RecordSubjectChange(ctx context.Context, id, oldSubject, newSubject, riskLevel string) error {
	details := map[string]string{
		"old_subject": oldSubject,
		"new_subject": newSubject,
		"risk_level":  riskLevel,
	}
	return l.insert(ctx, EventSubjectChange, id, details)
}

// RecordSecurityEvent stores an arbitrary security event
func (l *sqlAuditLog) RecordSecurityEvent(ctx context.Context, eventType string, details map[string]string) error {
	return l.insert(ctx, eventType, "", details)
}

// Ping checks the database connection
func (l *sqlAuditLog) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping %s audit database: %w", l.name, err)
	}
	return nil
}

func (l *sqlAuditLog) insert(ctx context.Context, eventType, messageID string, details map[string]string) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO audit_events (event_type, message_id, details, created_at)
		VALUES (?, ?, ?, ?)
	`, eventType, messageID, string(payload), l.now().UTC().Format(timestampLayout))

	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// Recent returns the latest events, newest first
func (l *sqlAuditLog) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_type, message_id, details, created_at
		FROM audit_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var details, createdAt string
		if err := rows.Scan(&event.Type, &event.MessageID, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &event.Details); err != nil {
			return nil, fmt.Errorf("failed to decode audit details: %w", err)
		}
		event.CreatedAt, err = time.Parse(timestampLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// Cleanup removes events older than the retention period
func (l *sqlAuditLog) Cleanup(ctx context.Context) error {
	cutoff := l.now().UTC().Add(-l.retention).Format(timestampLayout)
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM audit_events
		WHERE created_at < ?
	`, cutoff)

	if err != nil {
		return fmt.Errorf("failed to clean up audit events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		l.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		l.logger.Debug("Cleaned up old audit events", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// startCleanupTask starts a background task to drop old events
func (l *sqlAuditLog) startCleanupTask() {
	ticker := time.NewTicker(l.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.Cleanup(context.Background()); err != nil {
				l.logger.Error("Failed to clean up audit events", zap.Error(err))
			}
		case <-l.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (l *sqlAuditLog) Stop() {
	close(l.stopCh)
	if err := l.db.Close(); err != nil {
		l.logger.Error("Failed to close audit database", zap.String("driver", l.name), zap.Error(err))
	}
}
