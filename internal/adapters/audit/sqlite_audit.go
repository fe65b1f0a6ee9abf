package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteAuditLog is a SQLite implementation of the AuditLog interface
type SQLiteAuditLog struct {
	*sqlAuditLog
}

// NewSQLiteAuditLog opens (and creates if needed) the SQLite audit database
func NewSQLiteAuditLog(dbPath string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLiteAuditLog, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			message_id TEXT,
			details TEXT,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_events(created_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteAuditLog{
		sqlAuditLog: newSQLAuditLog(db, "sqlite", logger, retention, cleanupFreq),
	}, nil
}
