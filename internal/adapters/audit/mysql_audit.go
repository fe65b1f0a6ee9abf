package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLAuditLog is a MySQL implementation of the AuditLog interface
type MySQLAuditLog struct {
	*sqlAuditLog
}

// NewMySQLAuditLog connects to MySQL and creates the audit table if needed
func NewMySQLAuditLog(dsn string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*MySQLAuditLog, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			event_type VARCHAR(64) NOT NULL,
			message_id VARCHAR(255),
			details TEXT,
			created_at DATETIME NOT NULL,
			INDEX idx_audit_created_at (created_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLAuditLog{
		sqlAuditLog: newSQLAuditLog(db, "mysql", logger, retention, cleanupFreq),
	}, nil
}
