package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/mail-risk-analyzer/internal/adapters/audit"
	"github.com/mikey/mail-risk-analyzer/internal/config"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"go.uber.org/zap"
)

// AuditFactory creates the audit log based on configuration
type AuditFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewAuditFactory creates a new audit factory
func NewAuditFactory(cfg *config.Config, logger *zap.Logger) *AuditFactory {
	return &AuditFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateAuditLog creates the audit sink selected by audit.type. SQL sinks
// also write every event to the audit logger.
func (f *AuditFactory) CreateAuditLog() (core.AuditLog, error) {
	auditCfg, err := f.cfg.GetAudit()
	if err != nil {
		return nil, err
	}

	logSink := audit.NewLoggerAuditLog(f.logger)

	switch auditCfg.Type {
	case "log", "":
		return logSink, nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(auditCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		sink, err := audit.NewSQLiteAuditLog(auditCfg.SQLitePath, f.logger, auditCfg.Retention, auditCfg.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return audit.NewMultiAuditLog(logSink, sink), nil
	case "mysql":
		sink, err := audit.NewMySQLAuditLog(auditCfg.MySQLDSN, f.logger, auditCfg.Retention, auditCfg.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return audit.NewMultiAuditLog(logSink, sink), nil
	default:
		return nil, fmt.Errorf("unsupported audit type: %s", auditCfg.Type)
	}
}
