package factory

import (
	"errors"

	"github.com/mikey/mail-risk-analyzer/internal/adapters/imapstore"
	"github.com/mikey/mail-risk-analyzer/internal/config"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/workerpool"
	"go.uber.org/zap"
)

// TransportFactory creates the mailbox transport
type TransportFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewTransportFactory creates a new transport factory
func NewTransportFactory(cfg *config.Config, logger *zap.Logger) *TransportFactory {
	return &TransportFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTransport creates the IMAP transport. Every call runs on a bounded
// worker pool sized by transport.workers.
func (f *TransportFactory) CreateTransport() (core.MailTransport, error) {
	imapCfg, err := f.cfg.GetIMAP()
	if err != nil {
		return nil, err
	}
	if imapCfg.Host == "" {
		return nil, errors.New("imap host is required")
	}

	transport := imapstore.NewTransport(imapstore.Config{
		Host:               imapCfg.Host,
		Port:               imapCfg.Port,
		Username:           imapCfg.Username,
		Password:           imapCfg.Password,
		Mailbox:            imapCfg.Mailbox,
		TLS:                imapCfg.TLS,
		InsecureSkipVerify: imapCfg.InsecureSkipVerify,
		Timeout:            imapCfg.Timeout,
	}, f.logger)

	pool := workerpool.New(imapCfg.Workers)
	f.logger.Info("Using IMAP transport",
		zap.String("host", imapCfg.Host),
		zap.Int("port", imapCfg.Port),
		zap.Int("workers", pool.Workers()))

	return workerpool.NewPooledTransport(transport, pool), nil
}
