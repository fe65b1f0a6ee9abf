package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/mailparse"
	"go.uber.org/zap"
)

// Analyzer runs the risk pipeline for one message
type Analyzer interface {
	AnalyzeMessage(ctx context.Context, msg *core.Message) (*core.AnalysisResult, error)
}

// SMTPOptions configures the SMTP content filter
type SMTPOptions struct {
	ListenAddress   string
	BlockHighRisk   bool
	ModifySubject   bool
	Headers         HeaderNames
	RelayEnabled    bool
	RelayAddress    string
	RelayPort       int
	AnalysisTimeout time.Duration
}

// SMTPFilter is an SMTP content filter: the MTA hands it every message, it
// stamps the risk headers and relays the message back to the MTA
type SMTPFilter struct {
	service Analyzer
	logger  *zap.Logger
	opts    SMTPOptions
	server  *smtp.Server
}

// NewSMTPFilter creates a new SMTP content filter
func NewSMTPFilter(service Analyzer, logger *zap.Logger, opts SMTPOptions) *SMTPFilter {
	opts.Headers = opts.Headers.withDefaults()
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 60 * time.Second
	}
	return &SMTPFilter{
		service: service,
		logger:  logger,
		opts:    opts,
	}
}

// Start starts the SMTP listener in the background
func (f *SMTPFilter) Start() error {
	ln, err := net.Listen("tcp", f.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.opts.ListenAddress, err)
	}

	f.server = smtp.NewServer(&smtpBackend{filter: f})
	f.server.Addr = ln.Addr().String()
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50

	f.logger.Info("SMTP filter started", zap.String("address", f.server.Addr))

	go func() {
		if err := f.server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the address the filter listens on once started
func (f *SMTPFilter) Addr() string {
	if f.server == nil {
		return f.opts.ListenAddress
	}
	return f.server.Addr
}

// Stop stops the SMTP listener
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// relay sends the processed message back to the MTA
func (f *SMTPFilter) relay(sender string, recipients []string, data []byte) error {
	addr := net.JoinHostPort(f.opts.RelayAddress, strconv.Itoa(f.opts.RelayPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	accepted := 0
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			f.logger.Warn("Relay rejected recipient",
				zap.String("recipient", rcpt),
				zap.Error(err))
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message is already accepted
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

type smtpBackend struct {
	filter *SMTPFilter
}

func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

type smtpSession struct {
	filter     *SMTPFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	f := s.filter
	raw, err := io.ReadAll(r)
	if err != nil {
		f.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	senderDomain := "unknown"
	if i := strings.LastIndex(s.sender, "@"); i >= 0 {
		senderDomain = s.sender[i+1:]
	}

	// Mail in transit has no mailbox id and bypasses the analysis cache
	result, analysisErr := s.analyze(raw)
	if analysisErr != nil {
		f.logger.Error("Failed to analyze message",
			zap.Error(analysisErr),
			zap.String("sender", s.sender),
			zap.String("sender_domain", senderDomain))
	}

	if result != nil && result.Final.RiskLevel == core.RiskHigh && f.opts.BlockHighRisk {
		f.logger.Info("Rejecting high risk message",
			zap.String("from", s.sender),
			zap.String("sender_domain", senderDomain),
			zap.Int("score", result.Final.Score))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as high risk (score: %d)", result.Final.Score),
		}
	}

	stamped, err := stampMessage(raw, f.opts.Headers, result, analysisErr, f.opts.ModifySubject)
	if err != nil {
		// An unparseable header is relayed as received
		f.logger.Warn("Failed to stamp risk headers", zap.Error(err))
		stamped = raw
	}

	if f.opts.RelayEnabled {
		if err := f.relay(s.sender, s.recipients, stamped); err != nil {
			f.logger.Error("Failed to relay message",
				zap.Error(err),
				zap.String("sender", s.sender))
			return &smtp.SMTPError{
				Code:         451,
				EnhancedCode: smtp.EnhancedCode{4, 3, 0},
				Message:      "Temporary relay failure",
			}
		}
	} else {
		f.logger.Warn("Relay disabled, message dropped after analysis")
	}

	fields := []zap.Field{
		zap.String("from", s.sender),
		zap.String("sender_domain", senderDomain),
	}
	if result != nil {
		fields = append(fields,
			zap.Int("score", result.Final.Score),
			zap.String("risk_level", result.Final.RiskLevel))
	}
	f.logger.Info("Processed message", fields...)
	return nil
}

func (s *smtpSession) analyze(raw []byte) (*core.AnalysisResult, error) {
	msg, err := mailparse.Parse("", raw)
	if err != nil {
		return nil, err
	}
	if msg.From == "" {
		msg.From = s.sender
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.filter.opts.AnalysisTimeout)
	defer cancel()
	return s.filter.service.AnalyzeMessage(ctx, msg)
}

func (s *smtpSession) Logout() error {
	return nil
}
