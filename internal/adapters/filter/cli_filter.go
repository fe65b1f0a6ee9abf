package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/mailparse"
	"go.uber.org/zap"
)

// CLIFilter scores single message files and prints a report
type CLIFilter struct {
	service Analyzer
	logger  *zap.Logger
	out     io.Writer
	verbose bool
	asJSON  bool
}

// NewCLIFilter creates a new CLI filter writing to out
func NewCLIFilter(service Analyzer, logger *zap.Logger, out io.Writer, verbose, asJSON bool) *CLIFilter {
	if out == nil {
		out = os.Stdout
	}
	return &CLIFilter{
		service: service,
		logger:  logger,
		out:     out,
		verbose: verbose,
		asJSON:  asJSON,
	}
}

// ProcessFile reads an RFC 5322 message from path ("-" for stdin) and analyses it
func (f *CLIFilter) ProcessFile(ctx context.Context, path string) (*core.AnalysisResult, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	return f.ProcessMessage(ctx, raw)
}

// ProcessMessage analyses a raw message and prints the report
func (f *CLIFilter) ProcessMessage(ctx context.Context, raw []byte) (*core.AnalysisResult, error) {
	msg, err := mailparse.Parse("", raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	f.logger.Debug("Processing message", zap.String("sender", msg.From))

	start := time.Now()
	result, err := f.service.AnalyzeMessage(ctx, msg)
	if err != nil {
		f.logger.Error("Failed to analyze message", zap.Error(err))
		return nil, err
	}
	duration := time.Since(start)

	if f.asJSON {
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		return result, enc.Encode(result)
	}

	f.printReport(msg, result, duration)
	return result, nil
}

func (f *CLIFilter) printReport(msg *core.Message, result *core.AnalysisResult, duration time.Duration) {
	w := f.out
	fmt.Fprintf(w, "\n=== Message ===\n")
	fmt.Fprintf(w, "From: %s\n", msg.From)
	fmt.Fprintf(w, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(w, "Body length: %d bytes\n", len(msg.Body))
	fmt.Fprintf(w, "Attachments: %d\n", len(msg.Attachments))

	if f.verbose {
		preview := msg.Body
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		fmt.Fprintf(w, "\nBody preview:\n%s\n", preview)
	}

	h := result.Headers
	fmt.Fprintf(w, "\n=== Headers ===\n")
	fmt.Fprintf(w, "SPF: %s  DKIM: %s  DMARC: %s\n", h.SPF, h.DKIM, h.DMARC)
	if flagged(h.FromLookalike) {
		fmt.Fprintf(w, "Sender domain: %s\n", h.FromLookalike)
	}
	if flagged(h.ReplyPathWarning) {
		fmt.Fprintf(w, "Reply path: %s\n", h.ReplyPathWarning)
	}
	if flagged(h.RecipientWarning) {
		fmt.Fprintf(w, "Recipients: %s\n", h.RecipientWarning)
	}
	if len(h.DangerousAttachments) > 0 {
		fmt.Fprintf(w, "Dangerous attachments: %s\n", strings.Join(h.DangerousAttachments, ", "))
	}
	if len(h.HeaderAnomalies) > 0 {
		fmt.Fprintf(w, "Anomalies: %s\n", strings.Join(h.HeaderAnomalies, ", "))
	}

	if len(result.Links) > 0 {
		fmt.Fprintf(w, "\n=== Links ===\n")
		for _, link := range result.Links {
			fmt.Fprintf(w, "%3d  %s\n", link.RiskScore, link.URL)
		}
	}

	fmt.Fprintf(w, "\n=== AI ===\n")
	switch {
	case result.AI.Degraded != nil:
		fmt.Fprintf(w, "Unavailable: %s\n", result.AI.Degraded.Reason)
	case result.AI.Finding == nil:
		fmt.Fprintf(w, "Unavailable\n")
	default:
		fmt.Fprintf(w, "Classification: %s\n", result.AI.Finding.Classification)
		for _, reason := range result.AI.Reasons() {
			fmt.Fprintf(w, "  - %s\n", reason)
		}
	}

	final := result.Final
	fmt.Fprintf(w, "\n=== Result ===\n")
	fmt.Fprintf(w, "Score: %d\n", final.Score)
	fmt.Fprintf(w, "Risk level: %s\n", final.RiskLevel)
	fmt.Fprintf(w, "Header: %d  Links: %d  AI: %.1f  Penalty: %d\n",
		final.HeaderScore, final.LinkScore, final.AIScore, final.Penalty)
	fmt.Fprintf(w, "Processing time: %v\n", duration)
}
