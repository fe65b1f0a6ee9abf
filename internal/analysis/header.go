package analysis

import (
	"fmt"
	netmail "net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/whitelist"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// DefaultDangerousExtensions are the attachment extensions flagged when none are configured
var DefaultDangerousExtensions = []string{
	"exe", "scr", "bat", "cmd", "com", "pif", "js", "jse", "vbs", "vbe",
	"wsf", "jar", "msi", "ps1", "hta", "lnk", "iso", "img", "docm", "xlsm",
}

// Default thresholds of the header checks
const (
	DefaultMaxRecipients     = 10
	DefaultHeaderAnomalyDays = 30
)

var (
	domainPattern  = regexp.MustCompile(`@([\w.-]+)`)
	addressPattern = regexp.MustCompile(`<?([\w.-]+@[\w.-]+)>?`)
	recipientSplit = regexp.MustCompile(`[,;]`)
)

// HeaderConfig holds the thresholds of the header checks
type HeaderConfig struct {
	DangerousExtensions []string
	MaxRecipients       int
	HeaderAnomalyDays   int
}

// HeaderAnalyzer derives header findings from a message
type HeaderAnalyzer struct {
	brands        *whitelist.BrandTable
	dangerous     map[string]struct{}
	maxRecipients int
	anomalyDays   int
	logger        *zap.Logger
	now           func() time.Time
}

// NewHeaderAnalyzer creates a header analyzer
func NewHeaderAnalyzer(cfg HeaderConfig, brands *whitelist.BrandTable, logger *zap.Logger) *HeaderAnalyzer {
	extensions := cfg.DangerousExtensions
	if len(extensions) == 0 {
		extensions = DefaultDangerousExtensions
	}
	dangerous := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimLeft(strings.TrimSpace(ext), "."))
		if ext != "" {
			dangerous[ext] = struct{}{}
		}
	}

	if cfg.MaxRecipients <= 0 {
		cfg.MaxRecipients = DefaultMaxRecipients
	}
	if cfg.HeaderAnomalyDays <= 0 {
		cfg.HeaderAnomalyDays = DefaultHeaderAnomalyDays
	}
	if brands == nil {
		brands = whitelist.NewBrandTable(nil, logger)
	}

	return &HeaderAnalyzer{
		brands:        brands,
		dangerous:     dangerous,
		maxRecipients: cfg.MaxRecipients,
		anomalyDays:   cfg.HeaderAnomalyDays,
		logger:        logger,
		now:           time.Now,
	}
}

// SetClock replaces the time source used by the Date checks
func (a *HeaderAnalyzer) SetClock(now func() time.Time) {
	a.now = now
}

// Analyze runs every header check. A failing check keeps its default value
// and never prevents the others from running.
func (a *HeaderAnalyzer) Analyze(msg *core.Message) core.HeaderFindings {
	findings := core.HeaderFindings{
		SPF:                  core.StatusUnknown,
		DKIM:                 core.DKIMMissing,
		DMARC:                core.StatusUnknown,
		FromLookalike:        core.StatusOK,
		ReplyPathWarning:     core.StatusOK,
		RecipientWarning:     core.StatusOK,
		Attachments:          []string{},
		DangerousAttachments: []string{},
		EncryptedAttachments: []string{},
		HeaderAnomalies:      []string{},
		ExternalImages:       []string{},
		TrackingPixels:       []string{},
	}
	if msg == nil {
		return findings
	}

	a.run("authentication", msg, func() { a.checkAuthentication(msg, &findings) })
	a.run("sender_domain", msg, func() { a.checkSenderDomain(msg, &findings) })
	a.run("reply_path", msg, func() { a.checkReplyPath(msg, &findings) })
	a.run("attachments", msg, func() { a.checkAttachments(msg, &findings) })
	a.run("recipients", msg, func() { a.checkRecipients(msg, &findings) })
	a.run("anomalies", msg, func() { a.checkAnomalies(msg, &findings) })
	a.run("images", msg, func() { a.checkImages(msg, &findings) })

	return findings
}

// run executes one check, recovering from panics
func (a *HeaderAnalyzer) run(name string, msg *core.Message, check func()) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Header check failed",
				zap.String("check", name),
				zap.String("uid", msg.ID),
				zap.Any("panic", r))
		}
	}()
	check()
}

func (a *HeaderAnalyzer) checkAuthentication(msg *core.Message, f *core.HeaderFindings) {
	if spf := msg.Header("Received-SPF"); spf != "" {
		f.SPF = spf
	}
	if msg.Header("DKIM-Signature") != "" {
		f.DKIM = core.DKIMPresent
	}
	results := strings.Join(msg.HeaderValues("Authentication-Results"), "; ")
	switch {
	case strings.Contains(results, "dmarc=pass"):
		f.DMARC = core.DMARCPass
	case strings.Contains(results, "dmarc=fail"):
		f.DMARC = core.DMARCFail
	}
}

func (a *HeaderAnalyzer) checkSenderDomain(msg *core.Message, f *core.HeaderFindings) {
	f.FromDomain = extractDomain(a.from(msg))
	if flagged, reason := a.brands.Check(f.FromDomain); flagged {
		f.FromLookalike = reason
	}
}

func (a *HeaderAnalyzer) checkReplyPath(msg *core.Message, f *core.HeaderFindings) {
	from := normalizeAddress(a.from(msg))
	f.ReplyTo = msg.Header("Reply-To")
	f.ReturnPath = msg.Header("Return-Path")

	var warnings []string
	if replyTo := normalizeAddress(f.ReplyTo); replyTo != "" && replyTo != from {
		warnings = append(warnings, fmt.Sprintf("Reply-To differs from From: %s", replyTo))
	}
	if returnPath := normalizeAddress(f.ReturnPath); returnPath != "" && returnPath != from {
		warnings = append(warnings, fmt.Sprintf("Return-Path differs from From: %s", returnPath))
	}
	if len(warnings) > 0 {
		f.ReplyPathWarning = strings.Join(warnings, "; ")
	}
}

func (a *HeaderAnalyzer) checkAttachments(msg *core.Message, f *core.HeaderFindings) {
	for _, att := range msg.Attachments {
		name := att.Filename
		f.Attachments = append(f.Attachments, name)
		if _, ok := a.dangerous[extension(name)]; ok {
			f.DangerousAttachments = append(f.DangerousAttachments, name)
		}
		lower := strings.ToLower(name)
		if strings.Contains(lower, "encrypted") || strings.Contains(lower, "passwort") || strings.Contains(lower, "password") {
			f.EncryptedAttachments = append(f.EncryptedAttachments, name)
		}
	}
}

func (a *HeaderAnalyzer) checkRecipients(msg *core.Message, f *core.HeaderFindings) {
	f.ToCount = countAddresses(msg.HeaderValues("To"))
	f.CcCount = countAddresses(msg.HeaderValues("Cc"))
	f.BccCount = countAddresses(msg.HeaderValues("Bcc"))

	total := f.ToCount + f.CcCount + f.BccCount
	if total > a.maxRecipients {
		f.RecipientWarning = fmt.Sprintf("many recipients: %d (To: %d, CC: %d, BCC: %d)",
			total, f.ToCount, f.CcCount, f.BccCount)
	}
}

func (a *HeaderAnalyzer) checkAnomalies(msg *core.Message, f *core.HeaderFindings) {
	if strings.TrimSpace(msg.Header("Message-ID")) == "" {
		f.HeaderAnomalies = append(f.HeaderAnomalies, "missing Message-ID header")
	}

	raw := strings.TrimSpace(msg.Header("Date"))
	if raw == "" {
		f.HeaderAnomalies = append(f.HeaderAnomalies, "missing Date header")
		return
	}

	date, err := netmail.ParseDate(raw)
	if err != nil {
		f.HeaderAnomalies = append(f.HeaderAnomalies, "unparsable Date header")
		return
	}

	now := a.now().UTC()
	stamp := date.Format(time.RFC1123Z)
	switch {
	case date.After(now):
		f.HeaderAnomalies = append(f.HeaderAnomalies, fmt.Sprintf("Date header is in the future: %s", stamp))
	case int(now.Sub(date).Hours()/24) > a.anomalyDays:
		f.HeaderAnomalies = append(f.HeaderAnomalies, fmt.Sprintf("Date header is far in the past: %s", stamp))
	}
}

func (a *HeaderAnalyzer) checkImages(msg *core.Message, f *core.HeaderFindings) {
	for _, part := range msg.HTMLParts {
		external, tracking := scanImages(part)
		f.ExternalImages = append(f.ExternalImages, external...)
		f.TrackingPixels = append(f.TrackingPixels, tracking...)
	}
}

func (a *HeaderAnalyzer) from(msg *core.Message) string {
	if msg.From != "" {
		return msg.From
	}
	return msg.Header("From")
}

// scanImages tokenizes an HTML part and collects external image sources and
// 1x1 tracking pixels
func scanImages(doc string) (external, tracking []string) {
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a tokenizer failure, both end the scan
			return external, tracking
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "img" {
				continue
			}
			var src, width, height string
			for _, attr := range tok.Attr {
				switch strings.ToLower(attr.Key) {
				case "src":
					src = strings.TrimSpace(attr.Val)
				case "width":
					width = strings.TrimSpace(attr.Val)
				case "height":
					height = strings.TrimSpace(attr.Val)
				}
			}
			if strings.HasPrefix(src, "http") {
				external = append(external, src)
			}
			if src != "" && width == "1" && height == "1" {
				tracking = append(tracking, src)
			}
		}
	}
}

// extractDomain returns the lower-cased domain after the first @
func extractDomain(addr string) string {
	m := domainPattern.FindStringSubmatch(addr)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// normalizeAddress reduces an address header to a bare lower-cased address
func normalizeAddress(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(value); err == nil && addr.Address != "" {
		return strings.ToLower(addr.Address)
	}
	if m := addressPattern.FindStringSubmatch(value); m != nil {
		return strings.ToLower(m[1])
	}
	return strings.ToLower(value)
}

func countAddresses(values []string) int {
	count := 0
	for _, value := range values {
		for _, token := range recipientSplit.Split(value, -1) {
			if strings.Contains(token, "@") {
				count++
			}
		}
	}
	return count
}

// extension returns the lower-cased suffix after the last dot, or ""
func extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
