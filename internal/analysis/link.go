package analysis

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"go.uber.org/zap"
)

var urlPattern = regexp.MustCompile(`https?://[\w.\-/?&=%#:~+]+`)

// Link risk contributions
const (
	punycodeRisk   = 50
	emptyHostRisk  = 30
	longHostRisk   = 20
	deepHostRisk   = 15
	maxLinkRisk    = 100
	longHostLength = 50
	deepHostLabels = 3
)

// LinkAnalyzer extracts URLs from body text and scores their hosts
type LinkAnalyzer struct {
	logger *zap.Logger
}

// NewLinkAnalyzer creates a link analyzer
func NewLinkAnalyzer(logger *zap.Logger) *LinkAnalyzer {
	return &LinkAnalyzer{logger: logger}
}

// Analyze returns one finding per URL in text, in order of appearance.
// URLs that cannot be parsed are skipped.
func (a *LinkAnalyzer) Analyze(text string) []core.LinkFinding {
	matches := urlPattern.FindAllString(text, -1)
	findings := make([]core.LinkFinding, 0, len(matches))
	for _, raw := range matches {
		parsed, err := url.Parse(raw)
		if err != nil {
			a.logger.Debug("Skipping malformed URL", zap.String("url", raw), zap.Error(err))
			continue
		}
		findings = append(findings, scoreLink(raw, strings.ToLower(parsed.Hostname())))
	}
	return findings
}

func scoreLink(raw, host string) core.LinkFinding {
	finding := core.LinkFinding{
		URL:      raw,
		Host:     host,
		Punycode: strings.HasPrefix(host, "xn--"),
	}

	risk := 0
	if finding.Punycode {
		risk += punycodeRisk
	}
	if host == "" {
		risk += emptyHostRisk
	}
	if len(host) > longHostLength {
		risk += longHostRisk
	}
	if len(strings.Split(host, ".")) > deepHostLabels {
		risk += deepHostRisk
	}
	finding.RiskScore = min(risk, maxLinkRisk)

	return finding
}
