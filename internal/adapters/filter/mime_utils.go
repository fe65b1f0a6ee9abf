package filter

import (
	"strconv"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/mailparse"
)

// Default names of the headers stamped on filtered mail
const (
	DefaultScoreHeader   = "X-Risk-Score"
	DefaultLevelHeader   = "X-Risk-Level"
	DefaultReasonsHeader = "X-Risk-Reasons"
	AnalysisErrorHeader  = "X-Risk-Analysis-Error"
)

// maxReasonsLength keeps the reasons header within a sane line length
const maxReasonsLength = 900

// HeaderNames configures the stamped header names
type HeaderNames struct {
	Score   string
	Level   string
	Reasons string
}

func (n HeaderNames) withDefaults() HeaderNames {
	if n.Score == "" {
		n.Score = DefaultScoreHeader
	}
	if n.Level == "" {
		n.Level = DefaultLevelHeader
	}
	if n.Reasons == "" {
		n.Reasons = DefaultReasonsHeader
	}
	return n
}

// stampMessage adds the risk headers to raw and, when prefixSubject is set,
// marks the subject of high and medium risk mail. result may be nil when the
// analysis failed; analysisErr is then stamped instead.
func stampMessage(raw []byte, names HeaderNames, result *core.AnalysisResult, analysisErr error, prefixSubject bool) ([]byte, error) {
	return mailparse.RewriteHeader(raw, func(h *mail.Header) {
		if result == nil {
			msg := "analysis failed"
			if analysisErr != nil {
				msg = analysisErr.Error()
			}
			h.Set(AnalysisErrorHeader, msg)
			return
		}

		h.Set(names.Score, strconv.Itoa(result.Final.Score))
		h.Set(names.Level, result.Final.RiskLevel)
		if reasons := summarizeReasons(result); reasons != "" {
			h.Set(names.Reasons, reasons)
		}

		if !prefixSubject || result.Final.RiskLevel == core.RiskLow {
			return
		}
		subject, err := h.Subject()
		if err != nil {
			subject = h.Get("Subject")
		}
		if !core.HasRiskPrefix(subject) {
			h.SetSubject(core.RiskPrefix(result.Final.RiskLevel) + subject)
		}
	})
}

// summarizeReasons lists the AI reasons followed by the header and link warnings
func summarizeReasons(result *core.AnalysisResult) string {
	var parts []string
	parts = append(parts, result.AI.Reasons()...)

	headers := result.Headers
	for _, warning := range []string{headers.FromLookalike, headers.ReplyPathWarning, headers.RecipientWarning} {
		if flagged(warning) {
			parts = append(parts, warning)
		}
	}
	if len(headers.DangerousAttachments) > 0 {
		parts = append(parts, "dangerous attachments: "+strings.Join(headers.DangerousAttachments, ", "))
	}
	for _, link := range result.Links {
		if link.Punycode {
			parts = append(parts, "punycode link "+link.Host)
		}
	}
	if result.AI.IsDegraded() {
		parts = append(parts, "AI assessment unavailable")
	}

	summary := strings.Join(parts, "; ")
	// Folded header lines must not carry raw newlines
	summary = strings.NewReplacer("\r", " ", "\n", " ").Replace(summary)
	if len(summary) > maxReasonsLength {
		summary = summary[:maxReasonsLength] + "..."
	}
	return summary
}

// flagged reports whether a header finding carries a warning
func flagged(finding string) bool {
	return finding != "" && finding != core.StatusOK
}
