package utils

import (
	"encoding/json"
	"strings"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"go.uber.org/zap"
)

// SystemPrompt instructs the model to answer with the JSON object ParseAIResult expects
const SystemPrompt = `You are an email security analyst. Analyze the following email and assess whether it is phishing, spam or legitimate.
Take into account the language (threats, urgency, psychological tricks), the contained links (punycode, suspicious domains) and the header information (SPF, DKIM, DMARC).
List the most important reasons for your assessment.
Respond only with a JSON object of the form:
{"classification": "Phishing" | "Spam" | "Legitimate", "risk_level": "high" | "medium" | "low", "score": 0-100, "reasons": ["..."]}`

// BuildContext renders the user message for an assessment: the processed body
// followed by the header and link findings as JSON.
func (tp *TextProcessor) BuildContext(req *core.AssessmentRequest, maxBodySize int) string {
	var b strings.Builder
	if req.From != "" {
		b.WriteString("From: " + req.From + "\n")
	}
	if req.Subject != "" {
		b.WriteString("Subject: " + req.Subject + "\n")
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(tp.ProcessText(req.Text, maxBodySize))

	if headers, err := json.Marshal(req.Headers); err == nil {
		b.WriteString("\n\nHeader findings: ")
		b.Write(headers)
	} else {
		tp.logger.Warn("Failed to encode header findings", zap.Error(err))
	}
	if len(req.Links) > 0 {
		if links, err := json.Marshal(req.Links); err == nil {
			b.WriteString("\n\nLinks: ")
			b.Write(links)
		}
	}
	return b.String()
}
