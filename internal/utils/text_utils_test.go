package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 10))
	assert.Equal(t, "no limit", tp.TruncateText("no limit", 0))
	assert.Equal(t, "abc"+TruncationMarker, tp.TruncateText("abcdef", 3))

	// "ä" is two bytes; cutting inside it drops the partial rune
	out := tp.TruncateText("aä", 2)
	assert.Equal(t, "a"+TruncationMarker, out)
	assert.True(t, utf8.ValidString(out))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "clean", tp.SanitizeUTF8("clean"))
	assert.Equal(t, "a\uFFFDb", tp.SanitizeUTF8("a\xffb"))

	// Decomposed "e" + combining acute becomes the composed form
	assert.Equal(t, "caf\u00e9", tp.SanitizeUTF8("cafe\u0301"))
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	out := tp.ProcessText("a\xffbcdef", 4)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
}

func TestBuildContext(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	req := &core.AssessmentRequest{
		Text:    "Please verify your account",
		Subject: "Urgent",
		From:    "security@paypa1.test",
		Headers: core.HeaderFindings{SPF: "fail", DKIM: core.DKIMMissing},
		Links:   []core.LinkFinding{{URL: "http://xn--pypal-4ve.test", Host: "xn--pypal-4ve.test", Punycode: true, RiskScore: 50}},
	}

	out := tp.BuildContext(req, 0)

	assert.True(t, strings.HasPrefix(out, "From: security@paypa1.test\nSubject: Urgent\n\nPlease verify your account"))
	assert.Contains(t, out, `"spf":"fail"`)
	assert.Contains(t, out, `"dkim":"missing"`)
	assert.Contains(t, out, `Links: [{"url":"http://xn--pypal-4ve.test"`)
}

func TestBuildContext_NoLinks(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	out := tp.BuildContext(&core.AssessmentRequest{Text: "hello"}, 0)

	assert.True(t, strings.HasPrefix(out, "hello\n\nHeader findings: "))
	assert.NotContains(t, out, "Links:")
}
