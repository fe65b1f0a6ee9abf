package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLinkAnalyzer_ExtractsInOrderWithDuplicates(t *testing.T) {
	a := NewLinkAnalyzer(zap.NewNop())
	text := "See https://example.com/a?b=1 and http://example.com/x, then https://example.com/a?b=1 again."

	links := a.Analyze(text)

	require.Len(t, links, 3)
	assert.Equal(t, "https://example.com/a?b=1", links[0].URL)
	assert.Equal(t, "http://example.com/x", links[1].URL)
	assert.Equal(t, links[0], links[2])
	assert.Equal(t, "example.com", links[0].Host)
	assert.Equal(t, 0, links[0].RiskScore)
}

func TestLinkAnalyzer_NoLinks(t *testing.T) {
	links := NewLinkAnalyzer(zap.NewNop()).Analyze("nothing to see here, ftp://old.example.com")

	assert.Empty(t, links)
	assert.NotNil(t, links)
}

func TestLinkAnalyzer_Scores(t *testing.T) {
	long := strings.Repeat("a", 60) + ".com"
	tests := []struct {
		name     string
		text     string
		host     string
		punycode bool
		risk     int
	}{
		{"punycode", "https://xn--pypal-4ve.com/login", "xn--pypal-4ve.com", true, 50},
		{"empty host", "http:///path", "", false, 30},
		{"long host", "https://" + long, long, false, 20},
		{"deep host", "https://a.b.c.example.com/", "a.b.c.example.com", false, 15},
		{"punycode and deep", "https://xn--80ak6aa92e.login.secure.example.com", "xn--80ak6aa92e.login.secure.example.com", true, 65},
		{"uppercase host", "https://WWW.Example.COM", "www.example.com", false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			links := NewLinkAnalyzer(zap.NewNop()).Analyze(tc.text)

			require.Len(t, links, 1)
			assert.Equal(t, tc.host, links[0].Host)
			assert.Equal(t, tc.punycode, links[0].Punycode)
			assert.Equal(t, tc.risk, links[0].RiskScore)
		})
	}
}

func TestScoreLink_Accumulates(t *testing.T) {
	host := "xn--" + strings.Repeat("b", 50) + ".one.two.three"

	finding := scoreLink("https://"+host, host)

	assert.Equal(t, 85, finding.RiskScore)
	assert.True(t, finding.Punycode)
}

func TestLinkAnalyzer_SkipsMalformed(t *testing.T) {
	links := NewLinkAnalyzer(zap.NewNop()).Analyze("bad http://example.com:port then https://ok.example.com")

	require.Len(t, links, 1)
	assert.Equal(t, "ok.example.com", links[0].Host)
}
