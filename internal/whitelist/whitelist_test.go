package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBrandTable_Check(t *testing.T) {
	table := NewBrandTable(nil, zap.NewNop())

	tests := []struct {
		domain  string
		flagged bool
		reason  string
	}{
		{"paypal.com", false, ""},
		{"paypal.com.evil.net", true, "lookalike of paypal.com: paypal.com.evil.net"},
		{"secure-paypalcom.ru", true, "lookalike of paypal.com: secure-paypalcom.ru"},
		{"xn--pypal-4ve.com", true, "punycode domain: xn--pypal-4ve.com"},
		{"example.org", false, ""},
		{"", false, ""},
		{"amazon.de.login.info", true, "lookalike of amazon.de: amazon.de.login.info"},
	}
	for _, tc := range tests {
		t.Run(tc.domain, func(t *testing.T) {
			flagged, reason := table.Check(tc.domain)
			assert.Equal(t, tc.flagged, flagged)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestBrandTable_FirstBrandWins(t *testing.T) {
	table := NewBrandTable([]string{"Example.com", "example.co"}, nil)

	_, reason := table.Check("example.com.phish")

	assert.Equal(t, "lookalike of example.com: example.com.phish", reason)
	assert.Equal(t, []string{"example.com", "example.co"}, table.Brands())
}

func TestBrandTable_PunycodeWithoutBrands(t *testing.T) {
	table := NewBrandTable([]string{" "}, nil)

	flagged, _ := table.Check("xn--80ak6aa92e.com")

	assert.True(t, flagged)
}
