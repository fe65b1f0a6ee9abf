package whitelist

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultBrands are the brand domains checked for lookalikes when none are configured
var DefaultBrands = []string{
	"paypal.com",
	"amazon.de",
	"amazon.com",
	"sparkasse.de",
	"postbank.de",
	"deutsche-bank.de",
	"apple.com",
	"microsoft.com",
	"google.com",
	"dhl.de",
	"ups.com",
	"t-online.de",
}

// BrandTable detects sender domains impersonating known brand domains
type BrandTable struct {
	brands   []string
	stripped []string
	logger   *zap.Logger
}

// NewBrandTable creates a brand table. Order matters: the first matching brand wins.
func NewBrandTable(brands []string, logger *zap.Logger) *BrandTable {
	if len(brands) == 0 {
		brands = DefaultBrands
	}

	normalized := make([]string, 0, len(brands))
	stripped := make([]string, 0, len(brands))
	for _, brand := range brands {
		brand = strings.ToLower(strings.TrimSpace(brand))
		if brand == "" {
			continue
		}
		normalized = append(normalized, brand)
		stripped = append(stripped, strings.ReplaceAll(brand, ".", ""))
	}

	if logger != nil {
		logger.Info("Initialized brand table", zap.Strings("brands", normalized))
	}

	return &BrandTable{
		brands:   normalized,
		stripped: stripped,
		logger:   logger,
	}
}

// Brands returns the brand domains in evaluation order
func (t *BrandTable) Brands() []string {
	out := make([]string, len(t.brands))
	copy(out, t.brands)
	return out
}

// Check reports whether domain is a punycode domain or a lookalike of a known
// brand, together with the reason
func (t *BrandTable) Check(domain string) (bool, string) {
	domain = strings.ToLower(domain)
	if strings.HasPrefix(domain, "xn--") {
		return true, fmt.Sprintf("punycode domain: %s", domain)
	}

	compact := strings.ReplaceAll(domain, ".", "")
	for i, brand := range t.brands {
		if domain != brand && strings.Contains(compact, t.stripped[i]) {
			if t.logger != nil {
				t.logger.Debug("Domain resembles known brand",
					zap.String("domain", domain),
					zap.String("brand", brand))
			}
			return true, fmt.Sprintf("lookalike of %s: %s", brand, domain)
		}
	}

	return false, ""
}
