package core

import "strings"

// Subject prefixes applied by ModifySubject, per risk level
const (
	PrefixHighRisk = "[⚠️ High risk] "
	PrefixWarning  = "[Warning] "
	PrefixInfo     = "[Info] "
)

var riskPrefixes = []string{PrefixHighRisk, PrefixWarning, PrefixInfo}

// RiskPrefix returns the subject prefix for a risk level. Unknown levels get the info prefix.
func RiskPrefix(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case RiskHigh:
		return PrefixHighRisk
	case RiskMedium:
		return PrefixWarning
	default:
		return PrefixInfo
	}
}

// HasRiskPrefix reports whether the subject already starts with a risk marker
func HasRiskPrefix(subject string) bool {
	for _, prefix := range riskPrefixes {
		// Mail clients may trim the trailing space of the marker
		if strings.HasPrefix(subject, strings.TrimSpace(prefix)) {
			return true
		}
	}
	return false
}
