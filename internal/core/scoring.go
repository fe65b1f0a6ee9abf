package core

import (
	"math"
	"strings"
)

// Risk level thresholds on the composite score
const (
	HighRiskThreshold   = 80
	MediumRiskThreshold = 50
)

// CombineScores fuses header, link and AI findings into the composite score.
// It is a pure function of its inputs.
//
//	header = 10*[spf starts with "pass"] + 5*[dkim present] + 5*[dmarc pass]
//	links  = -10*[any punycode] - 5*[more than 3 links]
//	raw    = 0.6*ai + 0.2*header + 0.2*(100+links) + penalty
func CombineScores(headers HeaderFindings, links []LinkFinding, ai AIResult) CompositeScore {
	headerScore := 0
	if strings.HasPrefix(strings.ToLower(headers.SPF), "pass") {
		headerScore += 10
	}
	if headers.DKIM == DKIMPresent {
		headerScore += 5
	}
	if headers.DMARC == DMARCPass {
		headerScore += 5
	}

	linkScore := 0
	for _, link := range links {
		if link.Punycode {
			linkScore -= 10
			break
		}
	}
	if len(links) > 3 {
		linkScore -= 5
	}

	penalty := -20*len(headers.DangerousAttachments) -
		10*len(headers.EncryptedAttachments) -
		10*len(headers.HeaderAnomalies) -
		5*len(headers.TrackingPixels)
	if headers.RecipientWarning != "" && headers.RecipientWarning != StatusOK {
		penalty -= 10
	}

	aiScore := ai.Score()

	// Scaled by 10 so integer inputs stay exact before rounding
	scaled := 6*aiScore + float64(2*headerScore) + float64(2*(100+linkScore)) + float64(10*penalty)
	final := int(math.Round(scaled / 10))
	final = max(0, min(100, final))

	return CompositeScore{
		Score:       final,
		RiskLevel:   RiskLevelFor(final),
		HeaderScore: headerScore,
		LinkScore:   linkScore,
		AIScore:     aiScore,
		Penalty:     penalty,
	}
}

// RiskLevelFor maps a composite score to its risk level
func RiskLevelFor(score int) string {
	switch {
	case score >= HighRiskThreshold:
		return RiskHigh
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}
