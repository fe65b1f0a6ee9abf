package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func resultWith(score int, reasons ...string) *AnalysisResult {
	return &AnalysisResult{
		AI:    OK(AIFinding{Classification: "x", RiskLevel: "x", Score: 0, Reasons: reasons}),
		Final: CompositeScore{Score: score, RiskLevel: RiskLevelFor(score)},
	}
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil)

	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, float64(0), stats.AverageScore)
	assert.NotNil(t, stats.TopThreats)
}

func TestComputeStats(t *testing.T) {
	results := []*AnalysisResult{
		resultWith(90, "Classic phishing attempt", "Lookalike domain paypa1.com"),
		resultWith(60, "SPF failed"),
		resultWith(10, "Newsletter from a known sender"),
		{Final: CompositeScore{Score: 20, RiskLevel: RiskLow}, AI: Degraded("x", nil)},
	}

	stats := ComputeStats(results)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.HighRisk)
	assert.Equal(t, 1, stats.MediumRisk)
	assert.Equal(t, 2, stats.LowRisk)
	assert.Equal(t, 45.0, stats.AverageScore)
	assert.ElementsMatch(t, []ThreatCount{
		{Threat: "Phishing", Count: 1},
		{Threat: "Lookalike domain", Count: 1},
		{Threat: "SPF failure", Count: 1},
		{Threat: OtherThreat, Count: 1},
	}, stats.TopThreats)
}

func TestComputeStats_OrdersByCount(t *testing.T) {
	results := []*AnalysisResult{
		resultWith(50, "spam wave", "urgent payment"),
		resultWith(50, "spam again"),
	}

	stats := ComputeStats(results)

	assert.Equal(t, ThreatCount{Threat: "Spam", Count: 2}, stats.TopThreats[0])
}

func TestThreatCategory(t *testing.T) {
	assert.Equal(t, "Dangerous attachment", ThreatCategory("Attachment invoice.exe is executable"))
	assert.Equal(t, "DKIM failure", ThreatCategory("no DKIM signature"))
	assert.Equal(t, OtherThreat, ThreatCategory("looks fine"))
}

func TestRiskPrefix(t *testing.T) {
	assert.Equal(t, PrefixHighRisk, RiskPrefix("HIGH"))
	assert.Equal(t, PrefixWarning, RiskPrefix(RiskMedium))
	assert.Equal(t, PrefixInfo, RiskPrefix(RiskLow))
	assert.Equal(t, PrefixInfo, RiskPrefix(""))
}

func TestHasRiskPrefix(t *testing.T) {
	assert.True(t, HasRiskPrefix("[⚠️ High risk] Invoice"))
	assert.True(t, HasRiskPrefix("[Info]Invoice"))
	assert.False(t, HasRiskPrefix("Re: [Info] Invoice"))
	assert.False(t, HasRiskPrefix(""))
}
