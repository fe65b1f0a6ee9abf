package core

import (
	"regexp"
	"sort"
)

// maxTopThreats bounds the threat list of Stats
const maxTopThreats = 10

// OtherThreat is the category of reasons that match no known pattern
const OtherThreat = "Other threat"

var threatPatterns = []struct {
	pattern *regexp.Regexp
	name    string
}{
	{regexp.MustCompile(`(?i)phishing`), "Phishing"},
	{regexp.MustCompile(`(?i)spam`), "Spam"},
	{regexp.MustCompile(`(?i)malware`), "Malware"},
	{regexp.MustCompile(`(?i)ransomware`), "Ransomware"},
	{regexp.MustCompile(`(?i)fraud|scam`), "Fraud"},
	{regexp.MustCompile(`(?i)credential|password`), "Credential theft"},
	{regexp.MustCompile(`(?i)social engineering`), "Social engineering"},
	{regexp.MustCompile(`(?i)lookalike|impersonat`), "Lookalike domain"},
	{regexp.MustCompile(`(?i)\bspf\b`), "SPF failure"},
	{regexp.MustCompile(`(?i)\bdkim\b`), "DKIM failure"},
	{regexp.MustCompile(`(?i)\bdmarc\b`), "DMARC failure"},
	{regexp.MustCompile(`(?i)attachment`), "Dangerous attachment"},
	{regexp.MustCompile(`(?i)link|url`), "Dangerous link"},
	{regexp.MustCompile(`(?i)money|payment|invoice`), "Payment request"},
	{regexp.MustCompile(`(?i)urgen|pressure|threat`), "Pressure tactics"},
}

// ThreatCategory maps a free-text AI reason to a threat category
func ThreatCategory(reason string) string {
	for _, tp := range threatPatterns {
		if tp.pattern.MatchString(reason) {
			return tp.name
		}
	}
	return OtherThreat
}

// ComputeStats aggregates analysis results by risk level and threat category
func ComputeStats(results []*AnalysisResult) Stats {
	stats := Stats{TopThreats: []ThreatCount{}}
	if len(results) == 0 {
		return stats
	}

	counts := make(map[string]int)
	total := 0
	for _, result := range results {
		if result == nil {
			continue
		}
		stats.Total++
		total += result.Final.Score
		switch result.Final.RiskLevel {
		case RiskHigh:
			stats.HighRisk++
		case RiskMedium:
			stats.MediumRisk++
		default:
			stats.LowRisk++
		}
		for _, reason := range result.AI.Reasons() {
			counts[ThreatCategory(reason)]++
		}
	}
	if stats.Total == 0 {
		return stats
	}
	stats.AverageScore = float64(total) / float64(stats.Total)

	for threat, count := range counts {
		stats.TopThreats = append(stats.TopThreats, ThreatCount{Threat: threat, Count: count})
	}
	sort.Slice(stats.TopThreats, func(i, j int) bool {
		if stats.TopThreats[i].Count == stats.TopThreats[j].Count {
			return stats.TopThreats[i].Threat < stats.TopThreats[j].Threat
		}
		return stats.TopThreats[i].Count > stats.TopThreats[j].Count
	})
	if len(stats.TopThreats) > maxTopThreats {
		stats.TopThreats = stats.TopThreats[:maxTopThreats]
	}
	return stats
}
