package security

import "github.com/sentinelstack/sentinel-engine/internal/models"

// Score derives the 0-100 health score from the supplied threats. It is a
// stateless recomputation over the recent window rather than an incremental
// counter, so missed ticks cannot make it drift.
func Score(recent []*models.SecurityThreat) float64 {
	score := 100.0
	for _, threat := range recent {
		score -= deduction(threat)
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func deduction(threat *models.SecurityThreat) float64 {
	mitigated := threat.AutoMitigated ||
		threat.Status == models.ThreatMitigated ||
		threat.Status == models.ThreatResolved

	switch threat.Severity {
	case models.SeverityCritical:
		if mitigated {
			return 5
		}
		return 20
	case models.SeverityHigh:
		if mitigated {
			return 2
		}
		return 10
	case models.SeverityMedium:
		if mitigated {
			return 1
		}
		return 5
	case models.SeverityLow:
		if mitigated {
			return 0.5
		}
		return 2
	}
	return 0
}
