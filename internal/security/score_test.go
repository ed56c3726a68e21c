package security

import (
	"testing"

	"github.com/sentinelstack/sentinel-engine/internal/models"
)

func threat(severity models.Severity, mitigated bool) *models.SecurityThreat {
	t := &models.SecurityThreat{Severity: severity, Status: models.ThreatDetected}
	if mitigated {
		t.AutoMitigated = true
		t.Status = models.ThreatMitigated
	}
	return t
}

func TestScoreDeductions(t *testing.T) {
	cases := []struct {
		name    string
		threats []*models.SecurityThreat
		want    float64
	}{
		{"no threats", nil, 100},
		{"critical", []*models.SecurityThreat{threat(models.SeverityCritical, false)}, 80},
		{"critical mitigated", []*models.SecurityThreat{threat(models.SeverityCritical, true)}, 95},
		{"high", []*models.SecurityThreat{threat(models.SeverityHigh, false)}, 90},
		{"high mitigated", []*models.SecurityThreat{threat(models.SeverityHigh, true)}, 98},
		{"medium", []*models.SecurityThreat{threat(models.SeverityMedium, false)}, 95},
		{"medium mitigated", []*models.SecurityThreat{threat(models.SeverityMedium, true)}, 99},
		{"low", []*models.SecurityThreat{threat(models.SeverityLow, false)}, 98},
		{"low mitigated", []*models.SecurityThreat{threat(models.SeverityLow, true)}, 99.5},
		{
			"mixed",
			[]*models.SecurityThreat{
				threat(models.SeverityCritical, false),
				threat(models.SeverityHigh, true),
				threat(models.SeverityLow, false),
			},
			76,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.threats); got != tc.want {
				t.Fatalf("Score = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScoreClampsAtZero(t *testing.T) {
	threats := make([]*models.SecurityThreat, 10)
	for i := range threats {
		threats[i] = threat(models.SeverityCritical, false)
	}
	if got := Score(threats); got != 0 {
		t.Fatalf("Score = %v, want clamped to 0", got)
	}
}

func TestScoreTreatsResolvedAsMitigated(t *testing.T) {
	resolved := &models.SecurityThreat{Severity: models.SeverityHigh, Status: models.ThreatResolved}
	if got := Score([]*models.SecurityThreat{resolved}); got != 98 {
		t.Fatalf("Score = %v, want 98 for a resolved high threat", got)
	}
}
