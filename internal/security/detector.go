package security

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sentinelstack/sentinel-engine/internal/models"
)

// RequestDescriptor is what the host tells us about one inbound request.
type RequestDescriptor struct {
	Origin        string
	Method        string
	Target        string
	Payload       string
	Authenticated bool
	SessionID     string
	Timestamp     time.Time
}

var sqlSignatures = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\s+select\b`),
	regexp.MustCompile(`(?i)\bselect\b.+\bfrom\b.+(--|#|/\*)`),
	regexp.MustCompile(`(?i)\b(or|and)\s+\d+\s*=\s*\d+`),
	regexp.MustCompile(`(?i)\bdrop\s+table\b`),
	regexp.MustCompile(`(?i)\binsert\s+into\b.+\bvalues\b`),
	regexp.MustCompile(`(?i);\s*(delete|update)\s`),
	regexp.MustCompile(`'\s*--`),
}

var xssSignatures = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus)\s*=`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)<\s*iframe`),
}

var sensitivePrefixes = []string{
	"/admin", "/api/admin", "/internal", "/config", "/secrets", "/api/users/export",
}

// DetectorConfig holds the rate-check tuning.
type DetectorConfig struct {
	RateWindow    time.Duration
	RateThreshold int
}

// Detector runs per-request security checks. Each positive check raises its
// own threat through the reporter; several checks may fire for one request.
type Detector struct {
	reporter  Reporter
	rates     *RateWindow
	threshold int
	logger    *slog.Logger
	now       func() time.Time
}

// NewDetector constructs a Detector reporting into reporter.
func NewDetector(logger *slog.Logger, reporter Reporter, cfg DetectorConfig) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.RateThreshold <= 0 {
		cfg.RateThreshold = 100
	}
	return &Detector{
		reporter:  reporter,
		rates:     NewRateWindow(cfg.RateWindow),
		threshold: cfg.RateThreshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Inspect evaluates all rule checks against the request and returns the ids
// of any threats raised. A clean request returns nil.
func (d *Detector) Inspect(req RequestDescriptor) []string {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = d.now()
	}
	haystack := req.Target + " " + req.Payload

	var raised []string
	if matchesAny(sqlSignatures, haystack) {
		raised = append(raised, d.reporter.Report(NewThreat{
			Type:        models.ThreatInjection,
			Severity:    models.SeverityHigh,
			Origin:      req.Origin,
			Target:      req.Target,
			Description: "SQL injection signature in request",
			Metadata:    map[string]any{"method": req.Method},
		}))
	}
	if matchesAny(xssSignatures, haystack) {
		raised = append(raised, d.reporter.Report(NewThreat{
			Type:        models.ThreatXSS,
			Severity:    models.SeverityHigh,
			Origin:      req.Origin,
			Target:      req.Target,
			Description: "script injection signature in request",
			Metadata:    map[string]any{"method": req.Method},
		}))
	}
	if isSensitiveTarget(req.Target) && !req.Authenticated {
		raised = append(raised, d.reporter.Report(NewThreat{
			Type:        models.ThreatUnauthorizedAccess,
			Severity:    models.SeverityHigh,
			Origin:      req.Origin,
			Target:      req.Target,
			Description: "sensitive endpoint accessed without valid authorization",
		}))
	}
	// Strictly more than threshold triggers; hitting it exactly does not.
	if count := d.rates.Observe(req.Origin, ts); count > d.threshold {
		raised = append(raised, d.reporter.Report(NewThreat{
			Type:        models.ThreatBruteForce,
			Severity:    models.SeverityHigh,
			Origin:      req.Origin,
			Target:      req.Target,
			Description: fmt.Sprintf("request rate exceeded: %d in window", count),
			Metadata:    map[string]any{"count": count},
		}))
	}

	return raised
}

// Sweep prunes stale rate-tracker state. Called from the periodic security sweep.
func (d *Detector) Sweep() {
	d.rates.Sweep(d.now())
}

// SetNow overrides the clock, for tests.
func (d *Detector) SetNow(now func() time.Time) {
	d.now = now
}

func matchesAny(signatures []*regexp.Regexp, input string) bool {
	for _, signature := range signatures {
		if signature.MatchString(input) {
			return true
		}
	}
	return false
}

func isSensitiveTarget(target string) bool {
	lowered := strings.ToLower(target)
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}
