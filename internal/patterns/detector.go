package patterns

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sentinelstack/sentinel-engine/internal/models"
)

const (
	// maxExamples bounds the per-pattern example ring.
	maxExamples = 10
	// defaultAttentionThreshold is the occurrence count at which a pattern
	// is flagged once as requiring attention.
	defaultAttentionThreshold = 10
)

var (
	urlToken  = regexp.MustCompile(`https?://[^\s"']+`)
	uuidToken = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	hexToken  = regexp.MustCompile(`\b[0-9a-fA-F]{8,}\b`)
	numToken  = regexp.MustCompile(`\d+`)
)

// Normalize derives the template for a message: URLs, UUIDs, long hex
// identifiers, and numbers are replaced with placeholders. The derivation is
// pure, so equal messages always yield equal templates.
func Normalize(message string) string {
	template := urlToken.ReplaceAllString(message, "<url>")
	template = uuidToken.ReplaceAllString(template, "<uuid>")
	template = hexToken.ReplaceAllString(template, "<id>")
	template = numToken.ReplaceAllString(template, "<n>")
	return strings.TrimSpace(template)
}

func templateFingerprint(template string) string {
	h := fnv.New64a()
	h.Write([]byte(template))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Detector tracks occurrence counts per normalized message template,
// independently of the per-instance dedup in the event store.
type Detector struct {
	mu        sync.Mutex
	patterns  map[string]*models.ErrorPattern
	flagged   map[string]bool
	threshold int
	rules     []SuggestionRule
	logger    *slog.Logger
	now       func() time.Time
}

// NewDetector constructs a Detector. threshold <= 0 falls back to the
// default; rules may be nil, in which case only built-in suggestions apply.
func NewDetector(logger *slog.Logger, threshold int, rules []SuggestionRule) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = defaultAttentionThreshold
	}
	if rules == nil {
		rules = builtinSuggestionRules()
	}
	return &Detector{
		patterns:  make(map[string]*models.ErrorPattern),
		flagged:   make(map[string]bool),
		threshold: threshold,
		rules:     rules,
		logger:    logger,
		now:       time.Now,
	}
}

// Observe folds one record into its pattern. When the pattern's count
// crosses the attention threshold it is flagged exactly once and matched
// against the suggestion rules.
func (d *Detector) Observe(record *models.ErrorRecord) {
	if record == nil {
		return
	}
	template := Normalize(record.Message)
	fingerprint := templateFingerprint(template)
	ts := d.now()

	d.mu.Lock()
	pattern, ok := d.patterns[fingerprint]
	if !ok {
		pattern = &models.ErrorPattern{
			Fingerprint: fingerprint,
			Template:    template,
			FirstSeen:   ts,
		}
		d.patterns[fingerprint] = pattern
	}
	pattern.Count++
	pattern.LastSeen = ts
	pattern.Examples = append(pattern.Examples, record)
	if len(pattern.Examples) > maxExamples {
		pattern.Examples = pattern.Examples[len(pattern.Examples)-maxExamples:]
	}

	needsAttention := pattern.Count >= d.threshold && !d.flagged[fingerprint]
	if needsAttention {
		d.flagged[fingerprint] = true
		if rule, ok := matchSuggestion(d.rules, template); ok {
			pattern.Suggestion = rule.Suggestion
			pattern.Automated = rule.Automated
		}
	}
	count := pattern.Count
	suggestion := pattern.Suggestion
	d.mu.Unlock()

	if needsAttention {
		d.logger.Warn("recurring error pattern requires attention",
			slog.String("template", template),
			slog.Int("count", count),
			slog.String("suggestion", suggestion))
	}
}

// Get returns a copy of the pattern for a template, or nil.
func (d *Detector) Get(template string) *models.ErrorPattern {
	d.mu.Lock()
	defer d.mu.Unlock()
	pattern, ok := d.patterns[templateFingerprint(template)]
	if !ok {
		return nil
	}
	clone := *pattern
	clone.Examples = append([]*models.ErrorRecord(nil), pattern.Examples...)
	return &clone
}

// Snapshot returns copies of all patterns, for read-only reporting.
func (d *Detector) Snapshot() []*models.ErrorPattern {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.ErrorPattern, 0, len(d.patterns))
	for _, pattern := range d.patterns {
		clone := *pattern
		clone.Examples = append([]*models.ErrorRecord(nil), pattern.Examples...)
		out = append(out, &clone)
	}
	return out
}

// SetNow overrides the clock, for tests.
func (d *Detector) SetNow(now func() time.Time) {
	d.now = now
}
