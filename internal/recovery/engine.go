package recovery

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sentinelstack/sentinel-engine/internal/metrics"
	"github.com/sentinelstack/sentinel-engine/internal/models"
)

// ActionType names an automated remediation.
type ActionType string

const (
	ActionRetry    ActionType = "retry"
	ActionFallback ActionType = "fallback"
	ActionReload   ActionType = "reload"
	ActionRedirect ActionType = "redirect"
	ActionNotify   ActionType = "notify"
)

// ActionListener receives remediation signals. The engine never blocks on a
// listener; delivery is fire-and-forget to zero or more subscribers.
type ActionListener interface {
	// RetryResource asks the host to re-request the named resource.
	RetryResource(resourceID string)
	// ShowFallback asks the host to degrade the named resource gracefully.
	ShowFallback(resourceID, message string)
	// Reload asks the host to restart the whole session.
	Reload(reason string)
	// Redirect asks the host to send the session to a target location.
	Redirect(target string)
	// Notify surfaces a remediation note to the operator.
	Notify(message string)
}

type policy struct {
	action     ActionType
	maxRetries int
	delay      time.Duration
}

// Engine maps an error's classification to one remediation action and
// executes it with per-(fingerprint, action) retry bounding.
type Engine struct {
	mu        sync.Mutex
	attempts  map[string]int
	listeners []ActionListener
	logger    *slog.Logger
}

// NewEngine constructs a recovery engine with no subscribers.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		attempts: make(map[string]int),
		logger:   logger,
	}
}

// Subscribe registers a listener for remediation signals.
func (e *Engine) Subscribe(listener ActionListener) {
	if listener == nil {
		return
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, listener)
	e.mu.Unlock()
}

// Attempt evaluates the policy table for the record and executes at most one
// action. Exhausted retry budgets and unmatched classifications are normal
// outcomes, not errors.
func (e *Engine) Attempt(record *models.ErrorRecord) bool {
	if record == nil {
		return false
	}
	pol, ok := e.policyFor(record)
	if !ok {
		return false
	}

	key := record.Fingerprint + ":" + string(pol.action)
	e.mu.Lock()
	if e.attempts[key] >= pol.maxRetries {
		e.mu.Unlock()
		e.logger.Debug("recovery budget exhausted",
			slog.String("fingerprint", record.Fingerprint),
			slog.String("action", string(pol.action)))
		return false
	}
	e.attempts[key]++
	e.mu.Unlock()

	metrics.ObserveRecoveryAction(string(pol.action))
	e.execute(pol, record, key)
	return true
}

func (e *Engine) policyFor(record *models.ErrorRecord) (policy, bool) {
	switch record.Classification {
	case models.ClassNetwork:
		return policy{action: ActionRetry, maxRetries: 3, delay: 2 * time.Second}, true
	case models.ClassAPI:
		status := statusCode(record)
		switch {
		case status >= 500:
			return policy{action: ActionRetry, maxRetries: 2, delay: time.Second}, true
		case status == 401:
			return policy{action: ActionRedirect, maxRetries: 1}, true
		}
	case models.ClassRender:
		return policy{action: ActionFallback, maxRetries: 2}, true
	case models.ClassRuntime:
		if mentionsMemory(record.Message) {
			return policy{action: ActionReload, maxRetries: 1}, true
		}
	}
	return policy{}, false
}

func (e *Engine) execute(pol policy, record *models.ErrorRecord, key string) {
	resource := record.Context.Resource

	switch pol.action {
	case ActionRetry:
		if pol.delay <= 0 {
			e.fanOut(func(l ActionListener) { l.RetryResource(resource) })
			return
		}
		time.AfterFunc(pol.delay, func() {
			// The budget may have been consumed again while we waited;
			// firing past the limit would defeat the bound.
			e.mu.Lock()
			withinBudget := e.attempts[key] <= pol.maxRetries
			e.mu.Unlock()
			if !withinBudget {
				return
			}
			e.fanOut(func(l ActionListener) { l.RetryResource(resource) })
		})
	case ActionFallback:
		message := record.Message
		e.fanOut(func(l ActionListener) { l.ShowFallback(resource, message) })
	case ActionReload:
		e.fanOut(func(l ActionListener) { l.Reload(record.Message) })
	case ActionRedirect:
		e.fanOut(func(l ActionListener) { l.Redirect("/login") })
	case ActionNotify:
		e.fanOut(func(l ActionListener) { l.Notify(record.Message) })
	}
}

func (e *Engine) fanOut(deliver func(ActionListener)) {
	e.mu.Lock()
	listeners := append([]ActionListener(nil), e.listeners...)
	e.mu.Unlock()

	for _, listener := range listeners {
		go func(l ActionListener) {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("action listener panicked", slog.Any("panic", r))
				}
			}()
			deliver(l)
		}(listener)
	}
}

// Attempts reports how many times an action ran for a fingerprint.
func (e *Engine) Attempts(fingerprint string, action ActionType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts[fingerprint+":"+string(action)]
}

func statusCode(record *models.ErrorRecord) int {
	if record.Metadata != nil {
		switch v := record.Metadata["status_code"].(type) {
		case int:
			return v
		case float64:
			return int(v)
		}
	}
	return 0
}

func mentionsMemory(message string) bool {
	lowered := strings.ToLower(message)
	return strings.Contains(lowered, "memory") || strings.Contains(lowered, "heap") ||
		strings.Contains(lowered, "out of memory")
}
