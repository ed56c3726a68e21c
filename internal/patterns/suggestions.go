package patterns

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SuggestionRule maps a template substring to a remediation suggestion.
// At most one rule applies per pattern; rules are evaluated in order.
type SuggestionRule struct {
	ID         string `yaml:"id"`
	Contains   string `yaml:"contains"`
	Suggestion string `yaml:"suggestion"`
	Automated  bool   `yaml:"automated"`
}

type suggestionFile struct {
	Rules []SuggestionRule `yaml:"rules"`
}

// LoadSuggestionRules reads a YAML rule pack. An empty path or a missing
// file yields the built-in rules.
func LoadSuggestionRules(path string) ([]SuggestionRule, error) {
	if path == "" {
		return builtinSuggestionRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return builtinSuggestionRules(), nil
		}
		return nil, err
	}
	var file suggestionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Rules) == 0 {
		return builtinSuggestionRules(), nil
	}
	return file.Rules, nil
}

func builtinSuggestionRules() []SuggestionRule {
	return []SuggestionRule{
		{ID: "network-retry", Contains: "network", Suggestion: "Retry with exponential backoff", Automated: true},
		{ID: "timeout-budget", Contains: "timeout", Suggestion: "Increase the request timeout or reduce payload size", Automated: true},
		{ID: "connection-pool", Contains: "connection", Suggestion: "Check connection pool limits and upstream availability"},
		{ID: "memory-pressure", Contains: "memory", Suggestion: "Reload the session; investigate leaking subscriptions"},
		{ID: "permission-review", Contains: "permission", Suggestion: "Verify the session's role assignments"},
		{ID: "not-found", Contains: "not found", Suggestion: "Confirm the resource identifier is still valid"},
	}
}

func matchSuggestion(rules []SuggestionRule, template string) (SuggestionRule, bool) {
	lowered := strings.ToLower(template)
	for _, rule := range rules {
		if rule.Contains == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(rule.Contains)) {
			return rule, true
		}
	}
	return SuggestionRule{}, false
}
