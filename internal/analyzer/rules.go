package analyzer

import (
	"regexp"
	"strings"
)

// Rule is one entry of a RuleSet.
type Rule[S, T any] struct {
	// Name identifies the rule in tests and debug output.
	Name   string
	Match  func(S) bool
	Result T
}

// RuleSet is an ordered list of rules evaluated first-match-wins.
type RuleSet[S, T any] struct {
	rules    []Rule[S, T]
	fallback T
}

// NewRuleSet creates a rule set that returns fallback when no rule matches.
func NewRuleSet[S, T any](fallback T, rules ...Rule[S, T]) *RuleSet[S, T] {
	return &RuleSet[S, T]{rules: rules, fallback: fallback}
}

// Evaluate returns the result and name of the first matching rule, or the
// fallback and "" when none matches.
func (r *RuleSet[S, T]) Evaluate(s S) (T, string) {
	for _, rule := range r.rules {
		if rule.Match(s) {
			return rule.Result, rule.Name
		}
	}
	return r.fallback, ""
}

// Names returns the rule names in evaluation order.
func (r *RuleSet[S, T]) Names() []string {
	names := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		names = append(names, rule.Name)
	}
	return names
}

// containsAny reports whether s contains any of the substrings.
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// words compiles a case-insensitive whole-word alternation.
func words(terms ...string) *regexp.Regexp {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
