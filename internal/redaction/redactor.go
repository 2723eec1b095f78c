// Package redaction implements the PII Filter: a pure, deterministic,
// pattern-based text redactor at four strictness levels.
package redaction

import (
	"regexp"
	"strings"
	"sync"
)

// Level is one of the filter's four strictness tiers, in increasing order.
type Level int

const (
	Off Level = iota
	Basic
	Standard
	Strict
)

// Pattern is a single named redaction rule.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

var basicPatterns = []Pattern{
	{Name: "email", Regex: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), Replacement: "[EMAIL]"},
	{Name: "windows_user_path", Regex: regexp.MustCompile(`\\Users\\[^\\]+`), Replacement: `\Users\[USER]`},
	{Name: "unix_user_path", Regex: regexp.MustCompile(`/Users/[^/]+`), Replacement: "/Users/[USER]"},
}

var standardPatterns = []Pattern{
	{Name: "phone_us", Regex: regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), Replacement: "[PHONE]"},
	{Name: "credit_card", Regex: regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`), Replacement: "[CARD]"},
}

var strictPatterns = []Pattern{
	{Name: "long_digit_sequence", Regex: regexp.MustCompile(`\b\d{6,}\b`), Replacement: "[NUMBER]"},
	{Name: "url_path", Regex: regexp.MustCompile(`(https?://[a-zA-Z0-9.\-]+)(/[^\s]*)`), Replacement: "$1[PATH]"},
}

// patternsFor returns every pattern active at the given level, as a
// superset ladder: Strict ⊇ Standard ⊇ Basic ⊇ Off = ∅.
func patternsFor(level Level) []Pattern {
	var out []Pattern
	if level >= Basic {
		out = append(out, basicPatterns...)
	}
	if level >= Standard {
		out = append(out, standardPatterns...)
	}
	if level >= Strict {
		out = append(out, strictPatterns...)
	}
	return out
}

// sensitiveAppSubstrings is a built-in list of substrings matched against
// app names to decide should_exclude.
var sensitiveAppSubstrings = []string{
	"1password", "lastpass", "keepass", "bitwarden", "dashlane",
	"bank", "paypal", "venmo",
	"keychain", "credential manager", "security",
}

// Filter is a pure, deterministic, pattern-based redactor.
type Filter struct {
	mu    sync.RWMutex
	extra []Pattern
}

// New returns a PII Filter with only the built-in patterns.
func New() *Filter { return &Filter{} }

// AddPattern registers an additional pattern applied at every level above Off.
func (f *Filter) AddPattern(p Pattern) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extra = append(f.extra, p)
}

// Redact applies every pattern active at level to text, returning the
// sanitized result. Off is the identity function.
func (f *Filter) Redact(text string, level Level) string {
	if level == Off {
		return text
	}
	f.mu.RLock()
	extra := append([]Pattern(nil), f.extra...)
	f.mu.RUnlock()

	out := text
	for _, p := range patternsFor(level) {
		out = p.Regex.ReplaceAllString(out, p.Replacement)
	}
	for _, p := range extra {
		out = p.Regex.ReplaceAllString(out, p.Replacement)
	}
	return out
}

// ShouldExclude reports whether appName matches a built-in sensitive-app
// substring (password managers, banking, security tooling).
func ShouldExclude(appName string) bool {
	lower := strings.ToLower(appName)
	for _, s := range sensitiveAppSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// SanitizeTitle is a convenience wrapper that sanitizes a window title at
// Standard strictness.
func (f *Filter) SanitizeTitle(title string) string {
	return f.Redact(title, Standard)
}
