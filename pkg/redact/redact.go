// Package redact masks contact details that may appear in translated text
// before it is logged, written to a timeline or printed as a payload dump.
package redact

import (
	"regexp"
	"sync/atomic"
)

type rule struct {
	re   *regexp.Regexp
	mask string
}

// Emails go first so the digits of an address are not taken for a phone number.
var rules = []rule{
	{regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`), "[REDACTED_PHONE]"},
}

var on atomic.Bool

// SetEnabled switches masking for the whole process.
func SetEnabled(v bool) { on.Store(v) }

// Text masks emails and phone numbers in s. It is the identity while disabled.
func Text(s string) string {
	if !on.Load() || s == "" {
		return s
	}
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.mask)
	}
	return s
}

// Value applies Text to every string inside a decoded JSON value and returns
// the result as a fresh copy; v itself is left untouched.
func Value(v any) any {
	if !on.Load() {
		return v
	}
	return walk(v)
}

func walk(v any) any {
	switch t := v.(type) {
	case string:
		return Text(t)
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = walk(t[i])
		}
		return cp
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k := range t {
			cp[k] = walk(t[k])
		}
		return cp
	}
	return v
}
