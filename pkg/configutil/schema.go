package configutil

import (
	"sort"
	"strings"
)

// Schema lists the settings keys a device provider accepts.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// Keys returns every declared key, required first.
func (s Schema) Keys() []string {
	out := make([]string, 0, len(s.Required)+len(s.Optional))
	out = append(out, s.Required...)
	return append(out, s.Optional...)
}

// ValidationError reports missing and unrecognised settings keys.
type ValidationError struct {
	Missing []string
	Unknown []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

// ValidateSettings checks input against schema. Key matching ignores case,
// underscores and hyphens, so sample_rate, sampleRate and sample-rate agree.
// A required key holding nil or a blank string counts as missing.
func ValidateSettings(input map[string]any, schema Schema) error {
	allowed := make(map[string]bool, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Optional {
		allowed[normalizeKey(k)] = false
	}
	for _, k := range schema.Required {
		allowed[normalizeKey(k)] = true
	}

	present := make(map[string]bool, len(input))
	verr := &ValidationError{}
	for k, v := range input {
		nk := normalizeKey(k)
		required, known := allowed[nk]
		if !known && !schema.AllowUnknown {
			verr.Unknown = append(verr.Unknown, k)
		}
		present[nk] = !required || !blank(v)
	}
	for _, k := range schema.Required {
		if !present[normalizeKey(k)] {
			verr.Missing = append(verr.Missing, k)
		}
	}
	if len(verr.Missing) == 0 && len(verr.Unknown) == 0 {
		return nil
	}
	sort.Strings(verr.Missing)
	sort.Strings(verr.Unknown)
	return verr
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
