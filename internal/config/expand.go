package config

import (
	"os"
	"regexp"
)

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandPlaceholders substitutes ${VAR} occurrences with the environment
// value of VAR. A variable that is not set leaves the literal placeholder
// unchanged, never an error, so callers decide how to treat it.
func ExpandPlaceholders(s string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})
}

// expandValue applies placeholder expansion to string values, including
// strings nested inside objects and lists. Non-string values pass through.
func expandValue(v any) any {
	switch tv := v.(type) {
	case string:
		return ExpandPlaceholders(tv)
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = expandValue(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = expandValue(e)
		}
		return out
	default:
		return v
	}
}
