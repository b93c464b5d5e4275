package sqlite

import (
	"strings"
	"unicode"
)

// SafeName turns an arbitrary display name into an SQL-safe identifier:
// lower case, runs of characters outside [a-z0-9_] collapsed to a single
// underscore, no leading or trailing underscores, and a leading underscore
// when the result would start with a digit. An empty result becomes "_".
func SafeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "_"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}
