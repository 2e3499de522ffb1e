// Package slug derives URL-safe post identifiers from titles.
package slug

import (
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]*$`)

// Derive trims and lowercases input, then replaces every run of characters
// outside [a-z0-9] and every run of whitespace with a single '-'. Adjacent
// runs collapse into one '-', so Derive(Derive(s)) == Derive(s).
func Derive(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	dash := false
	for _, r := range s {
		if isAlnum(r) {
			b.WriteRune(r)
			dash = false
			continue
		}

		// Whitespace and any other character both become a separator.
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}

	return b.String()
}

// DeriveAny is Derive for untyped form values; anything but a string yields "".
func DeriveAny(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Derive(s)
}

// Valid reports whether s only contains lowercase letters, digits and '-'.
func Valid(s string) bool {
	return slugPattern.MatchString(s)
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
