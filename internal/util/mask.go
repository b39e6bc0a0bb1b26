// Package util holds small helpers shared across layers.
package util

import "strings"

// Mask redacts an identifier for logging, keeping just enough shape to
// correlate entries. Email addresses keep their first letter and a hint of
// the domain; everything else keeps the first and last character.
func Mask(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, '@'); i > 0 {
		user, dom := s[:i], s[i+1:]
		if len(user) > 1 {
			user = user[:1] + "…"
		}
		parts := strings.Split(dom, ".")
		if len(parts) > 0 && len(parts[0]) > 1 {
			parts[0] = parts[0][:1] + "…"
		}
		return user + "@" + strings.Join(parts, ".")
	}
	if len(s) <= 3 {
		return "***"
	}
	return s[:1] + "…" + s[len(s)-1:]
}
