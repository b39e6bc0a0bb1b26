// Package password validates plaintext passwords before they are hashed.
package password

import (
	"strings"
	"unicode"
)

// Policy is a set of composition rules for new passwords.
type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultPolicy applies to passwords configured for the static user registry.
var DefaultPolicy = Policy{MinLength: 8}

// Validate checks s against the policy; reasons names every rule violated.
func (p Policy) Validate(s string) (ok bool, reasons []string) {
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if p.RequireUpper && !hasUpper {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasLower {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasDigit {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasSymbol {
		reasons = append(reasons, "missing_symbol")
	}
	return len(reasons) == 0, reasons
}

// Describe renders the violated rules for an error message.
func Describe(reasons []string) string {
	return strings.Join(reasons, ", ")
}
