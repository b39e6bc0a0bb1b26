package oidc

import (
	"net/url"
	"strings"
)

// RedirectURIValidator matches a requested redirect URI against a client's
// registered set. Stateless.
//
// Matching rules, in order:
//   - exact, case-sensitive string match
//   - RFC 8252 §7.3 loopback: http(s) URI with host 127.0.0.1, [::1] or
//     localhost matches a registered entry with the same scheme and path,
//     ignoring the port (query components are not compared)
//   - native-app custom scheme (anything but http, https, urn): exact match,
//     case-insensitive
type RedirectURIValidator struct{}

// NewRedirectURIValidator returns a RedirectURIValidator.
func NewRedirectURIValidator() *RedirectURIValidator { return &RedirectURIValidator{} }

// Validate checks the requested redirect URI. isImplicitOrHybrid rejects
// fragments, which are reserved for the response itself in those flows.
func (v *RedirectURIValidator) Validate(requested string, allowed []string, isImplicitOrHybrid bool) error {
	if requested == "" {
		return NewProtocolError(ErrorInvalidRequest, "redirect_uri is missing")
	}

	u, err := url.Parse(requested)
	if err != nil || !u.IsAbs() {
		return NewProtocolError(ErrorInvalidRequest, "redirect_uri must be an absolute URI")
	}
	if isImplicitOrHybrid && u.Fragment != "" {
		return NewProtocolError(ErrorInvalidRequest, "redirect_uri must not contain a fragment")
	}

	for _, reg := range allowed {
		if reg == requested {
			return nil
		}
	}

	if isLoopbackURI(u) {
		for _, reg := range allowed {
			if matchesLoopback(u, reg) {
				return nil
			}
		}
	} else if isCustomScheme(u.Scheme) {
		for _, reg := range allowed {
			if strings.EqualFold(reg, requested) {
				return nil
			}
		}
	}

	return NewProtocolError(ErrorInvalidRequest, "redirect_uri is not registered for this client")
}

// ValidatePostLogout checks an optional post_logout_redirect_uri. Absence is
// fine; a present value must exactly match the allow list.
func (v *RedirectURIValidator) ValidatePostLogout(requested string, allowed []string) error {
	if requested == "" {
		return nil
	}
	for _, reg := range allowed {
		if reg == requested {
			return nil
		}
	}
	return NewProtocolError(ErrorInvalidRequest, "post_logout_redirect_uri is not registered for this client")
}

// isLoopbackURI reports whether u is an http(s) URI pointing at a loopback
// literal.
func isLoopbackURI(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	switch u.Hostname() {
	case "127.0.0.1", "::1", "localhost":
		return true
	}
	return false
}

// matchesLoopback compares a loopback request URI against a registered entry:
// same scheme, loopback host on both sides, same path, any port.
func matchesLoopback(requested *url.URL, registered string) bool {
	reg, err := url.Parse(registered)
	if err != nil {
		return false
	}
	if !isLoopbackURI(reg) {
		return false
	}
	return reg.Scheme == requested.Scheme && reg.Path == requested.Path
}

// isCustomScheme reports whether the scheme is a native-app claimed scheme
// (anything but http, https and urn).
func isCustomScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "http", "https", "urn":
		return false
	}
	return scheme != ""
}
