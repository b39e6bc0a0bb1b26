package oidc

import "fmt"

// OAuth2/OIDC error kinds used verbatim as wire values (RFC 6749 §4.1.2.1,
// §5.2). Callers branch on the kind only; descriptions are diagnostics.
const (
	ErrorInvalidRequest          = "invalid_request"
	ErrorInvalidClient           = "invalid_client"
	ErrorInvalidGrant            = "invalid_grant"
	ErrorUnauthorizedClient      = "unauthorized_client"
	ErrorUnsupportedResponseType = "unsupported_response_type"
	ErrorInvalidScope            = "invalid_scope"
	ErrorUnsupportedGrantType    = "unsupported_grant_type"
	ErrorLoginRequired           = "login_required"
	ErrorServerError             = "server_error"
)

// ProtocolError is an expected OAuth2/OIDC validation failure. It is returned
// as a value, never panicked; infrastructure faults travel as ordinary wrapped
// errors instead.
type ProtocolError struct {
	Kind        string
	Description string

	// RedirectCapable marks errors detected after the redirect URI was
	// confirmed against the client's registered set. Only those may be
	// delivered back to the client via redirect; everything earlier must be
	// shown to the end user directly.
	RedirectCapable bool

	// RedirectURI and State are populated alongside RedirectCapable so the
	// HTTP layer can build the error redirect without re-parsing the request.
	RedirectURI  string
	State        string
	ResponseMode string
}

func (e *ProtocolError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Description)
	}
	return e.Kind
}

// NewProtocolError builds a non-redirectable protocol error.
func NewProtocolError(kind, description string) *ProtocolError {
	return &ProtocolError{Kind: kind, Description: description}
}

// WithDescription returns a copy with the description replaced. The receiver
// is not mutated so predefined errors stay safe to share.
func (e *ProtocolError) WithDescription(format string, args ...any) *ProtocolError {
	cp := *e
	cp.Description = fmt.Sprintf(format, args...)
	return &cp
}

// ForRedirect returns a copy marked redirect-capable, carrying the confirmed
// redirect URI plus the request's state and response_mode.
func (e *ProtocolError) ForRedirect(redirectURI, state, responseMode string) *ProtocolError {
	cp := *e
	cp.RedirectCapable = true
	cp.RedirectURI = redirectURI
	cp.State = state
	cp.ResponseMode = responseMode
	return &cp
}
