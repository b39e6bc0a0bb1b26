// Package httpx holds small response helpers shared by the handlers.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/signet/internal/oidc"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NoStore marks the response non-cacheable. Token responses must carry these
// headers (RFC 6749 §5.1).
func NoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// OAuthError is the standard OAuth2 error body.
type OAuthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteOAuthError writes a protocol error as the standard JSON error body.
// invalid_client gets 401 with a WWW-Authenticate challenge, everything else
// 400, except server_error which is 500.
func WriteOAuthError(w http.ResponseWriter, pe *oidc.ProtocolError) {
	NoStore(w)
	status := http.StatusBadRequest
	switch pe.Kind {
	case oidc.ErrorInvalidClient:
		status = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
	case oidc.ErrorServerError:
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, OAuthError{Error: pe.Kind, Description: pe.Description})
}

// WriteServerError writes the generic server_error body without leaking the
// underlying fault.
func WriteServerError(w http.ResponseWriter) {
	WriteOAuthError(w, oidc.NewProtocolError(oidc.ErrorServerError, ""))
}
