// Package handlers implements the protocol endpoints: authorize, token,
// pushed authorization, discovery, JWKS, end-session, session login and
// health.
package handlers

import (
	"context"
	"time"

	"github.com/dropDatabas3/signet/internal/http/session"
	"github.com/dropDatabas3/signet/internal/jwt"
	"github.com/dropDatabas3/signet/internal/oidc"
	"github.com/dropDatabas3/signet/internal/rate"
)

// Authenticator verifies end-user credentials for the session login
// endpoint.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// Pinger is implemented by backends the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries every collaborator the handlers need. Wired once in the
// server.
type Deps struct {
	Validator *oidc.AuthorizeRequestValidator
	Grant     *oidc.AuthorizationCodeGrantHandler

	Clients oidc.ClientStore
	Codes   oidc.AuthorizationCodeStore
	Grants  oidc.PersistedGrantStore
	Profile oidc.ProfileService

	Issuer   *jwt.Issuer
	Sessions *session.Manager
	Auth     Authenticator
	PAR      *PARStore

	// LoginURL receives unauthenticated authorize requests.
	LoginURL string

	// Limit throttles the credential endpoints; nil disables throttling.
	Limit rate.Limiter

	CodeTTL    time.Duration
	RefreshTTL time.Duration

	// Ready is checked by /readyz; nil entries are skipped.
	Ready []Pinger
}
