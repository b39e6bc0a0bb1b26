package oidc

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when the requested entry does not exist.
var ErrNotFound = errors.New("not found")

// ClientStore resolves registered clients. Implementations must return
// ErrNotFound for unknown client IDs and reserve other errors for
// infrastructure faults.
type ClientStore interface {
	FindClientByID(ctx context.Context, clientID string) (*Client, error)
}

// AuthorizationCodeStore persists authorization codes between the authorize
// and token endpoints.
//
// Consume is the redemption guard: it must be a single atomic conditional
// update so that of N concurrent consume attempts for the same code exactly
// one returns true. The consumed entry stays behind as a tombstone until
// expiry or an explicit Remove — a replay of a redeemed code must read back
// with IsConsumed set, not vanish into ErrNotFound, so the revocation
// cascade can fire.
type AuthorizationCodeStore interface {
	// Store persists a freshly minted code.
	Store(ctx context.Context, code *AuthorizationCode) error

	// Get returns the code, consumed or not. ErrNotFound when absent.
	Get(ctx context.Context, code string) (*AuthorizationCode, error)

	// Consume atomically transitions the code to consumed and reports
	// whether this call performed the transition.
	Consume(ctx context.Context, code string) (bool, error)

	// Remove deletes the code unconditionally. Removing an absent code is
	// not an error.
	Remove(ctx context.Context, code string) error
}

// GrantFilter selects persisted grants for bulk removal. Empty fields match
// everything.
type GrantFilter struct {
	SubjectID string
	ClientID  string
	SessionID string
}

// PersistedGrant is a durable grant artifact (refresh token, reference token,
// consent) subject to the replay revocation cascade.
type PersistedGrant struct {
	Key       string
	Type      string
	SubjectID string
	ClientID  string
	SessionID string
	Data      []byte
}

// Persisted grant types.
const (
	GrantTypeRefreshToken = "refresh_token"
	GrantTypeUserConsent  = "user_consent"
)

// PersistedGrantStore holds durable grants issued off the back of an
// authorization code.
type PersistedGrantStore interface {
	Store(ctx context.Context, grant *PersistedGrant) error
	Get(ctx context.Context, key string) (*PersistedGrant, error)
	// Remove deletes one grant by key. Removing an absent grant is not an
	// error.
	Remove(ctx context.Context, key string) error
	// RemoveAll deletes every grant matching the filter. Best effort bulk
	// delete; it reports only infrastructure faults.
	RemoveAll(ctx context.Context, filter GrantFilter) error
}

// IsActiveRequest identifies the subject whose liveness is being checked and
// the caller asking.
type IsActiveRequest struct {
	SubjectID string
	ClientID  string
	Caller    string
}

// ProfileDataRequest asks for the claims to issue for a subject given the
// granted scopes.
type ProfileDataRequest struct {
	SubjectID string
	ClientID  string
	Scopes    []string
	Caller    string
}

// ProfileService is the claims/liveness collaborator. Both calls are pure
// request/response; nothing is mutated through the arguments.
type ProfileService interface {
	IsActive(ctx context.Context, req IsActiveRequest) (bool, error)
	ProfileData(ctx context.Context, req ProfileDataRequest) ([]Claim, error)
}
