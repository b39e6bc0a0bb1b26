package oidc

import "time"

// AuthorizationCode is the persisted one-time-use credential minted by the
// authorize flow and redeemed at the token endpoint.
//
// A code is redeemable at most once: the consumed transition must be observed
// atomically by exactly one concurrent redemption attempt (see
// AuthorizationCodeStore.Consume).
type AuthorizationCode struct {
	// Code is the opaque value handed to the client; stores key entries by
	// its SHA-256 so a database dump never yields redeemable codes.
	Code string

	ClientID string

	// SubjectID is empty for codes not bound to a user (client-credentials
	// style grants).
	SubjectID string

	SessionID   string
	RedirectURI string
	Scopes      []string

	// CodeChallenge/CodeChallengeMethod are empty when the original request
	// carried no PKCE.
	CodeChallenge       string
	CodeChallengeMethod string

	Nonce string

	CreatedAt time.Time
	ExpiresAt time.Time

	IsConsumed bool
	ConsumedAt *time.Time

	// Claims are custom claims captured at issuance and copied into the
	// grant result verbatim.
	Claims map[string]string

	// Properties is an opaque bag for issuing-flow bookkeeping.
	Properties map[string]string
}

// Expired reports whether the code is past its expiration at the given time.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
