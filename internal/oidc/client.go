package oidc

import "time"

// Grant type identifiers a client may be allowed to use.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantImplicit          = "implicit"
	GrantHybrid            = "hybrid"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// Client is the read-only projection of a registered client as seen by the
// validators and the grant handler. It is supplied by a ClientStore and never
// mutated here.
type Client struct {
	ClientID string
	Enabled  bool

	// SecretHash is the bcrypt hash of the client secret, empty for public
	// clients.
	SecretHash string

	AllowedGrantTypes      []string
	AllowedScopes          []string
	RedirectURIs           []string
	PostLogoutRedirectURIs []string

	RequirePKCE                bool
	AllowPlainTextPKCE         bool
	RequireRequestObject       bool
	RequirePushedAuthorization bool
	RequireClientSecret        bool
	AllowOfflineAccess         bool

	// Lifetimes; zero means the server default.
	AuthorizationCodeLifetime time.Duration
	AccessTokenLifetime       time.Duration

	AlwaysIncludeUserClaimsInID bool
}

// AllowsGrantType reports whether the client may use the given grant type.
func (c *Client) AllowsGrantType(grantType string) bool {
	for _, g := range c.AllowedGrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}
