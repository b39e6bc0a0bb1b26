package config

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/signet/internal/oidc"
	"github.com/dropDatabas3/signet/internal/profile"
	"github.com/dropDatabas3/signet/internal/security/password"
)

// BuildClients converts the static client registrations into domain
// clients. Plaintext secrets are bcrypt-hashed here so nothing downstream
// ever sees them.
func (c *Config) BuildClients() ([]oidc.Client, error) {
	out := make([]oidc.Client, 0, len(c.Clients))
	for _, sc := range c.Clients {
		if sc.ClientID == "" {
			return nil, fmt.Errorf("client with empty client_id in config")
		}
		cl := oidc.Client{
			ClientID:                   sc.ClientID,
			Enabled:                    true,
			AllowedGrantTypes:          sc.GrantTypes,
			AllowedScopes:              sc.Scopes,
			RedirectURIs:               sc.RedirectURIs,
			PostLogoutRedirectURIs:     sc.PostLogoutRedirectURIs,
			RequirePKCE:                true,
			AllowPlainTextPKCE:         sc.AllowPlainTextPKCE,
			RequireRequestObject:       sc.RequireRequestObject,
			RequirePushedAuthorization: sc.RequirePushedAuthorization,
			RequireClientSecret:        true,
			AllowOfflineAccess:         sc.AllowOfflineAccess,
		}
		if sc.Enabled != nil {
			cl.Enabled = *sc.Enabled
		}
		if sc.RequirePKCE != nil {
			cl.RequirePKCE = *sc.RequirePKCE
		}
		if sc.RequireClientSecret != nil {
			cl.RequireClientSecret = *sc.RequireClientSecret
		}
		if len(cl.AllowedGrantTypes) == 0 {
			cl.AllowedGrantTypes = []string{oidc.GrantAuthorizationCode}
		}
		if sc.CodeLifetimeSeconds > 0 {
			cl.AuthorizationCodeLifetime = time.Duration(sc.CodeLifetimeSeconds) * time.Second
		}
		if sc.AccessLifetimeSeconds > 0 {
			cl.AccessTokenLifetime = time.Duration(sc.AccessLifetimeSeconds) * time.Second
		}
		switch {
		case sc.SecretHash != "":
			cl.SecretHash = sc.SecretHash
		case sc.Secret != "":
			h, err := bcrypt.GenerateFromPassword([]byte(sc.Secret), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash secret for client %s: %w", sc.ClientID, err)
			}
			cl.SecretHash = string(h)
		case cl.RequireClientSecret:
			return nil, fmt.Errorf("client %s requires a secret but none is configured", sc.ClientID)
		}
		out = append(out, cl)
	}
	return out, nil
}

// BuildUsers converts the static user registrations into profile users,
// bcrypt-hashing plaintext passwords.
func (c *Config) BuildUsers() ([]profile.User, error) {
	out := make([]profile.User, 0, len(c.Users))
	for _, su := range c.Users {
		if su.SubjectID == "" {
			return nil, fmt.Errorf("user with empty subject_id in config")
		}
		u := profile.User{
			SubjectID: su.SubjectID,
			Username:  su.Username,
			Active:    !su.Disabled,
			Claims:    su.Claims,
		}
		switch {
		case su.PasswordHash != "":
			u.PasswordHash = su.PasswordHash
		case su.Password != "":
			if ok, reasons := password.DefaultPolicy.Validate(su.Password); !ok {
				return nil, fmt.Errorf("password for user %s rejected: %s", su.SubjectID, password.Describe(reasons))
			}
			h, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash password for user %s: %w", su.SubjectID, err)
			}
			u.PasswordHash = string(h)
		}
		out = append(out, u)
	}
	return out, nil
}

// BuildCatalog converts the resource definitions into the domain catalog.
// The openid and profile identity resources are always present.
func (c *Config) BuildCatalog() *oidc.ResourceCatalog {
	cat := &oidc.ResourceCatalog{
		IdentityResources: []oidc.IdentityResource{
			{Name: "openid", ClaimTypes: []string{"sub"}},
			{Name: "profile", ClaimTypes: []string{"name", "preferred_username"}},
			{Name: "email", ClaimTypes: []string{"email", "email_verified"}},
		},
	}
	have := map[string]bool{"openid": true, "profile": true, "email": true}
	for _, ir := range c.Resources.Identity {
		if have[ir.Name] {
			continue
		}
		cat.IdentityResources = append(cat.IdentityResources, oidc.IdentityResource{Name: ir.Name, ClaimTypes: ir.Claims})
	}
	for _, s := range c.Resources.APIScopes {
		cat.APIScopes = append(cat.APIScopes, oidc.APIScope{Name: s.Name, ClaimTypes: s.Claims})
	}
	for _, a := range c.Resources.APIs {
		cat.APIResources = append(cat.APIResources, oidc.APIResource{Name: a.Name, Scopes: a.Scopes})
	}
	return cat
}
