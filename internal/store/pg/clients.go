package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/signet/internal/oidc"
)

// ClientStore reads registered clients from the clients table.
type ClientStore struct{ store *Store }

// NewClientStore returns a client store over the shared pg store.
func NewClientStore(s *Store) *ClientStore { return &ClientStore{store: s} }

func (s *ClientStore) FindClientByID(ctx context.Context, clientID string) (*oidc.Client, error) {
	const q = `
		SELECT client_id, enabled, secret_hash,
		       allowed_grant_types, allowed_scopes,
		       redirect_uris, post_logout_redirect_uris,
		       require_pkce, allow_plain_text_pkce,
		       require_request_object, require_pushed_authorization,
		       require_client_secret, allow_offline_access,
		       authorization_code_lifetime, access_token_lifetime
		FROM clients
		WHERE client_id = $1`
	var (
		c                    oidc.Client
		secret               *string
		codeSecs, accessSecs int
	)
	err := s.store.pool.QueryRow(ctx, q, clientID).Scan(
		&c.ClientID, &c.Enabled, &secret,
		&c.AllowedGrantTypes, &c.AllowedScopes,
		&c.RedirectURIs, &c.PostLogoutRedirectURIs,
		&c.RequirePKCE, &c.AllowPlainTextPKCE,
		&c.RequireRequestObject, &c.RequirePushedAuthorization,
		&c.RequireClientSecret, &c.AllowOfflineAccess,
		&codeSecs, &accessSecs,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oidc.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select client: %w", err)
	}
	c.SecretHash = deref(secret)
	c.AuthorizationCodeLifetime = time.Duration(codeSecs) * time.Second
	c.AccessTokenLifetime = time.Duration(accessSecs) * time.Second
	return &c, nil
}
