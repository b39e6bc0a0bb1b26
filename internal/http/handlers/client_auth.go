package handlers

import (
	"context"
	"net/http"
	"net/url"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/signet/internal/observability/logger"
	"github.com/dropDatabas3/signet/internal/oidc"
)

// authenticateClient resolves and authenticates the caller of a
// client-authenticated endpoint. client_secret_basic takes precedence over
// client_secret_post; public clients pass without a secret.
//
// Failures come back as *ProtocolError invalid_client so the endpoint can
// answer 401 without distinguishing unknown id from wrong secret.
func (d *Deps) authenticateClient(ctx context.Context, r *http.Request) (*oidc.Client, error) {
	clientID, secret, fromBasic := r.BasicAuth()
	if fromBasic {
		// Basic credentials are form-urlencoded before base64 (RFC 6749
		// §2.3.1).
		if id, err := url.QueryUnescape(clientID); err == nil {
			clientID = id
		}
		if s, err := url.QueryUnescape(secret); err == nil {
			secret = s
		}
	} else {
		clientID = r.PostFormValue("client_id")
		secret = r.PostFormValue("client_secret")
	}
	if clientID == "" {
		return nil, oidc.NewProtocolError(oidc.ErrorInvalidClient, "client authentication is missing")
	}

	client, err := d.Clients.FindClientByID(ctx, clientID)
	if err != nil {
		if err == oidc.ErrNotFound {
			logger.From(ctx).Debug("unknown client at token endpoint", logger.ClientID(clientID))
			return nil, oidc.NewProtocolError(oidc.ErrorInvalidClient, "client authentication failed")
		}
		return nil, err
	}
	if !client.Enabled {
		return nil, oidc.NewProtocolError(oidc.ErrorInvalidClient, "client authentication failed")
	}

	if client.RequireClientSecret {
		if secret == "" {
			return nil, oidc.NewProtocolError(oidc.ErrorInvalidClient, "client secret is missing")
		}
		if bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)) != nil {
			logger.From(ctx).Debug("client secret mismatch", logger.ClientID(clientID))
			return nil, oidc.NewProtocolError(oidc.ErrorInvalidClient, "client authentication failed")
		}
	} else if secret != "" && client.SecretHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)) != nil {
			return nil, oidc.NewProtocolError(oidc.ErrorInvalidClient, "client authentication failed")
		}
	}
	return client, nil
}
