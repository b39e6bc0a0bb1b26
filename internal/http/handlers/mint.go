package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/signet/internal/oidc"
	tokens "github.com/dropDatabas3/signet/internal/security/token"
)

// TokenResponse is the token endpoint's success body (RFC 6749 §5.1).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// refreshGrant is the payload serialized into a persisted refresh-token
// grant.
type refreshGrant struct {
	SubjectID string    `json:"sub"`
	ClientID  string    `json:"client_id"`
	SessionID string    `json:"sid,omitempty"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// mintTokens turns a grant result into the wire response: access token
// always, ID token when openid was granted, refresh token when
// offline_access was granted and the client allows it.
func (d *Deps) mintTokens(ctx context.Context, client *oidc.Client, res *oidc.GrantResult) (*TokenResponse, error) {
	scopes := make(map[string]bool, len(res.Scopes))
	for _, s := range res.Scopes {
		scopes[s] = true
	}

	accessExtra := map[string]any{
		"client_id": res.ClientID,
		"scope":     strings.Join(res.Scopes, " "),
		"jti":       uuid.NewString(),
	}
	if res.SessionID != "" {
		accessExtra["sid"] = res.SessionID
	}
	access, exp, err := d.Issuer.IssueAccess(res.SubjectID, d.Issuer.Iss, client.AccessTokenLifetime, accessExtra)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	out := &TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
		Scope:       strings.Join(res.Scopes, " "),
	}

	if scopes["openid"] && res.SubjectID != "" {
		idExtra := map[string]any{}
		for _, c := range res.Claims {
			idExtra[c.Type] = c.Value
		}
		if res.SessionID != "" {
			idExtra["sid"] = res.SessionID
		}
		idToken, _, err := d.Issuer.IssueIDToken(res.SubjectID, res.ClientID, idExtra)
		if err != nil {
			return nil, fmt.Errorf("sign id token: %w", err)
		}
		out.IDToken = idToken
	}

	if scopes[oidc.ScopeOfflineAccess] && client.AllowOfflineAccess {
		rt, err := d.storeRefreshToken(ctx, res)
		if err != nil {
			return nil, err
		}
		out.RefreshToken = rt
	}
	return out, nil
}

// storeRefreshToken persists a refresh token grant keyed by hash so a store
// dump never yields redeemable values.
func (d *Deps) storeRefreshToken(ctx context.Context, res *oidc.GrantResult) (string, error) {
	rt, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	data, err := json.Marshal(refreshGrant{
		SubjectID: res.SubjectID,
		ClientID:  res.ClientID,
		SessionID: res.SessionID,
		Scopes:    res.Scopes,
		ExpiresAt: time.Now().UTC().Add(d.RefreshTTL),
	})
	if err != nil {
		return "", err
	}
	err = d.Grants.Store(ctx, &oidc.PersistedGrant{
		Key:       tokens.SHA256Base64URL(rt),
		Type:      oidc.GrantTypeRefreshToken,
		SubjectID: res.SubjectID,
		ClientID:  res.ClientID,
		SessionID: res.SessionID,
		Data:      data,
	})
	if err != nil {
		return "", fmt.Errorf("persist refresh token: %w", err)
	}
	return rt, nil
}
