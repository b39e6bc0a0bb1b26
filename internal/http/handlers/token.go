package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dropDatabas3/signet/internal/audit"
	"github.com/dropDatabas3/signet/internal/http/httpx"
	"github.com/dropDatabas3/signet/internal/metrics"
	"github.com/dropDatabas3/signet/internal/observability/logger"
	"github.com/dropDatabas3/signet/internal/oidc"
	tokens "github.com/dropDatabas3/signet/internal/security/token"
)

// Token serves POST /oauth2/token.
func (d *Deps) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		d.tokenError(w, r, "", oidc.NewProtocolError(oidc.ErrorInvalidRequest, "malformed request body"))
		return
	}
	grantType := r.PostFormValue("grant_type")

	client, err := d.authenticateClient(ctx, r)
	if err != nil {
		d.tokenError(w, r, grantType, err)
		return
	}

	switch grantType {
	case oidc.GrantAuthorizationCode:
		d.tokenAuthorizationCode(w, r, client)
	case oidc.GrantRefreshToken:
		d.tokenRefresh(w, r, client)
	case "":
		d.tokenError(w, r, grantType, oidc.NewProtocolError(oidc.ErrorInvalidRequest, "grant_type is missing"))
	default:
		d.tokenError(w, r, grantType, oidc.NewProtocolError(oidc.ErrorUnsupportedGrantType, ""))
	}
}

func (d *Deps) tokenAuthorizationCode(w http.ResponseWriter, r *http.Request, client *oidc.Client) {
	ctx := r.Context()

	if !client.AllowsGrantType(oidc.GrantAuthorizationCode) {
		d.tokenError(w, r, oidc.GrantAuthorizationCode, oidc.NewProtocolError(oidc.ErrorUnauthorizedClient, "client is not allowed the authorization_code grant"))
		return
	}

	res, err := d.Grant.Handle(ctx, oidc.TokenRequest{
		Code:         r.PostFormValue("code"),
		Client:       client,
		RedirectURI:  r.PostFormValue("redirect_uri"),
		CodeVerifier: r.PostFormValue("code_verifier"),
	})
	if err != nil {
		d.tokenError(w, r, oidc.GrantAuthorizationCode, err)
		return
	}

	out, err := d.mintTokens(ctx, client, res)
	if err != nil {
		d.tokenError(w, r, oidc.GrantAuthorizationCode, err)
		return
	}
	metrics.TokenRequests.WithLabelValues(oidc.GrantAuthorizationCode, "success").Inc()
	audit.Event(ctx, "token.issued",
		logger.GrantType(oidc.GrantAuthorizationCode),
		logger.ClientID(client.ClientID),
		logger.UserID(res.SubjectID),
	)
	httpx.NoStore(w)
	httpx.WriteJSON(w, http.StatusOK, out)
}

// tokenRefresh rotates a refresh token: the presented token is revoked and a
// fresh one issued with the same scopes.
func (d *Deps) tokenRefresh(w http.ResponseWriter, r *http.Request, client *oidc.Client) {
	ctx := r.Context()

	if !client.AllowsGrantType(oidc.GrantRefreshToken) || !client.AllowOfflineAccess {
		d.tokenError(w, r, oidc.GrantRefreshToken, oidc.NewProtocolError(oidc.ErrorUnauthorizedClient, "client is not allowed the refresh_token grant"))
		return
	}
	raw := r.PostFormValue("refresh_token")
	if raw == "" {
		d.tokenError(w, r, oidc.GrantRefreshToken, oidc.NewProtocolError(oidc.ErrorInvalidRequest, "refresh_token is missing"))
		return
	}

	key := tokens.SHA256Base64URL(raw)
	grant, err := d.Grants.Get(ctx, key)
	if err != nil {
		if err == oidc.ErrNotFound {
			d.tokenError(w, r, oidc.GrantRefreshToken, oidc.NewProtocolError(oidc.ErrorInvalidGrant, "refresh token is invalid"))
			return
		}
		d.tokenError(w, r, oidc.GrantRefreshToken, err)
		return
	}
	if grant.Type != oidc.GrantTypeRefreshToken || grant.ClientID != client.ClientID {
		d.tokenError(w, r, oidc.GrantRefreshToken, oidc.NewProtocolError(oidc.ErrorInvalidGrant, "refresh token is invalid"))
		return
	}
	var payload refreshGrant
	if err := json.Unmarshal(grant.Data, &payload); err != nil {
		d.tokenError(w, r, oidc.GrantRefreshToken, err)
		return
	}
	if time.Now().After(payload.ExpiresAt) {
		_ = d.Grants.RemoveAll(ctx, oidc.GrantFilter{SubjectID: grant.SubjectID, ClientID: grant.ClientID, SessionID: grant.SessionID})
		d.tokenError(w, r, oidc.GrantRefreshToken, oidc.NewProtocolError(oidc.ErrorInvalidGrant, "refresh token is expired"))
		return
	}

	// Subject must still be live, same as a code redemption.
	if grant.SubjectID != "" {
		active, err := d.Profile.IsActive(ctx, oidc.IsActiveRequest{
			SubjectID: grant.SubjectID,
			ClientID:  grant.ClientID,
			Caller:    "refresh_token",
		})
		if err != nil {
			d.tokenError(w, r, oidc.GrantRefreshToken, err)
			return
		}
		if !active {
			d.tokenError(w, r, oidc.GrantRefreshToken, oidc.NewProtocolError(oidc.ErrorInvalidGrant, "user is not active"))
			return
		}
	}

	res := &oidc.GrantResult{
		SubjectID: grant.SubjectID,
		SessionID: grant.SessionID,
		ClientID:  grant.ClientID,
		Scopes:    payload.Scopes,
	}
	if grant.SubjectID != "" {
		claims, err := d.Profile.ProfileData(ctx, oidc.ProfileDataRequest{
			SubjectID: grant.SubjectID,
			ClientID:  grant.ClientID,
			Scopes:    payload.Scopes,
			Caller:    "refresh_token",
		})
		if err != nil {
			d.tokenError(w, r, oidc.GrantRefreshToken, err)
			return
		}
		res.Claims = claims
	}

	out, err := d.mintTokens(ctx, client, res)
	if err != nil {
		d.tokenError(w, r, oidc.GrantRefreshToken, err)
		return
	}
	// Rotation: the old token dies only after the new one is safely stored.
	if err := d.Grants.Remove(ctx, key); err != nil {
		logger.From(ctx).Error("refresh token rotation cleanup failed", logger.Err(err))
	}

	metrics.TokenRequests.WithLabelValues(oidc.GrantRefreshToken, "success").Inc()
	audit.Event(ctx, "token.refreshed",
		logger.GrantType(oidc.GrantRefreshToken),
		logger.ClientID(client.ClientID),
		logger.UserID(grant.SubjectID),
	)
	httpx.NoStore(w)
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (d *Deps) tokenError(w http.ResponseWriter, r *http.Request, grantType string, err error) {
	label := grantType
	if label == "" {
		label = "unknown"
	}
	var pe *oidc.ProtocolError
	if !errors.As(err, &pe) {
		logger.From(r.Context()).Error("token request failed", logger.GrantType(label), logger.Err(err))
		metrics.TokenRequests.WithLabelValues(label, oidc.ErrorServerError).Inc()
		httpx.WriteServerError(w)
		return
	}
	metrics.TokenRequests.WithLabelValues(label, pe.Kind).Inc()
	httpx.WriteOAuthError(w, pe)
}
