package handlers

import (
	"net/http"
	"net/url"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/signet/internal/http/httpx"
	"github.com/dropDatabas3/signet/internal/observability/logger"
	"github.com/dropDatabas3/signet/internal/oidc"
)

// EndSession serves GET/POST /oauth2/endsession (OIDC RP-Initiated Logout).
// The session is always cleared; the post-logout redirect only happens when
// it validates against the client identified by the id_token_hint or
// client_id.
func (d *Deps) EndSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		httpx.WriteOAuthError(w, oidc.NewProtocolError(oidc.ErrorInvalidRequest, "malformed request body"))
		return
	}

	clientID := r.Form.Get("client_id")
	if hint := r.Form.Get("id_token_hint"); hint != "" {
		if aud := d.audienceFromIDToken(hint); aud != "" {
			clientID = aud
		}
	}

	d.Sessions.Clear(w, r)

	postLogout := r.Form.Get("post_logout_redirect_uri")
	state := r.Form.Get("state")
	if postLogout == "" || clientID == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	client, err := d.Clients.FindClientByID(ctx, clientID)
	if err != nil {
		if err != oidc.ErrNotFound {
			logger.From(ctx).Error("end session client lookup failed", logger.Err(err))
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	redirect := oidc.NewRedirectURIValidator()
	if err := redirect.ValidatePostLogout(postLogout, client.PostLogoutRedirectURIs); err != nil {
		logger.From(ctx).Debug("post_logout_redirect_uri rejected",
			logger.ClientID(clientID), logger.Err(err))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	u, err := url.Parse(postLogout)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if state != "" {
		q := u.Query()
		q.Set("state", state)
		u.RawQuery = q.Encode()
	}
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// audienceFromIDToken verifies the hint against the active key and returns
// its audience. Invalid hints are ignored rather than failing logout.
func (d *Deps) audienceFromIDToken(hint string) string {
	tok, err := jwtv5.Parse(hint, d.Issuer.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		// Expired hints still identify the client during logout; only the
		// signature matters here.
		jwtv5.WithoutClaimsValidation(),
	)
	if err != nil || !tok.Valid {
		return ""
	}
	auds, err := tok.Claims.GetAudience()
	if err != nil || len(auds) == 0 {
		return ""
	}
	return auds[0]
}
