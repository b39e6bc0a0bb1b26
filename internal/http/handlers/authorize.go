package handlers

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"time"

	"github.com/dropDatabas3/signet/internal/http/httpx"
	"github.com/dropDatabas3/signet/internal/http/session"
	"github.com/dropDatabas3/signet/internal/metrics"
	"github.com/dropDatabas3/signet/internal/observability/logger"
	"github.com/dropDatabas3/signet/internal/oidc"
	tokens "github.com/dropDatabas3/signet/internal/security/token"
)

// Response modes (OAuth 2.0 Multiple Response Type Encoding Practices).
const (
	responseModeQuery    = "query"
	responseModeFragment = "fragment"
	responseModeFormPost = "form_post"
)

// Authorize serves GET/POST /oauth2/authorize.
func (d *Deps) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		d.authorizeError(w, r, oidc.NewProtocolError(oidc.ErrorInvalidRequest, "malformed request body"))
		return
	}
	params := r.Form

	// A pushed request_uri replaces the wire parameters with the stored
	// payload. Entries are one-shot; a second redemption fails.
	if ru := params.Get(oidc.ParamRequestURI); ru != "" && d.PAR != nil {
		stored, ok := d.PAR.Redeem(ru)
		if !ok {
			d.authorizeError(w, r, oidc.NewProtocolError(oidc.ErrorInvalidRequest, "request_uri is invalid or expired"))
			return
		}
		if cid := params.Get(oidc.ParamClientID); cid != "" && cid != stored.Get(oidc.ParamClientID) {
			d.authorizeError(w, r, oidc.NewProtocolError(oidc.ErrorInvalidRequest, "client_id does not match the pushed request"))
			return
		}
		stored.Set(oidc.ParamRequestURI, ru)
		params = stored
	}

	validated, err := d.Validator.ValidateRequested(ctx, params)
	if err != nil {
		d.authorizeError(w, r, err)
		return
	}
	req := validated.Request

	// End-user authentication.
	sess := d.Sessions.Resolve(r)
	if sess != nil && req.MaxAge != nil && time.Since(sess.AuthTime) > *req.MaxAge {
		sess = nil
	}
	if req.Prompt == "login" {
		sess = nil
	}
	if sess == nil {
		if req.Prompt == "none" {
			// The client asked for silent authentication; answer over the
			// confirmed redirect URI (OIDC Core §3.1.2.6).
			pe := oidc.NewProtocolError(oidc.ErrorLoginRequired, "").
				ForRedirect(req.RedirectURI, req.State, effectiveResponseMode(req))
			d.authorizeError(w, r, pe)
			return
		}
		d.redirectToLogin(w, r)
		return
	}

	switch req.Flow() {
	case oidc.FlowCode:
		d.finishCodeFlow(w, r, validated, sess, nil)
	case oidc.FlowImplicit:
		d.finishImplicitFlow(w, r, validated, sess)
	case oidc.FlowHybrid:
		d.finishHybridFlow(w, r, validated, sess)
	}
}

// finishCodeFlow mints and stores an authorization code and redirects back.
// extra is merged into the response parameters (hybrid adds tokens).
func (d *Deps) finishCodeFlow(w http.ResponseWriter, r *http.Request, v *oidc.ValidatedAuthorizeRequest, sess *session.Session, extra url.Values) {
	ctx := r.Context()
	req := v.Request

	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		d.authorizeError(w, r, fmt.Errorf("generate code: %w", err))
		return
	}
	ttl := d.CodeTTL
	if v.Client.AuthorizationCodeLifetime > 0 {
		ttl = v.Client.AuthorizationCodeLifetime
	}
	now := time.Now().UTC()
	code := &oidc.AuthorizationCode{
		Code:                raw,
		ClientID:            v.Client.ClientID,
		SubjectID:           sess.SubjectID,
		SessionID:           sess.SessionID,
		RedirectURI:         req.Raw[oidc.ParamRedirectURI], // as requested; empty when defaulted
		Scopes:              v.Scopes.ValidScopes,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Nonce:               req.Nonce,
		CreatedAt:           now,
		ExpiresAt:           now.Add(ttl),
	}
	if err := d.Codes.Store(ctx, code); err != nil {
		d.authorizeError(w, r, fmt.Errorf("store code: %w", err))
		return
	}

	out := url.Values{}
	out.Set("code", raw)
	if req.State != "" {
		out.Set("state", req.State)
	}
	for k, vs := range extra {
		for _, val := range vs {
			out.Add(k, val)
		}
	}
	logger.From(ctx).Info("authorization code issued",
		logger.ClientID(v.Client.ClientID),
		logger.UserID(sess.SubjectID),
	)
	metrics.AuthorizeRequests.WithLabelValues("success").Inc()
	d.deliver(w, r, req.RedirectURI, out, effectiveResponseMode(req))
}

// finishImplicitFlow answers with tokens in the fragment. No refresh token
// is ever issued here regardless of the granted scopes (RFC 6749 §4.2.2).
func (d *Deps) finishImplicitFlow(w http.ResponseWriter, r *http.Request, v *oidc.ValidatedAuthorizeRequest, sess *session.Session) {
	req := v.Request
	out, err := d.implicitTokenParams(w, r, v, sess)
	if err != nil {
		return // implicitTokenParams already answered
	}
	if req.State != "" {
		out.Set("state", req.State)
	}
	metrics.AuthorizeRequests.WithLabelValues("success").Inc()
	d.deliver(w, r, req.RedirectURI, out, effectiveResponseMode(req))
}

// finishHybridFlow issues the code and the front-channel tokens together.
func (d *Deps) finishHybridFlow(w http.ResponseWriter, r *http.Request, v *oidc.ValidatedAuthorizeRequest, sess *session.Session) {
	out, err := d.implicitTokenParams(w, r, v, sess)
	if err != nil {
		return
	}
	d.finishCodeFlow(w, r, v, sess, out)
}

// implicitTokenParams mints the front-channel tokens for implicit and hybrid
// responses. On failure it writes the error response and returns a non-nil
// error so callers just bail.
func (d *Deps) implicitTokenParams(w http.ResponseWriter, r *http.Request, v *oidc.ValidatedAuthorizeRequest, sess *session.Session) (url.Values, error) {
	ctx := r.Context()
	req := v.Request

	res := &oidc.GrantResult{
		SubjectID: sess.SubjectID,
		SessionID: sess.SessionID,
		ClientID:  v.Client.ClientID,
		Scopes:    frontChannelScopes(v.Scopes.ValidScopes),
	}
	if req.Nonce != "" {
		res.Claims = append(res.Claims, oidc.Claim{Type: "nonce", Value: req.Nonce})
	}
	claims, err := d.Profile.ProfileData(ctx, oidc.ProfileDataRequest{
		SubjectID: sess.SubjectID,
		ClientID:  v.Client.ClientID,
		Scopes:    res.Scopes,
		Caller:    "authorize_endpoint",
	})
	if err != nil {
		d.authorizeError(w, r, fmt.Errorf("profile data: %w", err))
		return nil, err
	}
	res.Claims = append(res.Claims, claims...)

	out := url.Values{}
	if req.HasResponseType(oidc.ResponseTypeToken) || req.HasResponseType(oidc.ResponseTypeIDToken) {
		tr, err := d.mintTokens(ctx, v.Client, res)
		if err != nil {
			d.authorizeError(w, r, err)
			return nil, err
		}
		if req.HasResponseType(oidc.ResponseTypeToken) {
			out.Set("access_token", tr.AccessToken)
			out.Set("token_type", tr.TokenType)
			out.Set("expires_in", fmt.Sprintf("%d", tr.ExpiresIn))
			out.Set("scope", tr.Scope)
		}
		if tr.IDToken != "" {
			out.Set("id_token", tr.IDToken)
		}
	}
	return out, nil
}

// frontChannelScopes strips offline_access; refresh tokens only come out of
// the token endpoint.
func frontChannelScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s == oidc.ScopeOfflineAccess {
			continue
		}
		out = append(out, s)
	}
	return out
}

// effectiveResponseMode resolves the response mode: the requested one when
// recognized, otherwise query for the code flow and fragment for anything
// carrying tokens.
func effectiveResponseMode(req *oidc.AuthorizeRequest) string {
	switch req.ResponseMode {
	case responseModeQuery, responseModeFragment, responseModeFormPost:
		return req.ResponseMode
	}
	if req.Flow() == oidc.FlowCode {
		return responseModeQuery
	}
	return responseModeFragment
}

// deliver sends response parameters to the redirect URI using the given
// response mode.
func (d *Deps) deliver(w http.ResponseWriter, r *http.Request, redirectURI string, params url.Values, mode string) {
	switch mode {
	case responseModeFormPost:
		writeFormPost(w, redirectURI, params)
	case responseModeFragment:
		http.Redirect(w, r, redirectURI+"#"+params.Encode(), http.StatusFound)
	default:
		u, err := url.Parse(redirectURI)
		if err != nil {
			httpx.WriteServerError(w)
			return
		}
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		http.Redirect(w, r, u.String(), http.StatusFound)
	}
}

// writeFormPost renders the auto-submitting form of the form_post response
// mode.
func writeFormPost(w http.ResponseWriter, action string, params url.Values) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	httpx.NoStore(w)
	fmt.Fprintf(w, "<html><body onload=\"document.forms[0].submit()\"><form method=\"post\" action=%q>", action)
	for k, vs := range params {
		for _, v := range vs {
			fmt.Fprintf(w, "<input type=\"hidden\" name=%q value=%q/>", html.EscapeString(k), html.EscapeString(v))
		}
	}
	fmt.Fprint(w, "<noscript><button type=\"submit\">Continue</button></noscript></form></body></html>")
}

// redirectToLogin bounces the browser to the login UI with the authorize
// request as the return target. prompt=login is stripped so the round trip
// terminates.
func (d *Deps) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	ret := *r.URL
	q := ret.Query()
	if q.Get(oidc.ParamPrompt) == "login" {
		q.Del(oidc.ParamPrompt)
	}
	ret.RawQuery = q.Encode()

	u, err := url.Parse(d.LoginURL)
	if err != nil {
		httpx.WriteServerError(w)
		return
	}
	lq := u.Query()
	lq.Set("return_to", ret.String())
	u.RawQuery = lq.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// authorizeError answers a failed authorize request. Redirect-capable
// protocol errors go back over the confirmed redirect URI; everything
// earlier is shown directly. Infrastructure faults become an opaque
// server_error.
func (d *Deps) authorizeError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *oidc.ProtocolError
	if !errors.As(err, &pe) {
		logger.From(r.Context()).Error("authorize request failed", logger.Err(err))
		metrics.AuthorizeRequests.WithLabelValues(oidc.ErrorServerError).Inc()
		httpx.WriteServerError(w)
		return
	}
	metrics.AuthorizeRequests.WithLabelValues(pe.Kind).Inc()

	if pe.RedirectCapable && pe.RedirectURI != "" {
		out := url.Values{}
		out.Set("error", pe.Kind)
		if pe.Description != "" {
			out.Set("error_description", pe.Description)
		}
		if pe.State != "" {
			out.Set("state", pe.State)
		}
		mode := pe.ResponseMode
		if mode != responseModeFragment && mode != responseModeFormPost {
			mode = responseModeQuery
		}
		d.deliver(w, r, pe.RedirectURI, out, mode)
		return
	}
	httpx.WriteOAuthError(w, pe)
}
