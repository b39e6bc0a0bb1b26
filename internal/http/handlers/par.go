package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/dropDatabas3/signet/internal/http/httpx"
	"github.com/dropDatabas3/signet/internal/observability/logger"
	"github.com/dropDatabas3/signet/internal/oidc"
)

// parResponse is the pushed authorization success body (RFC 9126 §2.2).
type parResponse struct {
	RequestURI string `json:"request_uri"`
	ExpiresIn  int64  `json:"expires_in"`
}

// PushedAuthorize serves POST /oauth2/par. The payload is validated up front
// so the later authorize round trip can only fail on session state.
func (d *Deps) PushedAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		httpx.WriteOAuthError(w, oidc.NewProtocolError(oidc.ErrorInvalidRequest, "malformed request body"))
		return
	}

	client, err := d.authenticateClient(ctx, r)
	if err != nil {
		d.parError(w, r, err)
		return
	}

	// request_uri inside a pushed request is forbidden (RFC 9126 §2.1).
	if r.PostForm.Get(oidc.ParamRequestURI) != "" {
		httpx.WriteOAuthError(w, oidc.NewProtocolError(oidc.ErrorInvalidRequest, "request_uri is not allowed in a pushed request"))
		return
	}
	if cid := r.PostForm.Get(oidc.ParamClientID); cid != "" && cid != client.ClientID {
		httpx.WriteOAuthError(w, oidc.NewProtocolError(oidc.ErrorInvalidRequest, "client_id does not match the authenticated client"))
		return
	}

	params := url.Values{}
	for k, vs := range r.PostForm {
		if k == "client_secret" {
			continue
		}
		params[k] = vs
	}
	params.Set(oidc.ParamClientID, client.ClientID)

	// Validate with a placeholder request_uri: the PAR requirement check
	// must see that this request did come through the pushed endpoint.
	check := url.Values{}
	for k, vs := range params {
		check[k] = vs
	}
	check.Set(oidc.ParamRequestURI, oidc.RequestURIPrefix+"pending")
	if _, err := d.Validator.ValidateRequested(ctx, check); err != nil {
		d.parError(w, r, err)
		return
	}

	requestURI, err := d.PAR.Push(params)
	if err != nil {
		d.parError(w, r, err)
		return
	}
	logger.From(ctx).Info("authorization request pushed", logger.ClientID(client.ClientID))
	httpx.NoStore(w)
	httpx.WriteJSON(w, http.StatusCreated, parResponse{
		RequestURI: requestURI,
		ExpiresIn:  int64(d.PAR.TTL().Seconds()),
	})
}

// parError writes a pushed-authorization failure. Redirect capability is
// meaningless here; everything comes back in the response body.
func (d *Deps) parError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *oidc.ProtocolError
	if !errors.As(err, &pe) {
		logger.From(r.Context()).Error("pushed authorization failed", logger.Err(err))
		httpx.WriteServerError(w)
		return
	}
	httpx.WriteOAuthError(w, pe)
}
