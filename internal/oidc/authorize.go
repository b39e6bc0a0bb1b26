package oidc

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/signet/internal/observability/logger"
)

// AuthorizeValidatorDeps contains the collaborators of the authorize-request
// validator.
type AuthorizeValidatorDeps struct {
	Clients  ClientStore
	Redirect *RedirectURIValidator
	Scopes   *ScopeValidator
	PKCE     *PKCEValidator
}

// AuthorizeRequestValidator runs the full authorize-request pipeline: client
// lookup, PAR/JAR requirements, response-type to grant-type mapping, redirect
// URI, scope and PKCE validation, nonce rules.
//
// Errors raised before the redirect URI is confirmed must be shown to the end
// user directly; from there on they are marked redirect-capable (see
// ProtocolError.RedirectCapable).
type AuthorizeRequestValidator struct {
	clients  ClientStore
	redirect *RedirectURIValidator
	scopes   *ScopeValidator
	pkce     *PKCEValidator
}

// NewAuthorizeRequestValidator wires the validator from its dependencies.
func NewAuthorizeRequestValidator(d AuthorizeValidatorDeps) *AuthorizeRequestValidator {
	return &AuthorizeRequestValidator{
		clients:  d.Clients,
		redirect: d.Redirect,
		scopes:   d.Scopes,
		pkce:     d.PKCE,
	}
}

// ValidateRequested parses raw authorize parameters and validates them.
// params carries the merged query/form values, form taking precedence.
func (v *AuthorizeRequestValidator) ValidateRequested(ctx context.Context, params url.Values) (*ValidatedAuthorizeRequest, error) {
	req, err := parseAuthorizeRequest(params)
	if err != nil {
		return nil, err
	}
	return v.ValidateParsed(ctx, req)
}

// ValidateParsed validates an already-parsed request. Used when replaying a
// pushed authorization payload, where parsing happened at the PAR endpoint.
func (v *AuthorizeRequestValidator) ValidateParsed(ctx context.Context, req *AuthorizeRequest) (*ValidatedAuthorizeRequest, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("AuthorizeRequestValidator.Validate"))

	// 1. Resolve the client.
	if req.ClientID == "" {
		return nil, NewProtocolError(ErrorInvalidRequest, "client_id is missing")
	}
	client, err := v.clients.FindClientByID(ctx, req.ClientID)
	if err != nil {
		if err == ErrNotFound {
			log.Debug("unknown client", logger.ClientID(req.ClientID))
			return nil, NewProtocolError(ErrorInvalidClient, "unknown client")
		}
		return nil, err
	}
	if !client.Enabled {
		log.Debug("client disabled", logger.ClientID(req.ClientID))
		return nil, NewProtocolError(ErrorInvalidClient, "client is disabled")
	}

	// 2. Pushed authorization requirement (RFC 9126).
	if client.RequirePushedAuthorization && !strings.HasPrefix(req.RequestURI, RequestURIPrefix) {
		return nil, NewProtocolError(ErrorInvalidRequest, "client must use the pushed authorization endpoint")
	}

	// 3. Default the redirect URI when the client has exactly one registered.
	if req.RedirectURI == "" && len(client.RedirectURIs) == 1 {
		req.RedirectURI = client.RedirectURIs[0]
	}

	// 4. Response type and its grant-type requirement.
	if len(req.ResponseTypes) == 0 {
		return nil, NewProtocolError(ErrorInvalidRequest, "response_type is missing")
	}
	flow := req.Flow()
	grantType, ok := GrantTypeForFlow(flow)
	if !ok {
		return nil, NewProtocolError(ErrorUnsupportedResponseType, "unsupported response_type combination")
	}
	if !client.AllowsGrantType(grantType) {
		log.Debug("grant type not allowed", logger.ClientID(req.ClientID), logger.String("grant_type", grantType))
		return nil, NewProtocolError(ErrorUnauthorizedClient, "client is not allowed the "+grantType+" grant")
	}

	// 5. Redirect URI. This is the validation watershed: every failure past
	// this point may be delivered to the client via redirect.
	isImplicitOrHybrid := flow == FlowImplicit || flow == FlowHybrid
	if err := v.redirect.Validate(req.RedirectURI, client.RedirectURIs, isImplicitOrHybrid); err != nil {
		log.Debug("redirect_uri rejected", logger.ClientID(req.ClientID), logger.Err(err))
		return nil, err
	}
	errMode := req.ResponseMode
	if errMode == "" && isImplicitOrHybrid {
		errMode = "fragment"
	}
	fail := func(pe *ProtocolError) error {
		return pe.ForRedirect(req.RedirectURI, req.State, errMode)
	}

	// 6. Scopes.
	if len(req.Scopes) == 0 {
		return nil, fail(NewProtocolError(ErrorInvalidScope, "scope is missing"))
	}
	scopeResult, err := v.scopes.Validate(req.Scopes, client.AllowedScopes)
	if err != nil {
		log.Debug("scope rejected", logger.ClientID(req.ClientID), logger.Err(err))
		if pe, ok := err.(*ProtocolError); ok {
			return nil, fail(pe)
		}
		return nil, err
	}
	if req.HasResponseType(ResponseTypeIDToken) && !scopeResult.ContainsOpenID() {
		return nil, fail(NewProtocolError(ErrorInvalidScope, "openid scope is required when requesting an id_token"))
	}
	if scopeResult.OfflineAccess && !client.AllowOfflineAccess {
		return nil, fail(NewProtocolError(ErrorInvalidScope, "client is not allowed offline access"))
	}

	// 7. PKCE is mandatory for code-bearing responses when the client says so.
	pkceRequired := (flow == FlowCode || flow == FlowHybrid) && client.RequirePKCE
	if err := v.pkce.ValidateCodeChallenge(req.CodeChallenge, req.CodeChallengeMethod, pkceRequired, client.AllowPlainTextPKCE); err != nil {
		log.Debug("pkce rejected", logger.ClientID(req.ClientID), logger.Err(err))
		if pe, ok := err.(*ProtocolError); ok {
			return nil, fail(pe)
		}
		return nil, err
	}

	// 8. Nonce is required whenever an id_token is requested directly.
	if req.HasResponseType(ResponseTypeIDToken) && req.Nonce == "" {
		return nil, fail(NewProtocolError(ErrorInvalidRequest, "nonce is required for id_token responses"))
	}

	// 9. Request object requirement (JAR).
	if client.RequireRequestObject && req.RequestObj == "" && req.RequestURI == "" {
		return nil, fail(NewProtocolError(ErrorInvalidRequest, "client requires a request object"))
	}

	log.Debug("authorize request validated",
		logger.ClientID(req.ClientID),
		logger.String("flow", grantType),
		logger.Count(len(scopeResult.ValidScopes)),
	)

	return &ValidatedAuthorizeRequest{
		Request: req,
		Client:  client,
		Scopes:  scopeResult,
	}, nil
}

// parseAuthorizeRequest lifts raw parameters into an AuthorizeRequest.
// Optional parameters are captured verbatim; only shape is checked here.
func parseAuthorizeRequest(params url.Values) (*AuthorizeRequest, error) {
	get := func(name string) string { return strings.TrimSpace(params.Get(name)) }

	raw := make(map[string]string, len(params))
	for k := range params {
		raw[k] = params.Get(k)
	}

	req := &AuthorizeRequest{
		Raw:                 raw,
		ClientID:            get(ParamClientID),
		RedirectURI:         get(ParamRedirectURI),
		ResponseTypes:       strings.Fields(get(ParamResponseType)),
		Scopes:              ParseScopes(get(ParamScope)),
		CodeChallenge:       get(ParamCodeChallenge),
		CodeChallengeMethod: get(ParamCodeChallengeMethod),
		State:               get(ParamState),
		Nonce:               get(ParamNonce),
		ResponseMode:        get(ParamResponseMode),
		Prompt:              get(ParamPrompt),
		UILocales:           get(ParamUILocales),
		IDTokenHint:         get(ParamIDTokenHint),
		LoginHint:           get(ParamLoginHint),
		ACRValues:           strings.Fields(get(ParamACRValues)),
		RequestObj:          get(ParamRequest),
		RequestURI:          get(ParamRequestURI),
	}

	if v := get(ParamMaxAge); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			return nil, NewProtocolError(ErrorInvalidRequest, "max_age must be a non-negative integer")
		}
		d := time.Duration(secs) * time.Second
		req.MaxAge = &d
	}

	// resource may repeat (RFC 8707).
	for _, r := range params[ParamResource] {
		if r = strings.TrimSpace(r); r != "" {
			req.Resources = append(req.Resources, r)
		}
	}

	return req, nil
}
