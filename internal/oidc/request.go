package oidc

import "time"

// Authorize endpoint parameter names (OAuth2/OIDC Core).
const (
	ParamClientID            = "client_id"
	ParamRedirectURI         = "redirect_uri"
	ParamResponseType        = "response_type"
	ParamScope               = "scope"
	ParamState               = "state"
	ParamNonce               = "nonce"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"
	ParamResponseMode        = "response_mode"
	ParamPrompt              = "prompt"
	ParamMaxAge              = "max_age"
	ParamUILocales           = "ui_locales"
	ParamIDTokenHint         = "id_token_hint"
	ParamLoginHint           = "login_hint"
	ParamACRValues           = "acr_values"
	ParamRequest             = "request"
	ParamRequestURI          = "request_uri"
	ParamResource            = "resource"
)

// Response type tokens.
const (
	ResponseTypeCode    = "code"
	ResponseTypeToken   = "token"
	ResponseTypeIDToken = "id_token"
)

// RequestURIPrefix is the urn prefix a pushed authorization request_uri must
// carry (RFC 9126 §2.2).
const RequestURIPrefix = "urn:ietf:params:oauth:request_uri:"

// AuthorizeRequest is the raw parameter map of an incoming authorize request
// plus its parsed fields. It is populated once by the validator and treated
// as immutable afterwards.
type AuthorizeRequest struct {
	Raw map[string]string

	ClientID      string
	RedirectURI   string
	ResponseTypes []string
	Scopes        []string

	CodeChallenge       string
	CodeChallengeMethod string

	State        string
	Nonce        string
	ResponseMode string
	Prompt       string
	MaxAge       *time.Duration
	UILocales    string
	IDTokenHint  string
	LoginHint    string
	ACRValues    []string
	RequestObj   string
	RequestURI   string
	Resources    []string
}

// HasResponseType reports whether the parsed response_type set contains t.
func (r *AuthorizeRequest) HasResponseType(t string) bool {
	for _, rt := range r.ResponseTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// FlowKind names the closed set of response-type combinations.
type FlowKind int

const (
	FlowUnsupported FlowKind = iota
	FlowCode                 // code
	FlowImplicit             // token and/or id_token, no code
	FlowHybrid               // code + (token or id_token)
)

// Flow maps the parsed response_type set onto a flow kind. The mapping is a
// closed match so it stays exhaustive and testable on its own.
func (r *AuthorizeRequest) Flow() FlowKind {
	var code, token, idToken, other bool
	for _, rt := range r.ResponseTypes {
		switch rt {
		case ResponseTypeCode:
			code = true
		case ResponseTypeToken:
			token = true
		case ResponseTypeIDToken:
			idToken = true
		default:
			other = true
		}
	}
	switch {
	case other || len(r.ResponseTypes) == 0:
		return FlowUnsupported
	case code && (token || idToken):
		return FlowHybrid
	case code:
		return FlowCode
	default:
		return FlowImplicit
	}
}

// GrantTypeForFlow returns the grant type a client must be allowed to use for
// the given flow.
func GrantTypeForFlow(f FlowKind) (string, bool) {
	switch f {
	case FlowCode:
		return GrantAuthorizationCode, true
	case FlowImplicit:
		return GrantImplicit, true
	case FlowHybrid:
		return GrantHybrid, true
	default:
		return "", false
	}
}

// ValidatedAuthorizeRequest bundles the normalized request with the resolved
// client and the validated scope partition. Produced only on success.
type ValidatedAuthorizeRequest struct {
	Request *AuthorizeRequest
	Client  *Client
	Scopes  *ScopeValidationResult
}

// TokenRequest is the parsed body of a token-endpoint request for the
// authorization_code grant. Client is the already-authenticated client, nil
// when client authentication failed upstream.
type TokenRequest struct {
	Code         string
	Client       *Client
	RedirectURI  string
	CodeVerifier string
}

// Claim is a single issued claim.
type Claim struct {
	Type  string
	Value string
}

// GrantResult is the successful outcome of redeeming an authorization code.
// It is the input for token minting, which is out of this package's hands.
type GrantResult struct {
	SubjectID string // empty for non-user grants
	SessionID string
	ClientID  string
	Scopes    []string
	Claims    []Claim
}
