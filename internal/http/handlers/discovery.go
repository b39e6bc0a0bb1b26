package handlers

import (
	"net/http"

	"github.com/dropDatabas3/signet/internal/http/httpx"
)

// discoveryDoc is the OIDC discovery document (OpenID Connect Discovery
// 1.0). Fields are limited to what this server actually implements.
type discoveryDoc struct {
	Issuer                             string   `json:"issuer"`
	AuthorizationEndpoint              string   `json:"authorization_endpoint"`
	TokenEndpoint                      string   `json:"token_endpoint"`
	PushedAuthorizationRequestEndpoint string   `json:"pushed_authorization_request_endpoint"`
	EndSessionEndpoint                 string   `json:"end_session_endpoint"`
	JWKSURI                            string   `json:"jwks_uri"`
	ResponseTypesSupported             []string `json:"response_types_supported"`
	ResponseModesSupported             []string `json:"response_modes_supported"`
	GrantTypesSupported                []string `json:"grant_types_supported"`
	ScopesSupported                    []string `json:"scopes_supported"`
	SubjectTypesSupported              []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported   []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported  []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported      []string `json:"code_challenge_methods_supported"`
}

// Discovery serves GET /.well-known/openid-configuration.
func (d *Deps) Discovery(w http.ResponseWriter, r *http.Request) {
	iss := d.Issuer.Iss
	httpx.WriteJSON(w, http.StatusOK, discoveryDoc{
		Issuer:                             iss,
		AuthorizationEndpoint:              iss + "/oauth2/authorize",
		TokenEndpoint:                      iss + "/oauth2/token",
		PushedAuthorizationRequestEndpoint: iss + "/oauth2/par",
		EndSessionEndpoint:                 iss + "/oauth2/endsession",
		JWKSURI:                            iss + "/.well-known/jwks.json",
		ResponseTypesSupported: []string{
			"code", "token", "id_token",
			"code token", "code id_token", "id_token token", "code id_token token",
		},
		ResponseModesSupported:            []string{"query", "fragment", "form_post"},
		GrantTypesSupported:               []string{"authorization_code", "implicit", "refresh_token"},
		ScopesSupported:                   []string{"openid", "profile", "email", "offline_access"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"EdDSA"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
		CodeChallengeMethodsSupported:     []string{"S256", "plain"},
	})
}

// JWKS serves GET /.well-known/jwks.json.
func (d *Deps) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(d.Issuer.Keys.JWKSJSON())
}
