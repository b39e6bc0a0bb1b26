package oidc

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClientStore map[string]*Client

func (s fakeClientStore) FindClientByID(ctx context.Context, clientID string) (*Client, error) {
	c, ok := s[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func testClient() *Client {
	return &Client{
		ClientID:          "web",
		Enabled:           true,
		AllowedGrantTypes: []string{GrantAuthorizationCode},
		AllowedScopes:     []string{"openid", "profile", "api.read", "api.write", ScopeOfflineAccess},
		RedirectURIs:      []string{"https://app.example/cb"},
		RequirePKCE:       true,
	}
}

func newTestValidator(clients ...*Client) *AuthorizeRequestValidator {
	store := fakeClientStore{}
	for _, c := range clients {
		store[c.ClientID] = c
	}
	return NewAuthorizeRequestValidator(AuthorizeValidatorDeps{
		Clients:  store,
		Redirect: NewRedirectURIValidator(),
		Scopes:   NewScopeValidator(testCatalog()),
		PKCE:     NewPKCEValidator(),
	})
}

func baseParams() url.Values {
	verifier := GenerateCodeVerifier()
	challenge, _ := GenerateCodeChallenge(verifier, CodeChallengeMethodS256)
	return url.Values{
		"client_id":             {"web"},
		"redirect_uri":          {"https://app.example/cb"},
		"response_type":         {"code"},
		"scope":                 {"openid profile"},
		"state":                 {"xyz"},
		"code_challenge":        {challenge},
		"code_challenge_method": {CodeChallengeMethodS256},
	}
}

func protocolErr(t *testing.T, err error) *ProtocolError {
	t.Helper()
	require.Error(t, err)
	pe, ok := err.(*ProtocolError)
	require.True(t, ok, "expected *ProtocolError, got %T: %v", err, err)
	return pe
}

func TestAuthorizeValidator_HappyPath(t *testing.T) {
	v := newTestValidator(testClient())
	res, err := v.ValidateRequested(context.Background(), baseParams())
	require.NoError(t, err)
	assert.Equal(t, "web", res.Client.ClientID)
	assert.Equal(t, []string{"openid", "profile"}, res.Scopes.ValidScopes)
	assert.Equal(t, "https://app.example/cb", res.Request.RedirectURI)
	assert.Equal(t, "xyz", res.Request.State)
}

func TestAuthorizeValidator_ClientResolution(t *testing.T) {
	v := newTestValidator(testClient())

	t.Run("missing client_id", func(t *testing.T) {
		p := baseParams()
		p.Del("client_id")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorInvalidRequest, pe.Kind)
		assert.False(t, pe.RedirectCapable)
	})

	t.Run("unknown client", func(t *testing.T) {
		p := baseParams()
		p.Set("client_id", "ghost")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorInvalidClient, pe.Kind)
	})

	t.Run("disabled client", func(t *testing.T) {
		c := testClient()
		c.Enabled = false
		pe := protocolErr(t, mustFail(newTestValidator(c), baseParams()))
		assert.Equal(t, ErrorInvalidClient, pe.Kind)
	})
}

func TestAuthorizeValidator_ResponseTypes(t *testing.T) {
	v := newTestValidator(testClient())

	t.Run("missing response_type", func(t *testing.T) {
		p := baseParams()
		p.Del("response_type")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorInvalidRequest, pe.Kind)
	})

	t.Run("unsupported combination", func(t *testing.T) {
		p := baseParams()
		p.Set("response_type", "code banana")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorUnsupportedResponseType, pe.Kind)
	})

	t.Run("grant type not allowed", func(t *testing.T) {
		p := baseParams()
		p.Set("response_type", "id_token")
		p.Set("nonce", "n-1")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorUnauthorizedClient, pe.Kind)
	})
}

func TestAuthorizeValidator_Watershed(t *testing.T) {
	v := newTestValidator(testClient())

	t.Run("redirect failure is not redirect-capable", func(t *testing.T) {
		p := baseParams()
		p.Set("redirect_uri", "https://evil.example/cb")
		pe := protocolErr(t, mustFail(v, p))
		assert.False(t, pe.RedirectCapable)
	})

	t.Run("scope failure is redirect-capable with state", func(t *testing.T) {
		p := baseParams()
		p.Set("scope", "openid not.a.scope")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorInvalidScope, pe.Kind)
		assert.True(t, pe.RedirectCapable)
		assert.Equal(t, "https://app.example/cb", pe.RedirectURI)
		assert.Equal(t, "xyz", pe.State)
	})

	t.Run("pkce failure is redirect-capable", func(t *testing.T) {
		p := baseParams()
		p.Del("code_challenge")
		p.Del("code_challenge_method")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorInvalidRequest, pe.Kind)
		assert.True(t, pe.RedirectCapable)
	})
}

func TestAuthorizeValidator_RedirectDefaulting(t *testing.T) {
	t.Run("single registered URI is the default", func(t *testing.T) {
		v := newTestValidator(testClient())
		p := baseParams()
		p.Del("redirect_uri")
		res, err := v.ValidateRequested(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, "https://app.example/cb", res.Request.RedirectURI)
	})

	t.Run("no default with several registered", func(t *testing.T) {
		c := testClient()
		c.RedirectURIs = []string{"https://app.example/cb", "https://app.example/cb2"}
		v := newTestValidator(c)
		p := baseParams()
		p.Del("redirect_uri")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorInvalidRequest, pe.Kind)
		assert.False(t, pe.RedirectCapable)
	})
}

func TestAuthorizeValidator_ScopeRules(t *testing.T) {
	t.Run("scope missing", func(t *testing.T) {
		v := newTestValidator(testClient())
		p := baseParams()
		p.Del("scope")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorInvalidScope, pe.Kind)
		assert.True(t, pe.RedirectCapable)
	})

	t.Run("id_token without openid", func(t *testing.T) {
		c := testClient()
		c.AllowedGrantTypes = append(c.AllowedGrantTypes, GrantHybrid)
		v := newTestValidator(c)
		p := baseParams()
		p.Set("response_type", "code id_token")
		p.Set("scope", "profile")
		p.Set("nonce", "n-1")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorInvalidScope, pe.Kind)
	})

	t.Run("offline_access needs client opt-in", func(t *testing.T) {
		v := newTestValidator(testClient())
		p := baseParams()
		p.Set("scope", "openid offline_access")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorInvalidScope, pe.Kind)
	})

	t.Run("offline_access allowed when opted in", func(t *testing.T) {
		c := testClient()
		c.AllowOfflineAccess = true
		v := newTestValidator(c)
		p := baseParams()
		p.Set("scope", "openid offline_access")
		res, err := v.ValidateRequested(context.Background(), p)
		require.NoError(t, err)
		assert.True(t, res.Scopes.OfflineAccess)
	})
}

func TestAuthorizeValidator_NonceAndJAR(t *testing.T) {
	t.Run("nonce required for id_token", func(t *testing.T) {
		c := testClient()
		c.AllowedGrantTypes = append(c.AllowedGrantTypes, GrantHybrid)
		v := newTestValidator(c)
		p := baseParams()
		p.Set("response_type", "code id_token")
		pe := protocolErr(t, mustFail(v, p))
		assert.Equal(t, ErrorInvalidRequest, pe.Kind)
		assert.True(t, pe.RedirectCapable)
		assert.Contains(t, pe.Description, "nonce")
	})

	t.Run("request object required", func(t *testing.T) {
		c := testClient()
		c.RequireRequestObject = true
		v := newTestValidator(c)
		pe := protocolErr(t, mustFail(v, baseParams()))
		assert.Contains(t, pe.Description, "request object")
	})

	t.Run("pushed authorization required", func(t *testing.T) {
		c := testClient()
		c.RequirePushedAuthorization = true
		v := newTestValidator(c)
		pe := protocolErr(t, mustFail(v, baseParams()))
		assert.Equal(t, ErrorInvalidRequest, pe.Kind)
		assert.False(t, pe.RedirectCapable)

		p := baseParams()
		p.Set("request_uri", RequestURIPrefix+"abc")
		_, err := v.ValidateRequested(context.Background(), p)
		require.NoError(t, err)
	})
}

func TestParseAuthorizeRequest_Shapes(t *testing.T) {
	v := newTestValidator(testClient())

	t.Run("max_age must be a non-negative integer", func(t *testing.T) {
		for _, bad := range []string{"abc", "-1", "1.5"} {
			p := baseParams()
			p.Set("max_age", bad)
			pe := protocolErr(t, mustFail(v, p))
			assert.Equal(t, ErrorInvalidRequest, pe.Kind, "max_age=%s", bad)
		}
		p := baseParams()
		p.Set("max_age", "300")
		res, err := v.ValidateRequested(context.Background(), p)
		require.NoError(t, err)
		require.NotNil(t, res.Request.MaxAge)
		assert.Equal(t, 5*time.Minute, *res.Request.MaxAge)
	})

	t.Run("resource may repeat", func(t *testing.T) {
		p := baseParams()
		p["resource"] = []string{"https://api.example/inventory", "https://api.example/billing"}
		res, err := v.ValidateRequested(context.Background(), p)
		require.NoError(t, err)
		assert.Len(t, res.Request.Resources, 2)
	})

	t.Run("scope splits on any whitespace", func(t *testing.T) {
		p := baseParams()
		p.Set("scope", "openid\tprofile")
		res, err := v.ValidateRequested(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, []string{"openid", "profile"}, res.Scopes.ValidScopes)
	})

	t.Run("raw parameters preserved", func(t *testing.T) {
		p := baseParams()
		p.Set("ui_locales", "en-US")
		res, err := v.ValidateRequested(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, "en-US", res.Request.UILocales)
		assert.Equal(t, strings.Join(p["scope"], " "), res.Request.Raw["scope"])
	})
}

func mustFail(v *AuthorizeRequestValidator, p url.Values) error {
	_, err := v.ValidateRequested(context.Background(), p)
	return err
}
