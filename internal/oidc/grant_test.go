package oidc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCodeStore mirrors the semantics of the real in-memory store: keyed by
// the raw code, mutex-guarded check-and-set consume leaving a tombstone.
type fakeCodeStore struct {
	mu    sync.Mutex
	codes map[string]*AuthorizationCode
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{codes: make(map[string]*AuthorizationCode)}
}

func (s *fakeCodeStore) Store(ctx context.Context, code *AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *code
	s.codes[code.Code] = &cp
	return nil
}

func (s *fakeCodeStore) Get(ctx context.Context, code string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeCodeStore) Consume(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok || c.IsConsumed {
		return false, nil
	}
	now := time.Now()
	c.IsConsumed = true
	c.ConsumedAt = &now
	return true, nil
}

func (s *fakeCodeStore) Remove(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
	return nil
}

func (s *fakeCodeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

type fakeGrantStore struct {
	mu     sync.Mutex
	grants map[string]*PersistedGrant
}

func newFakeGrantStore() *fakeGrantStore {
	return &fakeGrantStore{grants: make(map[string]*PersistedGrant)}
}

func (s *fakeGrantStore) Store(ctx context.Context, g *PersistedGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.grants[g.Key] = &cp
	return nil
}

func (s *fakeGrantStore) Get(ctx context.Context, key string) (*PersistedGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *fakeGrantStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, key)
	return nil
}

func (s *fakeGrantStore) RemoveAll(ctx context.Context, f GrantFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, g := range s.grants {
		if f.SubjectID != "" && g.SubjectID != f.SubjectID {
			continue
		}
		if f.ClientID != "" && g.ClientID != f.ClientID {
			continue
		}
		if f.SessionID != "" && g.SessionID != f.SessionID {
			continue
		}
		delete(s.grants, k)
	}
	return nil
}

func (s *fakeGrantStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}

type fakeProfile struct {
	inactive map[string]bool
	claims   []Claim
}

func (p *fakeProfile) IsActive(ctx context.Context, req IsActiveRequest) (bool, error) {
	return !p.inactive[req.SubjectID], nil
}

func (p *fakeProfile) ProfileData(ctx context.Context, req ProfileDataRequest) ([]Claim, error) {
	return p.claims, nil
}

type grantFixture struct {
	codes   *fakeCodeStore
	grants  *fakeGrantStore
	profile *fakeProfile
	handler *AuthorizationCodeGrantHandler
	client  *Client
}

func newGrantFixture() *grantFixture {
	f := &grantFixture{
		codes:   newFakeCodeStore(),
		grants:  newFakeGrantStore(),
		profile: &fakeProfile{inactive: map[string]bool{}},
		client:  testClient(),
	}
	f.handler = NewAuthorizationCodeGrantHandler(GrantHandlerDeps{
		Codes:   f.codes,
		Grants:  f.grants,
		PKCE:    NewPKCEValidator(),
		Profile: f.profile,
	})
	return f
}

func (f *grantFixture) seedCode(mutate func(*AuthorizationCode)) (*AuthorizationCode, string) {
	verifier := GenerateCodeVerifier()
	challenge, _ := GenerateCodeChallenge(verifier, CodeChallengeMethodS256)
	now := time.Now().UTC()
	code := &AuthorizationCode{
		Code:                "raw-code-1",
		ClientID:            f.client.ClientID,
		SubjectID:           "user-1",
		SessionID:           "sess-1",
		RedirectURI:         "https://app.example/cb",
		Scopes:              []string{"openid", "profile"},
		CodeChallenge:       challenge,
		CodeChallengeMethod: CodeChallengeMethodS256,
		Nonce:               "n-1",
		CreatedAt:           now,
		ExpiresAt:           now.Add(5 * time.Minute),
	}
	if mutate != nil {
		mutate(code)
	}
	_ = f.codes.Store(context.Background(), code)
	return code, verifier
}

func TestGrantHandler_HappyPath(t *testing.T) {
	f := newGrantFixture()
	f.profile.claims = []Claim{{Type: "name", Value: "Ada"}}
	code, verifier := f.seedCode(func(c *AuthorizationCode) {
		c.Claims = map[string]string{"tier": "gold"}
	})

	res, err := f.handler.Handle(context.Background(), TokenRequest{
		Code:         code.Code,
		Client:       f.client,
		RedirectURI:  code.RedirectURI,
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", res.SubjectID)
	assert.Equal(t, "sess-1", res.SessionID)
	assert.Equal(t, "web", res.ClientID)
	assert.Equal(t, []string{"openid", "profile"}, res.Scopes)

	got := map[string]string{}
	for _, c := range res.Claims {
		got[c.Type] = c.Value
	}
	assert.Equal(t, "n-1", got["nonce"])
	assert.Equal(t, "Ada", got["name"])
	assert.Equal(t, "gold", got["tier"])

	// consumed: the entry stays behind as a tombstone so a later replay is
	// recognizable as such, not mistaken for an unknown code
	stored, err := f.codes.Get(context.Background(), code.Code)
	require.NoError(t, err)
	assert.True(t, stored.IsConsumed)

	_, err = f.handler.Handle(context.Background(), TokenRequest{
		Code: code.Code, Client: f.client, RedirectURI: code.RedirectURI, CodeVerifier: verifier,
	})
	pe := protocolErr(t, err)
	assert.Equal(t, ErrorInvalidGrant, pe.Kind)
	assert.Contains(t, pe.Description, "already been used")
	// the replay triggered the cascade, which drops the tombstone
	assert.Equal(t, 0, f.codes.len())
}

func TestGrantHandler_MissingAndUnknownCodes(t *testing.T) {
	f := newGrantFixture()

	_, err := f.handler.Handle(context.Background(), TokenRequest{Client: f.client})
	assert.Equal(t, ErrorInvalidGrant, protocolErr(t, err).Kind)

	_, err = f.handler.Handle(context.Background(), TokenRequest{Code: "nope", Client: f.client})
	assert.Equal(t, ErrorInvalidGrant, protocolErr(t, err).Kind)
}

func TestGrantHandler_Expiration(t *testing.T) {
	f := newGrantFixture()
	code, verifier := f.seedCode(func(c *AuthorizationCode) {
		c.ExpiresAt = time.Now().Add(-time.Second)
	})

	_, err := f.handler.Handle(context.Background(), TokenRequest{
		Code: code.Code, Client: f.client, RedirectURI: code.RedirectURI, CodeVerifier: verifier,
	})
	pe := protocolErr(t, err)
	assert.Equal(t, ErrorInvalidGrant, pe.Kind)
	assert.Contains(t, pe.Description, "expired")
	// expired codes are removed eagerly
	assert.Equal(t, 0, f.codes.len())
}

func TestGrantHandler_ExpirationBoundary(t *testing.T) {
	f := newGrantFixture()
	code, verifier := f.seedCode(func(c *AuthorizationCode) {
		c.ExpiresAt = time.Now().Add(200 * time.Millisecond)
	})

	// not yet expired
	_, err := f.handler.Handle(context.Background(), TokenRequest{
		Code: code.Code, Client: f.client, RedirectURI: code.RedirectURI, CodeVerifier: verifier,
	})
	require.NoError(t, err)
}

func TestGrantHandler_ClientBinding(t *testing.T) {
	f := newGrantFixture()

	t.Run("nil client", func(t *testing.T) {
		code, verifier := f.seedCode(nil)
		_, err := f.handler.Handle(context.Background(), TokenRequest{
			Code: code.Code, RedirectURI: code.RedirectURI, CodeVerifier: verifier,
		})
		assert.Equal(t, ErrorInvalidGrant, protocolErr(t, err).Kind)
	})

	t.Run("different client", func(t *testing.T) {
		code, verifier := f.seedCode(nil)
		other := testClient()
		other.ClientID = "other"
		_, err := f.handler.Handle(context.Background(), TokenRequest{
			Code: code.Code, Client: other, RedirectURI: code.RedirectURI, CodeVerifier: verifier,
		})
		pe := protocolErr(t, err)
		assert.Equal(t, ErrorInvalidGrant, pe.Kind)
		assert.Contains(t, pe.Description, "different client")
	})
}

func TestGrantHandler_RedirectBinding(t *testing.T) {
	f := newGrantFixture()

	t.Run("mismatch", func(t *testing.T) {
		code, verifier := f.seedCode(nil)
		_, err := f.handler.Handle(context.Background(), TokenRequest{
			Code: code.Code, Client: f.client, RedirectURI: "https://app.example/cb/", CodeVerifier: verifier,
		})
		assert.Equal(t, ErrorInvalidGrant, protocolErr(t, err).Kind)
	})

	t.Run("absent at issuance redeemable without one", func(t *testing.T) {
		code, verifier := f.seedCode(func(c *AuthorizationCode) {
			c.Code = "raw-code-2"
			c.RedirectURI = ""
		})
		_, err := f.handler.Handle(context.Background(), TokenRequest{
			Code: code.Code, Client: f.client, CodeVerifier: verifier,
		})
		require.NoError(t, err)
	})

	t.Run("present at issuance demands the same value", func(t *testing.T) {
		code, verifier := f.seedCode(func(c *AuthorizationCode) { c.Code = "raw-code-3" })
		_, err := f.handler.Handle(context.Background(), TokenRequest{
			Code: code.Code, Client: f.client, CodeVerifier: verifier,
		})
		assert.Equal(t, ErrorInvalidGrant, protocolErr(t, err).Kind)
	})
}

func TestGrantHandler_PKCE(t *testing.T) {
	t.Run("required but code has no challenge", func(t *testing.T) {
		f := newGrantFixture()
		code, _ := f.seedCode(func(c *AuthorizationCode) {
			c.CodeChallenge = ""
			c.CodeChallengeMethod = ""
		})
		_, err := f.handler.Handle(context.Background(), TokenRequest{
			Code: code.Code, Client: f.client, RedirectURI: code.RedirectURI,
		})
		pe := protocolErr(t, err)
		assert.Contains(t, pe.Description, "PKCE")
	})

	t.Run("wrong verifier", func(t *testing.T) {
		f := newGrantFixture()
		code, _ := f.seedCode(nil)
		_, err := f.handler.Handle(context.Background(), TokenRequest{
			Code: code.Code, Client: f.client, RedirectURI: code.RedirectURI,
			CodeVerifier: GenerateCodeVerifier(),
		})
		assert.Equal(t, ErrorInvalidGrant, protocolErr(t, err).Kind)
	})

	t.Run("challenge validated even when client no longer requires pkce", func(t *testing.T) {
		f := newGrantFixture()
		f.client.RequirePKCE = false
		code, _ := f.seedCode(nil)
		_, err := f.handler.Handle(context.Background(), TokenRequest{
			Code: code.Code, Client: f.client, RedirectURI: code.RedirectURI,
			CodeVerifier: GenerateCodeVerifier(),
		})
		assert.Equal(t, ErrorInvalidGrant, protocolErr(t, err).Kind)
	})
}

func TestGrantHandler_SubjectLiveness(t *testing.T) {
	f := newGrantFixture()
	f.profile.inactive["user-1"] = true
	code, verifier := f.seedCode(nil)

	_, err := f.handler.Handle(context.Background(), TokenRequest{
		Code: code.Code, Client: f.client, RedirectURI: code.RedirectURI, CodeVerifier: verifier,
	})
	pe := protocolErr(t, err)
	assert.Equal(t, ErrorInvalidGrant, pe.Kind)
	assert.Contains(t, pe.Description, "not active")
}

func TestGrantHandler_ReplayRevocationCascade(t *testing.T) {
	f := newGrantFixture()
	code, verifier := f.seedCode(func(c *AuthorizationCode) {
		now := time.Now()
		c.IsConsumed = true
		c.ConsumedAt = &now
	})

	// grants issued off this code's back, plus one unrelated grant
	_ = f.grants.Store(context.Background(), &PersistedGrant{
		Key: "rt-1", Type: GrantTypeRefreshToken,
		SubjectID: "user-1", ClientID: "web", SessionID: "sess-1",
	})
	_ = f.grants.Store(context.Background(), &PersistedGrant{
		Key: "rt-2", Type: GrantTypeRefreshToken,
		SubjectID: "user-2", ClientID: "web", SessionID: "sess-9",
	})

	_, err := f.handler.Handle(context.Background(), TokenRequest{
		Code: code.Code, Client: f.client, RedirectURI: code.RedirectURI, CodeVerifier: verifier,
	})
	pe := protocolErr(t, err)
	assert.Equal(t, ErrorInvalidGrant, pe.Kind)
	assert.Contains(t, pe.Description, "already been used")

	// cascade completed before the response: code gone, matching grant gone,
	// unrelated grant untouched
	assert.Equal(t, 0, f.codes.len())
	_, err = f.grants.Get(context.Background(), "rt-1")
	assert.Equal(t, ErrNotFound, err)
	_, err = f.grants.Get(context.Background(), "rt-2")
	assert.NoError(t, err)
}

func TestGrantHandler_AtMostOnceUnderConcurrency(t *testing.T) {
	f := newGrantFixture()
	code, verifier := f.seedCode(nil)

	const n = 16
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.handler.Handle(context.Background(), TokenRequest{
				Code: code.Code, Client: f.client, RedirectURI: code.RedirectURI, CodeVerifier: verifier,
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.Equal(t, ErrorInvalidGrant, protocolErr(t, err).Kind)
	}
	assert.Equal(t, 1, successes, "exactly one of %d concurrent redemptions may succeed", n)
}

func TestGrantHandler_CodeWithoutSubject(t *testing.T) {
	f := newGrantFixture()
	// liveness must not run for subject-less codes
	f.profile.inactive[""] = true
	code, verifier := f.seedCode(func(c *AuthorizationCode) {
		c.SubjectID = ""
		c.SessionID = ""
	})

	res, err := f.handler.Handle(context.Background(), TokenRequest{
		Code: code.Code, Client: f.client, RedirectURI: code.RedirectURI, CodeVerifier: verifier,
	})
	require.NoError(t, err)
	assert.Empty(t, res.SubjectID)
}
