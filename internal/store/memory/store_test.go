package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/signet/internal/oidc"
)

func TestCodeStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewCodeStore()

	now := time.Now().UTC()
	code := &oidc.AuthorizationCode{
		Code:      "opaque-code",
		ClientID:  "web",
		SubjectID: "user-1",
		Scopes:    []string{"openid"},
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
	require.NoError(t, s.Store(ctx, code))

	got, err := s.Get(ctx, "opaque-code")
	require.NoError(t, err)
	assert.Equal(t, "web", got.ClientID)

	// Get hands out copies, never the stored entry
	got.ClientID = "tampered"
	again, err := s.Get(ctx, "opaque-code")
	require.NoError(t, err)
	assert.Equal(t, "web", again.ClientID)

	_, err = s.Get(ctx, "unknown")
	assert.Equal(t, oidc.ErrNotFound, err)
}

func TestCodeStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	s := NewCodeStore()
	require.NoError(t, s.Store(ctx, &oidc.AuthorizationCode{Code: "c1"}))

	ok, err := s.Consume(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	// The entry survives as a tombstone so a replay is distinguishable
	// from an unknown code.
	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.IsConsumed)
	assert.NotNil(t, got.ConsumedAt)

	require.NoError(t, s.Remove(ctx, "c1"))
	_, err = s.Get(ctx, "c1")
	assert.Equal(t, oidc.ErrNotFound, err)
	assert.Equal(t, 0, s.Len())
}

func TestCodeStore_ConsumeConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewCodeStore()
	require.NoError(t, s.Store(ctx, &oidc.AuthorizationCode{Code: "c1"}))

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Consume(ctx, "c1")
			assert.NoError(t, err)
			if ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)
	assert.Len(t, wins, 1)
}

func TestCodeStore_SeedConsumed(t *testing.T) {
	ctx := context.Background()
	s := NewCodeStore()
	now := time.Now()
	s.Seed(&oidc.AuthorizationCode{Code: "c1", IsConsumed: true, ConsumedAt: &now})

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.IsConsumed)

	ok, err := s.Consume(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeStore_RemoveAbsent(t *testing.T) {
	s := NewCodeStore()
	assert.NoError(t, s.Remove(context.Background(), "absent"))
}

func TestCodeStore_ContextCancelled(t *testing.T) {
	s := NewCodeStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Store(ctx, &oidc.AuthorizationCode{Code: "c1"}))
	_, err := s.Get(ctx, "c1")
	assert.Error(t, err)
	_, err = s.Consume(ctx, "c1")
	assert.Error(t, err)
}

func seedGrants(t *testing.T, s *GrantStore) {
	t.Helper()
	ctx := context.Background()
	for _, g := range []*oidc.PersistedGrant{
		{Key: "g1", Type: oidc.GrantTypeRefreshToken, SubjectID: "u1", ClientID: "web", SessionID: "s1"},
		{Key: "g2", Type: oidc.GrantTypeRefreshToken, SubjectID: "u1", ClientID: "web", SessionID: "s2"},
		{Key: "g3", Type: oidc.GrantTypeRefreshToken, SubjectID: "u1", ClientID: "cli", SessionID: "s1"},
		{Key: "g4", Type: oidc.GrantTypeRefreshToken, SubjectID: "u2", ClientID: "web", SessionID: "s9"},
	} {
		require.NoError(t, s.Store(ctx, g))
	}
}

func TestGrantStore_RemoveAllFilters(t *testing.T) {
	ctx := context.Background()

	t.Run("subject and client and session", func(t *testing.T) {
		s := NewGrantStore()
		seedGrants(t, s)
		require.NoError(t, s.RemoveAll(ctx, oidc.GrantFilter{SubjectID: "u1", ClientID: "web", SessionID: "s1"}))
		_, err := s.Get(ctx, "g1")
		assert.Equal(t, oidc.ErrNotFound, err)
		for _, k := range []string{"g2", "g3", "g4"} {
			_, err := s.Get(ctx, k)
			assert.NoError(t, err, k)
		}
	})

	t.Run("subject only", func(t *testing.T) {
		s := NewGrantStore()
		seedGrants(t, s)
		require.NoError(t, s.RemoveAll(ctx, oidc.GrantFilter{SubjectID: "u1"}))
		assert.Equal(t, 1, s.Count(oidc.GrantFilter{}))
		_, err := s.Get(ctx, "g4")
		assert.NoError(t, err)
	})

	t.Run("empty filter removes everything", func(t *testing.T) {
		s := NewGrantStore()
		seedGrants(t, s)
		require.NoError(t, s.RemoveAll(ctx, oidc.GrantFilter{}))
		assert.Equal(t, 0, s.Count(oidc.GrantFilter{}))
	})
}

func TestGrantStore_RemoveByKey(t *testing.T) {
	ctx := context.Background()
	s := NewGrantStore()
	seedGrants(t, s)

	require.NoError(t, s.Remove(ctx, "g2"))
	_, err := s.Get(ctx, "g2")
	assert.Equal(t, oidc.ErrNotFound, err)
	assert.Equal(t, 3, s.Count(oidc.GrantFilter{}))

	// absent keys are a no-op
	assert.NoError(t, s.Remove(ctx, "g2"))
}

func TestGrantStore_GetCopies(t *testing.T) {
	ctx := context.Background()
	s := NewGrantStore()
	require.NoError(t, s.Store(ctx, &oidc.PersistedGrant{Key: "g1", ClientID: "web"}))

	got, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	got.ClientID = "tampered"

	again, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "web", again.ClientID)
}

func TestClientStore_Lookup(t *testing.T) {
	ctx := context.Background()
	s := NewClientStore(
		&oidc.Client{ClientID: "web", Enabled: true},
		&oidc.Client{ClientID: "cli", Enabled: true},
	)

	c, err := s.FindClientByID(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, "web", c.ClientID)

	_, err = s.FindClientByID(ctx, "nope")
	assert.Equal(t, oidc.ErrNotFound, err)

	s.Add(&oidc.Client{ClientID: "spa", Enabled: true})
	c, err = s.FindClientByID(ctx, "spa")
	require.NoError(t, err)
	assert.Equal(t, "spa", c.ClientID)
}
