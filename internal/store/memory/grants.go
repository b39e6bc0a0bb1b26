package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/signet/internal/oidc"
)

// GrantStore is an in-memory oidc.PersistedGrantStore.
type GrantStore struct {
	mu     sync.Mutex
	grants map[string]*oidc.PersistedGrant
}

// NewGrantStore returns an empty grant store.
func NewGrantStore() *GrantStore {
	return &GrantStore{grants: make(map[string]*oidc.PersistedGrant)}
}

func (s *GrantStore) Store(ctx context.Context, grant *oidc.PersistedGrant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *grant
	s.grants[grant.Key] = &cp
	return nil
}

func (s *GrantStore) Get(ctx context.Context, key string) (*oidc.PersistedGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[key]
	if !ok {
		return nil, oidc.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *GrantStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, key)
	return nil
}

func (s *GrantStore) RemoveAll(ctx context.Context, filter oidc.GrantFilter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, g := range s.grants {
		if matches(g, filter) {
			delete(s.grants, k)
		}
	}
	return nil
}

func matches(g *oidc.PersistedGrant, f oidc.GrantFilter) bool {
	if f.SubjectID != "" && g.SubjectID != f.SubjectID {
		return false
	}
	if f.ClientID != "" && g.ClientID != f.ClientID {
		return false
	}
	if f.SessionID != "" && g.SessionID != f.SessionID {
		return false
	}
	return true
}

// Count reports how many grants match the filter. Test helper.
func (s *GrantStore) Count(filter oidc.GrantFilter) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, g := range s.grants {
		if matches(g, filter) {
			n++
		}
	}
	return n
}
