package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/signet/internal/oidc"
)

// ClientStore is an in-memory oidc.ClientStore, loaded once at startup from
// configuration.
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]*oidc.Client
}

// NewClientStore returns a store holding the given clients.
func NewClientStore(clients ...*oidc.Client) *ClientStore {
	m := make(map[string]*oidc.Client, len(clients))
	for _, c := range clients {
		m[c.ClientID] = c
	}
	return &ClientStore{clients: m}
}

func (s *ClientStore) FindClientByID(ctx context.Context, clientID string) (*oidc.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, oidc.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Add registers or replaces a client.
func (s *ClientStore) Add(c *oidc.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ClientID] = c
}
