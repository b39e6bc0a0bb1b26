// Package memory provides in-process store implementations used in
// development and in tests. All of them key entries by the SHA-256 of the
// opaque value, matching the durable backends.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/signet/internal/oidc"
	tokens "github.com/dropDatabas3/signet/internal/security/token"
)

// CodeStore is an in-memory oidc.AuthorizationCodeStore. Consume is a
// mutex-guarded check-and-set so concurrent redemptions observe exactly one
// successful transition. Consumed entries stay behind as tombstones until
// Remove or expiry, so replays of redeemed codes remain observable.
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]*oidc.AuthorizationCode
}

// NewCodeStore returns an empty code store.
func NewCodeStore() *CodeStore {
	return &CodeStore{codes: make(map[string]*oidc.AuthorizationCode)}
}

func (s *CodeStore) Store(ctx context.Context, code *oidc.AuthorizationCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *code
	s.codes[tokens.SHA256Base64URL(code.Code)] = &cp
	return nil
}

func (s *CodeStore) Get(ctx context.Context, code string) (*oidc.AuthorizationCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[tokens.SHA256Base64URL(code)]
	if !ok {
		return nil, oidc.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *CodeStore) Consume(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tokens.SHA256Base64URL(code)
	c, ok := s.codes[key]
	if !ok || c.IsConsumed {
		return false, nil
	}
	now := time.Now()
	c.IsConsumed = true
	c.ConsumedAt = &now
	return true, nil
}

func (s *CodeStore) Remove(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, tokens.SHA256Base64URL(code))
	return nil
}

// Seed inserts a code verbatim, consumed state included. Test helper.
func (s *CodeStore) Seed(code *oidc.AuthorizationCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *code
	s.codes[tokens.SHA256Base64URL(code.Code)] = &cp
}

// Len reports the number of live entries. Test helper.
func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
