package redis

import (
	"context"
	"encoding/json"
	"fmt"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/signet/internal/oidc"
)

const grantKeyPrefix = "grant:"

// GrantStore is a redis oidc.PersistedGrantStore. RemoveAll scans the grant
// keyspace and filters; the cascade is a best-effort bulk delete, scanning is
// acceptable at that frequency.
type GrantStore struct {
	c *rdb.Client
}

// NewGrantStore returns a grant store over the given client.
func NewGrantStore(c *rdb.Client) *GrantStore {
	return &GrantStore{c: c}
}

func (s *GrantStore) Store(ctx context.Context, grant *oidc.PersistedGrant) error {
	b, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("marshal persisted grant: %w", err)
	}
	return s.c.Set(ctx, grantKeyPrefix+grant.Key, b, 0).Err()
}

func (s *GrantStore) Get(ctx context.Context, key string) (*oidc.PersistedGrant, error) {
	b, err := s.c.Get(ctx, grantKeyPrefix+key).Bytes()
	if err == rdb.Nil {
		return nil, oidc.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get persisted grant: %w", err)
	}
	var g oidc.PersistedGrant
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("decode persisted grant: %w", err)
	}
	return &g, nil
}

func (s *GrantStore) Remove(ctx context.Context, key string) error {
	if err := s.c.Del(ctx, grantKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("remove persisted grant: %w", err)
	}
	return nil
}

func (s *GrantStore) RemoveAll(ctx context.Context, filter oidc.GrantFilter) error {
	iter := s.c.Scan(ctx, 0, grantKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		b, err := s.c.Get(ctx, key).Bytes()
		if err == rdb.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("scan persisted grants: %w", err)
		}
		var g oidc.PersistedGrant
		if err := json.Unmarshal(b, &g); err != nil {
			continue
		}
		if grantMatches(&g, filter) {
			if err := s.c.Del(ctx, key).Err(); err != nil {
				return fmt.Errorf("remove persisted grant: %w", err)
			}
		}
	}
	return iter.Err()
}

func grantMatches(g *oidc.PersistedGrant, f oidc.GrantFilter) bool {
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
