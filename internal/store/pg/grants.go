package pg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/signet/internal/oidc"
)

// GrantStore persists durable grants (refresh tokens, consents) in the
// persisted_grants table.
type GrantStore struct{ store *Store }

// NewGrantStore returns a grant store over the shared pg store.
func NewGrantStore(s *Store) *GrantStore { return &GrantStore{store: s} }

func (s *GrantStore) Store(ctx context.Context, grant *oidc.PersistedGrant) error {
	const q = `
		INSERT INTO persisted_grants (key, grant_type, subject_id, client_id, session_id, data)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data`
	_, err := s.store.pool.Exec(ctx, q,
		grant.Key, grant.Type,
		nullable(grant.SubjectID), grant.ClientID, nullable(grant.SessionID),
		grant.Data,
	)
	if err != nil {
		return fmt.Errorf("insert persisted grant: %w", err)
	}
	return nil
}

func (s *GrantStore) Get(ctx context.Context, key string) (*oidc.PersistedGrant, error) {
	const q = `
		SELECT key, grant_type, subject_id, client_id, session_id, data
		FROM persisted_grants WHERE key = $1`
	var (
		out              oidc.PersistedGrant
		subject, session *string
	)
	err := s.store.pool.QueryRow(ctx, q, key).Scan(
		&out.Key, &out.Type, &subject, &out.ClientID, &session, &out.Data,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oidc.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select persisted grant: %w", err)
	}
	out.SubjectID = deref(subject)
	out.SessionID = deref(session)
	return &out, nil
}

func (s *GrantStore) Remove(ctx context.Context, key string) error {
	const q = `DELETE FROM persisted_grants WHERE key = $1`
	if _, err := s.store.pool.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("delete persisted grant: %w", err)
	}
	return nil
}

// RemoveAll deletes every grant matching the filter; empty fields match
// everything.
func (s *GrantStore) RemoveAll(ctx context.Context, filter oidc.GrantFilter) error {
	var (
		where []string
		args  []any
	)
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		where = append(where, col+" = $"+strconv.Itoa(len(args)))
	}
	add("subject_id", filter.SubjectID)
	add("client_id", filter.ClientID)
	add("session_id", filter.SessionID)

	q := "DELETE FROM persisted_grants"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if _, err := s.store.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("delete persisted grants: %w", err)
	}
	return nil
}
