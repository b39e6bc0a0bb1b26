package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/signet/internal/oidc"
	tokens "github.com/dropDatabas3/signet/internal/security/token"
)

// CodeStore persists authorization codes in the authorization_codes table,
// keyed by the SHA-256 of the opaque value.
//
// Consume is a conditional UPDATE on the consumed flag: the row stays behind
// as a tombstone so a replay against an already-redeemed code is observable
// (and triggers the revocation cascade) until background cleanup drops it.
type CodeStore struct{ store *Store }

// NewCodeStore returns a code store over the shared pg store.
func NewCodeStore(s *Store) *CodeStore { return &CodeStore{store: s} }

func (s *CodeStore) Store(ctx context.Context, code *oidc.AuthorizationCode) error {
	const q = `
		INSERT INTO authorization_codes
			(key, client_id, subject_id, session_id, redirect_uri, scopes,
			 code_challenge, code_challenge_method, nonce, claims, properties,
			 created_at, expires_at, is_consumed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,false)`
	_, err := s.store.pool.Exec(ctx, q,
		tokens.SHA256Base64URL(code.Code),
		code.ClientID,
		nullable(code.SubjectID),
		nullable(code.SessionID),
		nullable(code.RedirectURI),
		code.Scopes,
		nullable(code.CodeChallenge),
		nullable(code.CodeChallengeMethod),
		nullable(code.Nonce),
		code.Claims,
		code.Properties,
		code.CreatedAt,
		code.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert authorization code: %w", err)
	}
	return nil
}

func (s *CodeStore) Get(ctx context.Context, code string) (*oidc.AuthorizationCode, error) {
	const q = `
		SELECT client_id, subject_id, session_id, redirect_uri, scopes,
		       code_challenge, code_challenge_method, nonce, claims, properties,
		       created_at, expires_at, is_consumed, consumed_at
		FROM authorization_codes
		WHERE key = $1`
	var (
		out                                      oidc.AuthorizationCode
		subject, session, redirect, chal, method *string
		nonce                                    *string
	)
	err := s.store.pool.QueryRow(ctx, q, tokens.SHA256Base64URL(code)).Scan(
		&out.ClientID, &subject, &session, &redirect, &out.Scopes,
		&chal, &method, &nonce, &out.Claims, &out.Properties,
		&out.CreatedAt, &out.ExpiresAt, &out.IsConsumed, &out.ConsumedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oidc.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select authorization code: %w", err)
	}
	out.Code = code
	out.SubjectID = deref(subject)
	out.SessionID = deref(session)
	out.RedirectURI = deref(redirect)
	out.CodeChallenge = deref(chal)
	out.CodeChallengeMethod = deref(method)
	out.Nonce = deref(nonce)
	return &out, nil
}

func (s *CodeStore) Consume(ctx context.Context, code string) (bool, error) {
	// Compare-and-update on the consumed flag; RowsAffected tells exactly
	// one concurrent caller it won.
	const q = `
		UPDATE authorization_codes
		SET is_consumed = true, consumed_at = $2
		WHERE key = $1 AND is_consumed = false`
	ct, err := s.store.pool.Exec(ctx, q, tokens.SHA256Base64URL(code), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("consume authorization code: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *CodeStore) Remove(ctx context.Context, code string) error {
	const q = `DELETE FROM authorization_codes WHERE key = $1`
	if _, err := s.store.pool.Exec(ctx, q, tokens.SHA256Base64URL(code)); err != nil {
		return fmt.Errorf("delete authorization code: %w", err)
	}
	return nil
}

// RemoveExpired drops codes past their expiry, consumed tombstones included.
// Run from a background sweeper.
func (s *CodeStore) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM authorization_codes WHERE expires_at < $1`
	ct, err := s.store.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired authorization codes: %w", err)
	}
	return ct.RowsAffected(), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
