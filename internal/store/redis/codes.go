// Package redis provides redis-backed store implementations. Entries are
// keyed by the SHA-256 of the opaque value and serialized as JSON, in the
// same layout the in-memory stores use.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/signet/internal/oidc"
	tokens "github.com/dropDatabas3/signet/internal/security/token"
)

const codeKeyPrefix = "code:"

// CodeStore is a redis oidc.AuthorizationCodeStore. Consume is a Lua script
// that flips the consumed flag in place, so of N concurrent redemptions
// exactly one performs the transition and the entry stays behind as a
// tombstone until its TTL runs out. Replays of redeemed codes therefore stay
// observable, same as the pg store.
type CodeStore struct {
	c *rdb.Client
}

// consumeScript is the atomic check-and-flip. Key TTL is preserved so the
// tombstone expires when the code would have.
var consumeScript = rdb.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local rec = cjson.decode(v)
if rec.is_consumed then return 0 end
rec.is_consumed = true
rec.consumed_at = ARGV[1]
local ttl = redis.call('PTTL', KEYS[1])
redis.call('SET', KEYS[1], cjson.encode(rec))
if ttl > 0 then redis.call('PEXPIRE', KEYS[1], ttl) end
return 1
`)

// NewCodeStore returns a code store over the given client.
func NewCodeStore(c *rdb.Client) *CodeStore {
	return &CodeStore{c: c}
}

type codeRecord struct {
	ClientID            string            `json:"client_id"`
	SubjectID           string            `json:"subject_id,omitempty"`
	SessionID           string            `json:"session_id,omitempty"`
	RedirectURI         string            `json:"redirect_uri,omitempty"`
	Scopes              []string          `json:"scopes,omitempty"`
	CodeChallenge       string            `json:"code_challenge,omitempty"`
	CodeChallengeMethod string            `json:"code_challenge_method,omitempty"`
	Nonce               string            `json:"nonce,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	ExpiresAt           time.Time         `json:"expires_at"`
	IsConsumed          bool              `json:"is_consumed,omitempty"`
	ConsumedAt          *time.Time        `json:"consumed_at,omitempty"`
	Claims              map[string]string `json:"claims,omitempty"`
	Properties          map[string]string `json:"properties,omitempty"`
}

func toRecord(c *oidc.AuthorizationCode) codeRecord {
	return codeRecord{
		ClientID:            c.ClientID,
		SubjectID:           c.SubjectID,
		SessionID:           c.SessionID,
		RedirectURI:         c.RedirectURI,
		Scopes:              c.Scopes,
		CodeChallenge:       c.CodeChallenge,
		CodeChallengeMethod: c.CodeChallengeMethod,
		Nonce:               c.Nonce,
		CreatedAt:           c.CreatedAt,
		ExpiresAt:           c.ExpiresAt,
		IsConsumed:          c.IsConsumed,
		ConsumedAt:          c.ConsumedAt,
		Claims:              c.Claims,
		Properties:          c.Properties,
	}
}

func (r codeRecord) toCode(raw string) *oidc.AuthorizationCode {
	return &oidc.AuthorizationCode{
		Code:                raw,
		ClientID:            r.ClientID,
		SubjectID:           r.SubjectID,
		SessionID:           r.SessionID,
		RedirectURI:         r.RedirectURI,
		Scopes:              r.Scopes,
		CodeChallenge:       r.CodeChallenge,
		CodeChallengeMethod: r.CodeChallengeMethod,
		Nonce:               r.Nonce,
		CreatedAt:           r.CreatedAt,
		ExpiresAt:           r.ExpiresAt,
		IsConsumed:          r.IsConsumed,
		ConsumedAt:          r.ConsumedAt,
		Claims:              r.Claims,
		Properties:          r.Properties,
	}
}

func codeKey(code string) string {
	return codeKeyPrefix + tokens.SHA256Base64URL(code)
}

func (s *CodeStore) Store(ctx context.Context, code *oidc.AuthorizationCode) error {
	b, err := json.Marshal(toRecord(code))
	if err != nil {
		return fmt.Errorf("marshal authorization code: %w", err)
	}
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.c.Set(ctx, codeKey(code.Code), b, ttl).Err()
}

func (s *CodeStore) Get(ctx context.Context, code string) (*oidc.AuthorizationCode, error) {
	b, err := s.c.Get(ctx, codeKey(code)).Bytes()
	if err == rdb.Nil {
		return nil, oidc.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get authorization code: %w", err)
	}
	var rec codeRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode authorization code: %w", err)
	}
	return rec.toCode(code), nil
}

func (s *CodeStore) Consume(ctx context.Context, code string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := consumeScript.Run(ctx, s.c, []string{codeKey(code)}, now).Int()
	if err != nil {
		return false, fmt.Errorf("consume authorization code: %w", err)
	}
	return res == 1, nil
}

func (s *CodeStore) Remove(ctx context.Context, code string) error {
	return s.c.Del(ctx, codeKey(code)).Err()
}
