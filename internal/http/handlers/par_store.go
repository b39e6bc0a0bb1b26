package handlers

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/signet/internal/cache"
	"github.com/dropDatabas3/signet/internal/oidc"
	tokens "github.com/dropDatabas3/signet/internal/security/token"
)

const parKeyPrefix = "par:"

// PARStore keeps pushed authorization payloads in the shared cache until the
// client redeems them at the authorize endpoint (RFC 9126). Entries are
// single use.
type PARStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewPARStore returns a PAR store with the given entry TTL.
func NewPARStore(c cache.Cache, ttl time.Duration) *PARStore {
	return &PARStore{cache: c, ttl: ttl}
}

// TTL returns the entry lifetime, exposed so the endpoint can report
// expires_in.
func (s *PARStore) TTL() time.Duration { return s.ttl }

// Push stores the raw authorize parameters and returns the request_uri.
func (s *PARStore) Push(params url.Values) (string, error) {
	id, err := tokens.GenerateOpaqueToken(24)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	s.cache.Set(parKeyPrefix+id, b, s.ttl)
	return oidc.RequestURIPrefix + id, nil
}

// Redeem returns the parameters stored under requestURI and removes them.
// false when the URI is malformed, unknown or already used.
func (s *PARStore) Redeem(requestURI string) (url.Values, bool) {
	if !strings.HasPrefix(requestURI, oidc.RequestURIPrefix) {
		return nil, false
	}
	id := strings.TrimPrefix(requestURI, oidc.RequestURIPrefix)
	// GetDel keeps redemption one-shot even under concurrent attempts.
	b, ok := s.cache.GetDel(parKeyPrefix + id)
	if !ok {
		return nil, false
	}
	var params url.Values
	if err := json.Unmarshal(b, &params); err != nil {
		return nil, false
	}
	return params, true
}
