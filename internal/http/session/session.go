// Package session implements the cookie-backed end-user session the
// authorize endpoint authenticates against. Sessions live in the shared
// cache; the cookie carries only an opaque token whose hash is the cache
// key.
package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/signet/internal/cache"
	tokens "github.com/dropDatabas3/signet/internal/security/token"
)

const keyPrefix = "sess:"

// Session is the authenticated end-user state.
type Session struct {
	SubjectID string    `json:"sub"`
	SessionID string    `json:"sid"`
	AuthTime  time.Time `json:"auth_time"`
}

// Manager issues and resolves sessions.
type Manager struct {
	cache      cache.Cache
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewManager returns a session manager over the given cache. secure controls
// the cookie's Secure attribute; keep it on outside local development.
func NewManager(c cache.Cache, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{cache: c, cookieName: cookieName, ttl: ttl, secure: secure}
}

// Issue creates a session for the subject and sets the cookie.
func (m *Manager) Issue(w http.ResponseWriter, subjectID string) (*Session, error) {
	tok, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	s := &Session{
		SubjectID: subjectID,
		SessionID: uuid.NewString(),
		AuthTime:  time.Now().UTC(),
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	m.cache.Set(keyPrefix+tokens.SHA256Base64URL(tok), b, m.ttl)

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// Resolve returns the session bound to the request cookie, or nil when there
// is none or it expired.
func (m *Manager) Resolve(r *http.Request) *Session {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	b, ok := m.cache.Get(keyPrefix + tokens.SHA256Base64URL(c.Value))
	if !ok {
		return nil
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	return &s
}

// Clear drops the session and expires the cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		m.cache.Delete(keyPrefix + tokens.SHA256Base64URL(c.Value))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
