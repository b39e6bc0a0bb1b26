// Package profile provides the claims and liveness collaborator backed by a
// static user registry from the config file. Deployments with a real
// directory swap in their own implementation of the same interface.
package profile

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/signet/internal/oidc"
)

// ErrBadCredentials is returned by Authenticate for unknown users and wrong
// passwords alike.
var ErrBadCredentials = errors.New("bad credentials")

// User is one registered subject.
type User struct {
	SubjectID    string
	Username     string
	PasswordHash string
	Active       bool
	// Claims maps claim type to value; scope filtering happens at read time.
	Claims map[string]string
}

// Static serves profiles from an in-memory user set.
type Static struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byLogin map[string]*User
}

// NewStatic builds a static profile service from the given users.
func NewStatic(users []User) *Static {
	s := &Static{
		byID:    make(map[string]*User, len(users)),
		byLogin: make(map[string]*User, len(users)),
	}
	for i := range users {
		u := users[i]
		s.byID[u.SubjectID] = &u
		if u.Username != "" {
			s.byLogin[u.Username] = &u
		}
	}
	return s
}

// IsActive reports whether the subject exists and is not disabled.
func (s *Static) IsActive(ctx context.Context, req oidc.IsActiveRequest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[req.SubjectID]
	return ok && u.Active, nil
}

// ProfileData returns the subject's claims filtered by the granted scopes.
// The profile and email scopes gate their claim families; everything else in
// the user's claim map passes through.
func (s *Static) ProfileData(ctx context.Context, req oidc.ProfileDataRequest) ([]oidc.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[req.SubjectID]
	if !ok {
		return nil, nil
	}
	scopes := make(map[string]bool, len(req.Scopes))
	for _, sc := range req.Scopes {
		scopes[sc] = true
	}
	var out []oidc.Claim
	for t, v := range u.Claims {
		switch t {
		case "name", "preferred_username":
			if !scopes["profile"] {
				continue
			}
		case "email", "email_verified":
			if !scopes["email"] {
				continue
			}
		}
		out = append(out, oidc.Claim{Type: t, Value: v})
	}
	return out, nil
}

// Authenticate verifies a username/password pair and returns the subject ID.
func (s *Static) Authenticate(ctx context.Context, username, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	u, ok := s.byLogin[username]
	s.mu.RUnlock()
	if !ok || !u.Active {
		return "", ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrBadCredentials
	}
	return u.SubjectID, nil
}

// Disable flips a user inactive. Used by tests exercising liveness failures.
func (s *Static) Disable(subjectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[subjectID]; ok {
		u.Active = false
	}
}
