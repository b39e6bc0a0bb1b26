// Package jwt is the signing collaborator: it turns grant results into
// signed tokens with the active Ed25519 key. Key management and claims
// policy beyond the standard set stay out of the grant engine.
package jwt

import (
	"crypto/ed25519"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer signs access and ID tokens with the active key.
type Issuer struct {
	Iss       string
	Keys      *KeySet
	AccessTTL time.Duration
}

// NewIssuer returns an issuer for the given issuer URL and key set.
func NewIssuer(iss string, keys *KeySet) *Issuer {
	return &Issuer{Iss: iss, Keys: keys, AccessTTL: 15 * time.Minute}
}

// Keyfunc returns a jwt.Keyfunc resolving the public key by kid, falling back
// to the active key.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		return ed25519.PublicKey(i.Keys.Pub), nil
	}
}

// IssueAccess signs an access token: standard claims plus extra flat claims.
func (i *Issuer) IssueAccess(sub, aud string, ttl time.Duration, extra map[string]any) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = i.AccessTTL
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"aud": aud,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	if sub != "" {
		claims["sub"] = sub
	}
	for k, v := range extra {
		claims[k] = v
	}
	signed, err := i.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueIDToken signs an OIDC ID token.
func (i *Issuer) IssueIDToken(sub, aud string, extra map[string]any) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"aud": aud,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	signed, err := i.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (i *Issuer) sign(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.Keys.KID
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.Keys.Priv)
}
