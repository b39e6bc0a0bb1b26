package jwt

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "signet-keys.json")

	created, err := LoadOrCreate(path, "k-2026")
	require.NoError(t, err)
	assert.Equal(t, "k-2026", created.KID)
	assert.Equal(t, "EdDSA", created.Alg)

	loaded, err := LoadOrCreate(path, "ignored-on-load")
	require.NoError(t, err)
	assert.Equal(t, created.KID, loaded.KID)
	assert.Equal(t, created.Pub, loaded.Pub)
	assert.Equal(t, created.Priv, loaded.Priv)
}

func TestJWKSJSON(t *testing.T) {
	ks, err := NewEd25519("active")
	require.NoError(t, err)

	var doc struct {
		Keys []map[string]string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(ks.JWKSJSON(), &doc))
	require.Len(t, doc.Keys, 1)
	k := doc.Keys[0]
	assert.Equal(t, "OKP", k["kty"])
	assert.Equal(t, "Ed25519", k["crv"])
	assert.Equal(t, "active", k["kid"])
	assert.Equal(t, "sig", k["use"])
	assert.NotEmpty(t, k["x"])
}

func TestIssuer_SignAndVerify(t *testing.T) {
	ks, err := NewEd25519("active")
	require.NoError(t, err)
	iss := NewIssuer("https://id.example", ks)

	signed, exp, err := iss.IssueAccess("u-1", "https://id.example/resources", 5*time.Minute, map[string]any{
		"client_id": "web",
		"scope":     "openid api.read",
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 2*time.Second)

	claims := jwtv5.MapClaims{}
	tok, err := jwtv5.ParseWithClaims(signed, claims, iss.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}))
	require.NoError(t, err)
	assert.True(t, tok.Valid)
	assert.Equal(t, "active", tok.Header["kid"])
	assert.Equal(t, "https://id.example", claims["iss"])
	assert.Equal(t, "u-1", claims["sub"])
	assert.Equal(t, "web", claims["client_id"])
	assert.Equal(t, "openid api.read", claims["scope"])
}

func TestIssuer_IDToken(t *testing.T) {
	ks, err := NewEd25519("active")
	require.NoError(t, err)
	iss := NewIssuer("https://id.example", ks)

	signed, _, err := iss.IssueIDToken("u-1", "web", map[string]any{"nonce": "n-1"})
	require.NoError(t, err)

	claims := jwtv5.MapClaims{}
	_, err = jwtv5.ParseWithClaims(signed, claims, iss.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}))
	require.NoError(t, err)
	assert.Equal(t, "web", claims["aud"])
	assert.Equal(t, "n-1", claims["nonce"])
}

func TestIssuer_TamperedTokenRejected(t *testing.T) {
	ks, err := NewEd25519("active")
	require.NoError(t, err)
	other, err := NewEd25519("other")
	require.NoError(t, err)

	signed, _, err := NewIssuer("https://id.example", other).IssueAccess("u-1", "aud", time.Minute, nil)
	require.NoError(t, err)

	_, err = jwtv5.ParseWithClaims(signed, jwtv5.MapClaims{}, NewIssuer("https://id.example", ks).Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}))
	assert.Error(t, err)
}
