package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dropDatabas3/signet/internal/util/atomicwrite"
)

// KeySet holds one active Ed25519 signing key. Rotation lives outside the
// token core; the grant engine only consumes the active key.
type KeySet struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
	KID  string
	Alg  string // "EdDSA"
}

// NewEd25519 generates a fresh in-memory Ed25519 key with the given KID.
func NewEd25519(kid string) (*KeySet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeySet{Priv: priv, Pub: pub, KID: kid, Alg: "EdDSA"}, nil
}

type keyFile struct {
	KID  string `json:"kid"`
	Priv string `json:"priv"` // base64url(seed||pub)
}

// LoadOrCreate reads the key file at path, creating and persisting a new key
// when the file does not exist.
func LoadOrCreate(path, kid string) (*KeySet, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		ks, err := NewEd25519(kid)
		if err != nil {
			return nil, err
		}
		return ks, ks.save(path)
	}
	if err != nil {
		return nil, err
	}
	var kf keyFile
	if err := json.Unmarshal(b, &kf); err != nil {
		return nil, fmt.Errorf("decode key file %s: %w", path, err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(kf.Priv)
	if err != nil || len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key file %s holds an invalid private key", path)
	}
	priv := ed25519.PrivateKey(raw)
	return &KeySet{
		Priv: priv,
		Pub:  priv.Public().(ed25519.PublicKey),
		KID:  kf.KID,
		Alg:  "EdDSA",
	}, nil
}

func (k *KeySet) save(path string) error {
	b, err := json.Marshal(keyFile{
		KID:  k.KID,
		Priv: base64.RawURLEncoding.EncodeToString(k.Priv),
	})
	if err != nil {
		return err
	}
	return atomicwrite.WriteFile(path, b, 0o600)
}

// JWKSJSON returns the JWKS document for the public key.
func (k *KeySet) JWKSJSON() []byte {
	doc := struct {
		Keys []map[string]string `json:"keys"`
	}{
		Keys: []map[string]string{{
			"kty": "OKP",
			"crv": "Ed25519",
			"kid": k.KID,
			"alg": k.Alg,
			"use": "sig",
			"x":   base64.RawURLEncoding.EncodeToString(k.Pub),
		}},
	}
	b, _ := json.Marshal(doc)
	return b
}
