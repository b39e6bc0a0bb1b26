package oidc

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// PKCE challenge methods (RFC 7636 §4.2).
const (
	CodeChallengeMethodPlain = "plain"
	CodeChallengeMethodS256  = "S256"
)

// RFC 7636 §4.1/§4.2 length bounds, shared by verifier and challenge.
const (
	pkceMinLength = 43
	pkceMaxLength = 128
)

// PKCEValidator validates code_challenge/code_verifier pairs. Stateless.
type PKCEValidator struct{}

// NewPKCEValidator returns a PKCEValidator.
func NewPKCEValidator() *PKCEValidator { return &PKCEValidator{} }

// ValidateCodeChallenge checks the challenge presented at the authorize
// endpoint. required is the client's RequirePKCE for the requested flow;
// allowPlainText is the client's AllowPlainTextPKCE.
func (v *PKCEValidator) ValidateCodeChallenge(challenge, method string, required, allowPlainText bool) error {
	if challenge == "" {
		if required {
			return NewProtocolError(ErrorInvalidRequest, "code_challenge is required")
		}
		return nil
	}
	if len(challenge) < pkceMinLength || len(challenge) > pkceMaxLength {
		return NewProtocolError(ErrorInvalidRequest, "code_challenge must be 43-128 characters")
	}
	if !isBase64URLAlphabet(challenge) {
		return NewProtocolError(ErrorInvalidRequest, "code_challenge contains invalid characters")
	}
	if method == "" {
		method = CodeChallengeMethodPlain
	}
	switch method {
	case CodeChallengeMethodS256:
	case CodeChallengeMethodPlain:
		if !allowPlainText {
			return NewProtocolError(ErrorInvalidRequest, "plain code_challenge_method is not allowed for this client")
		}
	default:
		return NewProtocolError(ErrorInvalidRequest, "unsupported code_challenge_method")
	}
	return nil
}

// ValidateCodeVerifier checks the verifier presented at the token endpoint
// against the challenge stored with the authorization code. The comparison is
// constant time.
func (v *PKCEValidator) ValidateCodeVerifier(verifier, storedChallenge, storedMethod string) error {
	if verifier == "" {
		return NewProtocolError(ErrorInvalidGrant, "code_verifier is missing")
	}
	if len(verifier) < pkceMinLength || len(verifier) > pkceMaxLength {
		return NewProtocolError(ErrorInvalidGrant, "code_verifier must be 43-128 characters")
	}
	if !isVerifierAlphabet(verifier) {
		return NewProtocolError(ErrorInvalidGrant, "code_verifier contains invalid characters")
	}

	derived, err := GenerateCodeChallenge(verifier, storedMethod)
	if err != nil {
		return NewProtocolError(ErrorInvalidGrant, "stored code_challenge_method is invalid")
	}
	if subtle.ConstantTimeCompare([]byte(derived), []byte(storedChallenge)) != 1 {
		return NewProtocolError(ErrorInvalidGrant, "code_verifier does not match the code_challenge")
	}
	return nil
}

// GenerateCodeVerifier returns a fresh code_verifier: 32 random bytes,
// base64url without padding (43 characters). Delegates to x/oauth2, which
// panics only on crypto/rand failure.
func GenerateCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// GenerateCodeChallenge derives the challenge for a verifier under the given
// method: S256 is base64url(SHA-256(verifier)), plain echoes the verifier.
func GenerateCodeChallenge(verifier, method string) (string, error) {
	if method == "" {
		method = CodeChallengeMethodPlain
	}
	switch method {
	case CodeChallengeMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(sum[:]), nil
	case CodeChallengeMethodPlain:
		return verifier, nil
	default:
		return "", NewProtocolError(ErrorInvalidRequest, "unsupported code_challenge_method")
	}
}

// isBase64URLAlphabet reports whether s uses only [A-Za-z0-9-_].
func isBase64URLAlphabet(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// isVerifierAlphabet reports whether s uses only the RFC 7636 §4.1 unreserved
// set [A-Za-z0-9-._~].
func isVerifierAlphabet(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}
