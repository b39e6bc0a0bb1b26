package oidc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCodeChallenge(t *testing.T) {
	v := NewPKCEValidator()
	valid := strings.Repeat("a", 43)

	t.Run("absent and not required passes", func(t *testing.T) {
		require.NoError(t, v.ValidateCodeChallenge("", "", false, false))
	})

	t.Run("absent but required fails", func(t *testing.T) {
		err := v.ValidateCodeChallenge("", "", true, false)
		require.Error(t, err)
		assert.Equal(t, ErrorInvalidRequest, err.(*ProtocolError).Kind)
	})

	t.Run("length bounds", func(t *testing.T) {
		assert.Error(t, v.ValidateCodeChallenge(strings.Repeat("a", 42), CodeChallengeMethodS256, true, false))
		assert.Error(t, v.ValidateCodeChallenge(strings.Repeat("a", 129), CodeChallengeMethodS256, true, false))
		assert.NoError(t, v.ValidateCodeChallenge(strings.Repeat("a", 128), CodeChallengeMethodS256, true, false))
	})

	t.Run("charset is base64url", func(t *testing.T) {
		bad := strings.Repeat("a", 42) + "!"
		assert.Error(t, v.ValidateCodeChallenge(bad, CodeChallengeMethodS256, true, false))
		// ~ and . are verifier characters, not challenge characters
		assert.Error(t, v.ValidateCodeChallenge(strings.Repeat("a", 42)+"~", CodeChallengeMethodS256, true, false))
	})

	t.Run("plain requires client opt-in", func(t *testing.T) {
		assert.Error(t, v.ValidateCodeChallenge(valid, CodeChallengeMethodPlain, true, false))
		assert.NoError(t, v.ValidateCodeChallenge(valid, CodeChallengeMethodPlain, true, true))
	})

	t.Run("empty method means plain", func(t *testing.T) {
		assert.Error(t, v.ValidateCodeChallenge(valid, "", true, false))
		assert.NoError(t, v.ValidateCodeChallenge(valid, "", true, true))
	})

	t.Run("unknown method rejected", func(t *testing.T) {
		assert.Error(t, v.ValidateCodeChallenge(valid, "S512", true, false))
	})
}

func TestValidateCodeVerifier(t *testing.T) {
	v := NewPKCEValidator()

	t.Run("s256 round trip", func(t *testing.T) {
		verifier := GenerateCodeVerifier()
		challenge, err := GenerateCodeChallenge(verifier, CodeChallengeMethodS256)
		require.NoError(t, err)
		require.NoError(t, v.ValidateCodeVerifier(verifier, challenge, CodeChallengeMethodS256))
	})

	t.Run("plain round trip", func(t *testing.T) {
		verifier := GenerateCodeVerifier()
		require.NoError(t, v.ValidateCodeVerifier(verifier, verifier, CodeChallengeMethodPlain))
	})

	t.Run("mutated verifier fails", func(t *testing.T) {
		verifier := GenerateCodeVerifier()
		challenge, err := GenerateCodeChallenge(verifier, CodeChallengeMethodS256)
		require.NoError(t, err)

		mutated := []byte(verifier)
		if mutated[0] == 'a' {
			mutated[0] = 'b'
		} else {
			mutated[0] = 'a'
		}
		err = v.ValidateCodeVerifier(string(mutated), challenge, CodeChallengeMethodS256)
		require.Error(t, err)
		assert.Equal(t, ErrorInvalidGrant, err.(*ProtocolError).Kind)
	})

	t.Run("missing verifier", func(t *testing.T) {
		err := v.ValidateCodeVerifier("", "whatever", CodeChallengeMethodS256)
		require.Error(t, err)
		assert.Equal(t, ErrorInvalidGrant, err.(*ProtocolError).Kind)
	})

	t.Run("verifier length and charset", func(t *testing.T) {
		challenge, _ := GenerateCodeChallenge(strings.Repeat("a", 43), CodeChallengeMethodS256)
		assert.Error(t, v.ValidateCodeVerifier(strings.Repeat("a", 42), challenge, CodeChallengeMethodS256))
		assert.Error(t, v.ValidateCodeVerifier(strings.Repeat("a", 42)+"!", challenge, CodeChallengeMethodS256))
		// the unreserved extras are fine
		ok := strings.Repeat("a", 39) + "-._~"
		okChallenge, _ := GenerateCodeChallenge(ok, CodeChallengeMethodS256)
		assert.NoError(t, v.ValidateCodeVerifier(ok, okChallenge, CodeChallengeMethodS256))
	})

	t.Run("generated verifier meets the length bounds", func(t *testing.T) {
		verifier := GenerateCodeVerifier()
		assert.GreaterOrEqual(t, len(verifier), 43)
		assert.LessOrEqual(t, len(verifier), 128)
	})
}
