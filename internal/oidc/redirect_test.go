package oidc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectURIValidator(t *testing.T) {
	v := NewRedirectURIValidator()

	t.Run("missing", func(t *testing.T) {
		err := v.Validate("", []string{"https://app.example/cb"}, false)
		require.Error(t, err)
		assert.Equal(t, ErrorInvalidRequest, err.(*ProtocolError).Kind)
	})

	t.Run("relative rejected", func(t *testing.T) {
		assert.Error(t, v.Validate("/cb", []string{"/cb"}, false))
	})

	t.Run("exact match", func(t *testing.T) {
		allowed := []string{"https://app.example/cb"}
		assert.NoError(t, v.Validate("https://app.example/cb", allowed, false))
		assert.Error(t, v.Validate("https://app.example/cb/", allowed, false))
		assert.Error(t, v.Validate("https://APP.example/cb", allowed, false))
	})

	t.Run("fragment rejected for implicit and hybrid only", func(t *testing.T) {
		allowed := []string{"https://app.example/cb#frag"}
		assert.Error(t, v.Validate("https://app.example/cb#frag", allowed, true))
		assert.NoError(t, v.Validate("https://app.example/cb#frag", allowed, false))
	})

	t.Run("loopback ignores port", func(t *testing.T) {
		allowed := []string{"http://127.0.0.1:8080/cb"}
		assert.NoError(t, v.Validate("http://127.0.0.1:51004/cb", allowed, false))
		assert.NoError(t, v.Validate("http://127.0.0.1/cb", allowed, false))
	})

	t.Run("loopback host variants", func(t *testing.T) {
		assert.NoError(t, v.Validate("http://localhost:9000/cb", []string{"http://localhost:1234/cb"}, false))
		assert.NoError(t, v.Validate("http://[::1]:9000/cb", []string{"http://[::1]:1/cb"}, false))
	})

	t.Run("loopback demands same scheme and path", func(t *testing.T) {
		allowed := []string{"http://127.0.0.1:8080/cb"}
		assert.Error(t, v.Validate("https://127.0.0.1:8080/cb", allowed, false))
		assert.Error(t, v.Validate("http://127.0.0.1:8080/other", allowed, false))
	})

	t.Run("loopback does not relax non-loopback registrations", func(t *testing.T) {
		allowed := []string{"https://app.example/cb"}
		assert.Error(t, v.Validate("http://127.0.0.1:8080/cb", allowed, false))
	})

	t.Run("custom scheme is case-insensitive exact", func(t *testing.T) {
		allowed := []string{"com.example.app:/callback"}
		assert.NoError(t, v.Validate("com.example.app:/callback", allowed, false))
		assert.NoError(t, v.Validate("COM.EXAMPLE.APP:/callback", allowed, false))
		assert.Error(t, v.Validate("com.example.app:/other", allowed, false))
	})

	t.Run("http never matches case-insensitively", func(t *testing.T) {
		allowed := []string{"https://app.example/CB"}
		assert.Error(t, v.Validate("https://app.example/cb", allowed, false))
	})
}

func TestValidatePostLogout(t *testing.T) {
	v := NewRedirectURIValidator()
	allowed := []string{"https://app.example/loggedout"}

	assert.NoError(t, v.ValidatePostLogout("", allowed))
	assert.NoError(t, v.ValidatePostLogout("https://app.example/loggedout", allowed))
	assert.Error(t, v.ValidatePostLogout("https://app.example/other", allowed))
	assert.Error(t, v.ValidatePostLogout("https://evil.example/loggedout", nil))
}
