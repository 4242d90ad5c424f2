package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	return ts
}

func TestNewTokenService(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	assert.Error(t, err, "secrets shorter than 16 chars are rejected")

	ts, err := NewTokenService("this-is-16-chars", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, ts.ttl)
}

func TestGenerate(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("session-123")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "token should be header.payload.signature")

	other, err := ts.Generate("session-456")
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestValidate(t *testing.T) {
	ts := newTestTokenService(t)

	t.Run("round trip", func(t *testing.T) {
		token, err := ts.Generate("cr5ab3bq7j1g00abcdef")
		require.NoError(t, err)

		got, err := ts.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "cr5ab3bq7j1g00abcdef", got)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := ts.GenerateWithDuration("session-123", -time.Second)
		require.NoError(t, err)

		_, err = ts.Validate(token)
		assert.ErrorContains(t, err, "expired")
	})

	t.Run("tampered signature", func(t *testing.T) {
		token, _ := ts.Generate("session-123")
		_, err := ts.Validate(token[:len(token)-3] + "xxx")
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenService("wrong-secret-32-chars-long!!!!!!", time.Hour)
		require.NoError(t, err)
		token, _ := other.Generate("session-123")

		_, err = ts.Validate(token)
		assert.Error(t, err)
	})

	t.Run("empty subject", func(t *testing.T) {
		token, _ := ts.Generate("")
		_, err := ts.Validate(token)
		assert.ErrorContains(t, err, "no subject")
	})

	t.Run("garbage", func(t *testing.T) {
		for _, s := range []string{"", "not.a.jwt", "a.b"} {
			_, err := ts.Validate(s)
			assert.Error(t, err, s)
		}
	})
}
