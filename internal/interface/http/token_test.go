package http

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	token, err := codec.Sign("user-1", "learner")
	require.NoError(t, err)
	assert.Contains(t, token, ".")

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "learner", claims.Role)
	assert.Greater(t, claims.ExpiresAt, claims.IssuedAt)
}

func TestTokenCodec_Expired(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	token, err := codec.Sign("user-1", "learner")
	require.NoError(t, err)

	// Move the clock past the expiry.
	codec.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenCodec_Tampered(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	token, err := codec.Sign("user-1", "learner")
	require.NoError(t, err)

	// Extending the claims segment invalidates the signature.
	parts := strings.SplitN(token, ".", 2)
	tampered := parts[0] + "x" + "." + parts[1]
	_, err = codec.Verify(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// A token signed with a different secret is rejected.
	other := NewTokenCodec("other-secret", time.Hour)
	foreign, err := other.Sign("user-1", "admin")
	require.NoError(t, err)
	_, err = codec.Verify(foreign)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenCodec_Malformed(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	for _, token := range []string{"", "garbage", "a.b.c.d", "!!!.###"} {
		_, err := codec.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid, "token %q", token)
	}
}
