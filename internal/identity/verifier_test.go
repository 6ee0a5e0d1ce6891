package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("test-signing-key")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(testKey)
	require.NoError(t, err)
	return signed
}

func TestJWTVerifier(t *testing.T) {
	ctx := context.Background()
	verifier, err := NewJWTVerifier(testKey)
	require.NoError(t, err)

	t.Run("accepts a valid token and surfaces subject and name", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub":  "uid-42",
			"name": "Alice Johnson",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})

		ident, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "uid-42", ident.SubjectID)
		assert.Equal(t, "Alice Johnson", ident.DisplayName())
	})

	t.Run("rejects an empty token", func(t *testing.T) {
		_, err := verifier.Verify(ctx, "")
		var idErr *Error
		require.ErrorAs(t, err, &idErr)
		assert.Contains(t, idErr.Reason, "no token")
	})

	t.Run("rejects a malformed token", func(t *testing.T) {
		_, err := verifier.Verify(ctx, "not.a.jwt")
		var idErr *Error
		assert.ErrorAs(t, err, &idErr)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub": "uid-42",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := verifier.Verify(ctx, token)
		var idErr *Error
		require.ErrorAs(t, err, &idErr)
		assert.Contains(t, idErr.Reason, "expired")
	})

	t.Run("rejects a token signed with the wrong key", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "uid-42"})
		signed, err := tok.SignedString([]byte("other-key"))
		require.NoError(t, err)

		_, err = verifier.Verify(ctx, signed)
		var idErr *Error
		assert.ErrorAs(t, err, &idErr)
	})

	t.Run("rejects a non-HMAC signing method", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "uid-42"})
		signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = verifier.Verify(ctx, signed)
		var idErr *Error
		assert.ErrorAs(t, err, &idErr)
	})

	t.Run("rejects a token without a subject", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		_, err := verifier.Verify(ctx, token)
		var idErr *Error
		require.ErrorAs(t, err, &idErr)
		assert.Contains(t, idErr.Reason, "subject")
	})

	t.Run("missing name claim yields empty display name", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub": "uid-42",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		ident, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Empty(t, ident.DisplayName())
	})
}

func TestNewJWTVerifier(t *testing.T) {
	t.Run("empty key is rejected", func(t *testing.T) {
		_, err := NewJWTVerifier(nil)
		assert.Error(t, err)
	})
}
