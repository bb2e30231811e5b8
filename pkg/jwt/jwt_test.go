package jwt_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/pkg/jwt"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := jwt.New(nil)
	require.ErrorIs(t, err, jwt.ErrMissingSigningKey)

	_, err = jwt.NewFromString("short")
	require.ErrorIs(t, err, jwt.ErrWeakSigningKey)

	svc, err := jwt.NewFromString(testKey)
	require.NoError(t, err)
	require.NotNil(t, svc)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString(testKey)
	require.NoError(t, err)

	token, err := svc.Sign(jwt.StandardClaims{
		Subject:   "tenant-1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	var claims jwt.StandardClaims
	require.NoError(t, svc.Verify(token, &claims))
	assert.Equal(t, "tenant-1", claims.Subject)
}

func TestVerifyMapClaims(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString(testKey)
	require.NoError(t, err)

	token, err := svc.Sign(map[string]any{
		"tenant_id": "acme",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	require.NoError(t, svc.Verify(token, &claims))
	assert.Equal(t, "acme", claims.String("tenant_id"))
	assert.Empty(t, claims.String("missing"))
}

func TestVerifyRejections(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString(testKey)
	require.NoError(t, err)

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()

		var claims jwt.StandardClaims
		require.ErrorIs(t, svc.Verify("not.a-token", &claims), jwt.ErrInvalidToken)
	})

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Sign(jwt.StandardClaims{Subject: "tenant-1"})
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		parts[1] = parts[1][:len(parts[1])-2] + "xx"

		var claims jwt.StandardClaims
		require.ErrorIs(t, svc.Verify(strings.Join(parts, "."), &claims), jwt.ErrInvalidSignature)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()

		other, err := jwt.NewFromString(strings.Repeat("x", 32))
		require.NoError(t, err)
		token, err := other.Sign(jwt.StandardClaims{Subject: "tenant-1"})
		require.NoError(t, err)

		var claims jwt.StandardClaims
		require.ErrorIs(t, svc.Verify(token, &claims), jwt.ErrInvalidSignature)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Sign(jwt.StandardClaims{
			Subject:   "tenant-1",
			ExpiresAt: time.Now().Add(-time.Minute).Unix(),
		})
		require.NoError(t, err)

		var claims jwt.StandardClaims
		require.ErrorIs(t, svc.Verify(token, &claims), jwt.ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Sign(jwt.StandardClaims{
			Subject:   "tenant-1",
			NotBefore: time.Now().Add(time.Hour).Unix(),
		})
		require.NoError(t, err)

		var claims jwt.StandardClaims
		require.ErrorIs(t, svc.Verify(token, &claims), jwt.ErrInvalidToken)
	})
}
