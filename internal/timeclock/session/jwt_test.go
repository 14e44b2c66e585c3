package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "timeclock/pkg/domain-errors"
)

func TestIssueAndValidate(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	svc := NewService("test-key", WithTTL(time.Hour), WithClock(func() time.Time { return now }))

	token, err := svc.Issue("kiosk-01")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, now.Add(time.Hour), token.ExpiresAt)

	claims, err := svc.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "kiosk-01", claims.DeviceID)
	assert.Equal(t, RoleManager, claims.Role)
	assert.Equal(t, "manager:kiosk-01", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateRejects(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	svc := NewService("test-key", WithClock(func() time.Time { return now }))

	t.Run("expired", func(t *testing.T) {
		token, err := svc.Issue("kiosk-01")
		require.NoError(t, err)

		later := NewService("test-key", WithClock(func() time.Time { return now.Add(time.Hour) }))
		_, err = later.Validate(token.AccessToken)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong key", func(t *testing.T) {
		token, err := NewService("other-key").Issue("kiosk-01")
		require.NoError(t, err)
		_, err = svc.Validate(token.AccessToken)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := NewService("test-key", WithIssuer("someone-else")).Issue("kiosk-01")
		require.NoError(t, err)
		_, err = svc.Validate(token.AccessToken)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("non manager role", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			DeviceID: "kiosk-01",
			Role:     "kiosk",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    defaultIssuer,
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
		})
		signed, err := raw.SignedString([]byte("test-key"))
		require.NoError(t, err)
		_, err = svc.Validate(signed)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not-a-token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestFromAuthorizationHeader(t *testing.T) {
	token, err := FromAuthorizationHeader("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	token, err = FromAuthorizationHeader("bearer  xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer   "} {
		_, err := FromAuthorizationHeader(header)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), header)
	}
}
