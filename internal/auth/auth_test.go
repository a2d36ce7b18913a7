package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/onefam/internal/config"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(config.AuthSettings{
		Username:  "onefam",
		Password:  "Welcome1",
		JWTSecret: "test-secret-with-enough-entropy",
		TokenTTL:  "1h",
	})
	require.NoError(t, err)
	return m
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(config.AuthSettings{Username: "u", Password: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrSecretMissing)
}

func TestLogin(t *testing.T) {
	m := newManager(t)

	token, err := m.Login("onefam", "Welcome1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "onefam", claims.Username)
	assert.Equal(t, config.AppName, claims.Issuer)
}

func TestLogin_Rejected(t *testing.T) {
	m := newManager(t)

	for _, tc := range []struct{ user, pass string }{
		{"onefam", "wrong"},
		{"someone", "Welcome1"},
		{"", ""},
	} {
		_, err := m.Login(tc.user, tc.pass)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "%q/%q", tc.user, tc.pass)
	}
}

func TestValidate_Expired(t *testing.T) {
	m := newManager(t)
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	token, err := m.Issue("onefam")
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(30 * time.Minute) }
	_, err = m.Validate(token)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = m.Validate(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidate_WrongSecret(t *testing.T) {
	other, err := New(config.AuthSettings{JWTSecret: "another-secret", TokenTTL: "1h"})
	require.NoError(t, err)
	token, err := other.Issue("onefam")
	require.NoError(t, err)

	_, err = newManager(t).Validate(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{
		Username: "onefam",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newManager(t).Validate(unsigned)
	assert.Error(t, err)
}

func TestValidate_Garbage(t *testing.T) {
	_, err := newManager(t).Validate("not.a.token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrTokenParse)
}
