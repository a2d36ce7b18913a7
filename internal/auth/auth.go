// Package auth issues and validates the bearer tokens guarding the API.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tartampluch/onefam/internal/config"
)

// ErrInvalidCredentials is returned by Login for a wrong username or password.
var ErrInvalidCredentials = errors.New(config.ErrBadCredentials)

// Claims is the token payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager checks the static credential pair and signs HS256 tokens.
type Manager struct {
	username string
	password string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// New creates a Manager. The JWT secret must not be empty.
func New(settings config.AuthSettings) (*Manager, error) {
	if settings.JWTSecret == "" {
		return nil, errors.New(config.ErrSecretMissing)
	}
	return &Manager{
		username: settings.Username,
		password: settings.Password,
		secret:   []byte(settings.JWTSecret),
		ttl:      settings.TTL(),
		now:      time.Now,
	}, nil
}

// Login returns a signed token for the configured credentials.
func (m *Manager) Login(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) == 1
	if !userOK || !passOK {
		slog.Warn(config.MsgLoginRejected,
			config.LogKeyComponent, config.CompAuth,
			config.LogKeyUser, username,
		)
		return "", ErrInvalidCredentials
	}
	return m.Issue(username)
}

// Issue signs a token for username without checking credentials.
func (m *Manager) Issue(username string) (string, error) {
	now := m.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    config.AppName,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrTokenSign, err)
	}
	return signed, nil
}

// Validate checks the signature, algorithm and expiry of a token.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("%s: %v", config.ErrTokenMethod, t.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrTokenParse, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New(config.ErrTokenClaims)
	}
	return claims, nil
}
