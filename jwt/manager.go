// Package jwt issues and parses the signed tokens that wrap a session
// ID in the browser cookie. The token carries no flow state: it is only
// tamper evidence around the opaque session identifier, and every
// request still resolves the session against Redis.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretBytes = 32

// ErrTokenInvalid is returned for any token that fails parsing,
// signature verification, or claim validation.
var ErrTokenInvalid = errors.New("invalid session token")

// Config holds the signing parameters.
type Config struct {
	Secret []byte
	Issuer string
	Leeway time.Duration
}

// Manager signs and verifies session tokens with HS256 only. The
// algorithm is pinned at parse time; tokens claiming any other method
// are rejected outright.
type Manager struct {
	config Config
}

type sessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, errors.New("session token secret must be at least 32 bytes")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("session token issuer required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// Issue creates a token for the session, expiring with it.
func (m *Manager) Issue(sessionID string, expiresAt time.Time) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id required")
	}

	now := time.Now()
	claims := sessionClaims{
		SID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

// Parse validates the token and returns the wrapped session ID.
func (m *Manager) Parse(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrTokenInvalid
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrTokenInvalid
			}
			return m.config.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithLeeway(m.config.Leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrTokenInvalid
	}
	if claims.SID == "" {
		return "", ErrTokenInvalid
	}

	return claims.SID, nil
}
