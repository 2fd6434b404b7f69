package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tourbook/internal/model"
)

const (
	basicPrefix  = "Basic "
	bearerPrefix = "Bearer "
	issuer       = "tourbook-admin"

	DefaultSessionTTL = 8 * time.Hour
)

var (
	ErrNotConfigured = errors.New("admin credentials are not configured")
	ErrInvalidToken  = errors.New("invalid session token")
)

// Checker compares presented admin credentials against the configured pair
// and issues short-lived session tokens once they match.
type Checker struct {
	username string
	password string
	key      []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewChecker(username, password, sessionSecret string, ttl time.Duration) *Checker {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	sum := sha256.Sum256([]byte(sessionSecret + ":" + username + ":" + password))
	return &Checker{
		username: username,
		password: password,
		key:      sum[:],
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *Checker) Configured() bool {
	return c.username != "" && c.password != ""
}

// Check validates a raw Authorization header carrying Basic credentials.
func (c *Checker) Check(header string) bool {
	if !c.Configured() {
		return false
	}
	expected := basicPrefix + base64.StdEncoding.EncodeToString([]byte(c.username+":"+c.password))
	return subtle.ConstantTimeCompare([]byte(header), []byte(expected)) == 1
}

func (c *Checker) CheckPair(username, password string) bool {
	if !c.Configured() {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(c.password)) == 1
	return userOK && passOK
}

func (c *Checker) IssueToken() (string, time.Time, error) {
	if !c.Configured() {
		return "", time.Time{}, ErrNotConfigured
	}
	now := c.now()
	expiresAt := now.Add(c.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   c.username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

func (c *Checker) ValidateToken(token string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(c.username),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

// Authorize accepts either a Bearer session token or legacy Basic credentials.
func (c *Checker) Authorize(header string) error {
	switch {
	case !c.Configured():
		return fmt.Errorf("%w: %v", model.ErrUnauthorized, ErrNotConfigured)
	case strings.HasPrefix(header, bearerPrefix):
		if err := c.ValidateToken(strings.TrimPrefix(header, bearerPrefix)); err != nil {
			return fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
		}
		return nil
	case c.Check(header):
		return nil
	default:
		return model.ErrUnauthorized
	}
}
