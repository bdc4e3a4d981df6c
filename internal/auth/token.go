package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// ErrInvalidToken is returned for malformed, expired or foreign visitor tokens.
var ErrInvalidToken = errors.New("invalid visitor token")

const keyInfo = "code-turtle visitor cookie v1"

// TokenManager issues signed JWTs that name a visitor.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager derives the signing key from secret and returns a manager for issuer and lifetime.
func NewTokenManager(secret, issuer string, ttl time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), []byte(issuer), []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return &TokenManager{
		secret: key,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL is the lifetime given to issued tokens.
func (t *TokenManager) TTL() time.Duration { return t.ttl }

// Generate issues a signed JWT string whose subject is visitorID.
func (t *TokenManager) Generate(visitorID string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   visitorID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates raw and returns the visitor id it names.
func (t *TokenManager) Parse(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
