package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"usersvc/internal/apperror"
)

// DefaultTokenTTL is used when TokenConfig.TTL is zero.
const DefaultTokenTTL = time.Hour

var (
	// ErrMissingSecret is returned when no signing secret is configured.
	ErrMissingSecret = apperror.Configuration("JWT signing secret is not configured", nil)
	// ErrInvalidToken is returned for malformed tokens, bad signatures and
	// claims that do not match the expected structure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the signature is valid but exp has passed.
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the fixed payload of a session token.
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// TokenManager issues and verifies HS256 session tokens. It holds no mutable
// state and is safe for concurrent use.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenManager validates cfg and returns a TokenManager.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if cfg.TTL < 0 {
		return nil, apperror.Configuration(fmt.Sprintf("invalid token TTL %s", cfg.TTL), nil)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}

	m := &TokenManager{
		secret: cfg.Secret,
		ttl:    ttl,
		now:    time.Now,
	}
	// issue and verify share one clock
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)

	return m, nil
}

// TTL returns the lifetime given to tokens created by Issue.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for the given identity using the configured TTL.
func (m *TokenManager) Issue(uid, email string) (string, error) {
	return m.IssueWithTTL(uid, email, m.ttl)
}

// IssueWithTTL signs a token that expires ttl from now. A non-positive ttl
// yields a token that is already expired.
func (m *TokenManager) IssueWithTTL(uid, email string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		UID:   uid,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the signature and expiry of tokenString and returns its claims.
// It fails with ErrExpiredToken or ErrInvalidToken.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || claims.UID == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
