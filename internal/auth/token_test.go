package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usersvc/internal/apperror"
)

func newTestTokenManager(t *testing.T, secret string) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenConfig{Secret: []byte(secret)})
	require.NoError(t, err)
	return m
}

func TestTokenManager_RoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager(t, "super-secret")

	tok, err := m.IssueWithTTL("user-123", "a@b.com", time.Minute)
	require.NoError(t, err)
	assert.Len(t, strings.Split(tok, "."), 3)

	claims, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UID)
	assert.Equal(t, "a@b.com", claims.Email)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt.Time, 2*time.Second)
}

func TestTokenManager_DefaultTTL(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager(t, "super-secret")
	assert.Equal(t, DefaultTokenTTL, m.TTL())

	tok, err := m.Issue("u1", "u1@example.com")
	require.NoError(t, err)

	claims, err := m.Verify(tok)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 2*time.Second)
}

func TestTokenManager_Expired(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager(t, "secret")

	for _, ttl := range []time.Duration{0, -time.Second, -time.Hour} {
		tok, err := m.IssueWithTTL("u1", "u1@example.com", ttl)
		require.NoError(t, err)

		_, err = m.Verify(tok)
		assert.ErrorIs(t, err, ErrExpiredToken, "ttl %s", ttl)
		assert.NotErrorIs(t, err, ErrInvalidToken)
	}
}

func TestTokenManager_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager(t, "secret")
	issued := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	clock := issued
	m.now = func() time.Time { return clock }

	tok, err := m.IssueWithTTL("u1", "u1@example.com", time.Hour)
	require.NoError(t, err)

	clock = issued.Add(time.Hour - time.Second)
	claims, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(time.Hour), claims.ExpiresAt.Time.UTC())
	assert.Equal(t, issued, claims.IssuedAt.Time.UTC())

	clock = issued.Add(time.Hour + time.Second)
	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenManager_TamperedSignature(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager(t, "secret")
	tok, err := m.Issue("u1", "u1@example.com")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	sig := []byte(parts[2])
	// Flip a leading character; trailing ones may only carry padding bits.
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = m.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := newTestTokenManager(t, "right-secret").Issue("u2", "u2@example.com")
	require.NoError(t, err)

	_, err = newTestTokenManager(t, "wrong-secret").Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Malformed(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager(t, "k")
	for _, tok := range []string{"", "not.a.jwt", "abc", "a.b.c.d"} {
		_, err := m.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	claims := Claims{
		UID:   "u1",
		Email: "u1@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	require.NoError(t, err)

	m, err := NewTokenManager(TokenConfig{Secret: secret})
	require.NoError(t, err)

	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsForeignClaimShape(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	m, err := NewTokenManager(TokenConfig{Secret: secret})
	require.NoError(t, err)

	tests := map[string]jwt.Claims{
		"no uid": jwt.MapClaims{
			"email": "u1@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		},
		"no email": jwt.MapClaims{
			"uid": "u1",
			"exp": time.Now().Add(time.Hour).Unix(),
		},
		"no exp": jwt.MapClaims{
			"uid":   "u1",
			"email": "u1@example.com",
		},
		"uid wrong type": jwt.MapClaims{
			"uid":   42,
			"email": "u1@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		},
	}

	for name, claims := range tests {
		t.Run(name, func(t *testing.T) {
			tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
			require.NoError(t, err)

			_, err = m.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewTokenManager_MissingSecret(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager(TokenConfig{})
	require.ErrorIs(t, err, ErrMissingSecret)
	assert.True(t, apperror.Is(err, apperror.KindConfiguration))
}

func TestNewTokenManager_NegativeTTL(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager(TokenConfig{Secret: []byte("k"), TTL: -time.Minute})
	assert.True(t, apperror.Is(err, apperror.KindConfiguration))
}
