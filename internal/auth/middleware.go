package auth

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"usersvc/internal/apperror"
)

const identityKey = "identity"

// Identity is the authenticated caller resolved from a verified token.
type Identity struct {
	ID    string
	Email string
}

// TokenVerifier verifies a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// RequireAuth rejects requests without a valid bearer token and attaches the
// caller's Identity for downstream handlers. It is the only authorization
// gate for protected routes.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			apperror.Respond(c, apperror.Authorization("missing_token",
				"missing or malformed authorization header: expected 'Bearer <token>'", nil))
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			slog.Warn("Rejected bearer token",
				"error", err.Error(),
				"request_id", c.GetString("request_id"),
			)
			if errors.Is(err, ErrExpiredToken) {
				apperror.Respond(c, apperror.Authorization("token_expired", "token expired", err))
				return
			}
			apperror.Respond(c, apperror.Authorization("invalid_token", "invalid token", err))
			return
		}

		SetIdentity(c, Identity{ID: claims.UID, Email: claims.Email})

		c.Next()
	}
}

// WithIdentity adapts a handler that takes the caller's Identity as an explicit
// argument. It must run behind RequireAuth.
func WithIdentity(h func(c *gin.Context, id Identity)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			apperror.Respond(c, apperror.Authorization("unauthenticated", "authentication required", nil))
			return
		}
		h(c, id)
	}
}

// SetIdentity attaches id to the gin context.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the identity attached by RequireAuth.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
