// internal/middleware/auth_middleware.go
package middleware

import (
	"errors"
	"slices"
	"strings"

	"mileage-service/internal/pkg/jwt"
	"mileage-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// ctxClaims holds the verified *jwt.Claims of the caller.
const ctxClaims = "claims"

// TokenVerifier is satisfied by *jwt.Verifier.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Auth validates the bearer token and puts the tenant context on the request
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token", nil)
			return
		}

		claims, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token", err)
			return
		}

		c.Set(ctxClaims, claims)

		c.Next()
	}
}

// RequireRole requires at least one of roles. MUST be used after Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			response.Forbidden(c, "no roles found - authentication required", nil)
			return
		}

		if slices.ContainsFunc(roles, claims.HasRole) {
			c.Next()
			return
		}

		response.Forbidden(c, "insufficient permissions",
			errors.New("user does not have required role"),
			map[string]interface{}{
				"required_roles": roles,
				"user_roles":     claims.Roles,
			})
	}
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireRole)
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(jwt.RoleAdmin),
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}

	// Browsers cannot set headers on websocket upgrades
	return c.Query("token")
}
