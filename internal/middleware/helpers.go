// internal/middleware/helpers.go
package middleware

import (
	"mileage-service/internal/domain/trip"
	"mileage-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// GetClaims returns the caller's verified token claims. Only set behind Auth().
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(ctxClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok && claims != nil
}

// GetTenantContext builds the chain-operation identity of the caller.
func GetTenantContext(c *gin.Context) (trip.TenantContext, bool) {
	claims, ok := GetClaims(c)
	if !ok {
		return trip.TenantContext{}, false
	}
	return claims.TenantContext(), true
}

// MustGetTenantContext is for handlers mounted behind Auth(). A missing
// context there is a routing bug, so it panics into RecoveryMiddleware.
func MustGetTenantContext(c *gin.Context) trip.TenantContext {
	tc, ok := GetTenantContext(c)
	if !ok {
		panic("middleware: tenant context requested on an unauthenticated route")
	}
	return tc
}
