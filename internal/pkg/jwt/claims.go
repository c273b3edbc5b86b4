// internal/pkg/jwt/claims.go
package jwt

import (
	"slices"

	"mileage-service/internal/domain/trip"

	"github.com/golang-jwt/jwt/v5"
)

const (
	PurposeAccess = "access"

	RoleAdmin    = "admin"
	RoleOperator = "fleet_operator"
)

// Claims represents the JWT claims
type Claims struct {
	IdentityID     int64    `json:"identity_id"`
	TenantID       int64    `json:"tenant_id"`
	Roles          []string `json:"roles,omitempty"`
	SessionPurpose string   `json:"session_purpose"`
	jwt.RegisteredClaims
}

// HasRole checks if the claims contain a specific role
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

func (c *Claims) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// TenantContext is the chain-operation identity carried by the token.
func (c *Claims) TenantContext() trip.TenantContext {
	return trip.TenantContext{TenantID: c.TenantID, ActorID: c.IdentityID}
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}
	return slices.Contains(c.Audience, audience)
}
