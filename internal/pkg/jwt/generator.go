// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Generator mints tokens for chainctl and tests. The API server only
// verifies.
type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string
	ttl      time.Duration
	now      func() time.Time
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Generate signs a token for identityID acting on tenantID and returns it
// with its jti. The jti is a ULID so audit entries can be correlated with
// the token that caused them.
func (g *Generator) Generate(identityID, tenantID int64, roles []string, purpose string) (string, string, error) {
	if g.priv == nil {
		return "", "", errors.New("jwt generator has nil private key")
	}
	if tenantID <= 0 {
		return "", "", ErrNoTenant
	}

	issued := g.now()
	jti := ulid.MustNew(ulid.Timestamp(issued), ulid.DefaultEntropy()).String()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		IdentityID:     identityID,
		TenantID:       tenantID,
		Roles:          roles,
		SessionPurpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    g.issuer,
			Subject:   strconv.FormatInt(identityID, 10),
			Audience:  jwt.ClaimStrings{g.audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(g.ttl)),
		},
	})
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

func (g *Generator) GenerateAccessToken(identityID, tenantID int64, roles []string) (string, string, error) {
	return g.Generate(identityID, tenantID, roles, PurposeAccess)
}

// TTL is how long minted tokens stay valid.
func (g *Generator) TTL() time.Duration {
	return g.ttl
}
