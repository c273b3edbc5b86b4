// internal/pkg/jwt/verifier.go
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotAccessToken = errors.New("token is not an access token")
	ErrNoTenant       = errors.New("token carries no tenant")
)

// clockSkew tolerated between the issuing host and this one.
const clockSkew = 30 * time.Second

// Verifier checks RS256 tokens against one public key. Issuer, audience and
// expiry are enforced by the parser itself.
type Verifier struct {
	pub    *rsa.PublicKey
	parser *jwt.Parser
}

func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		pub: pub,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
	}
}

func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if v.pub == nil {
		return nil, errors.New("jwt verifier has nil public key")
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// VerifyAccessToken accepts only access tokens bound to a tenant, since every
// chain operation is tenant scoped.
func (v *Verifier) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	switch {
	case claims.SessionPurpose != PurposeAccess:
		return nil, ErrNotAccessToken
	case claims.TenantID <= 0:
		return nil, ErrNoTenant
	}
	return claims, nil
}
