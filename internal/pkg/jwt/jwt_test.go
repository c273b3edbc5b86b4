package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestAccessTokenRoundTrip(t *testing.T) {
	key := testKey(t)
	gen := NewGenerator(key, "mileage", "fleet", "k1", time.Hour)
	ver := NewVerifier(&key.PublicKey, "mileage", "fleet")

	token, jti, err := gen.GenerateAccessToken(7, 42, []string{RoleAdmin})
	require.NoError(t, err)
	assert.NotEmpty(t, jti)

	claims, err := ver.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, jti, claims.ID)
	assert.True(t, claims.IsAdmin())

	tc := claims.TenantContext()
	assert.Equal(t, int64(42), tc.TenantID)
	assert.Equal(t, int64(7), tc.ActorID)
}

func TestVerifier_Rejects(t *testing.T) {
	key := testKey(t)
	ver := NewVerifier(&key.PublicKey, "mileage", "fleet")

	tests := []struct {
		name string
		gen  *Generator
		mint func(g *Generator) (string, string, error)
	}{
		{
			name: "wrong issuer",
			gen:  NewGenerator(key, "other", "fleet", "", time.Hour),
			mint: func(g *Generator) (string, string, error) { return g.GenerateAccessToken(1, 1, nil) },
		},
		{
			name: "wrong audience",
			gen:  NewGenerator(key, "mileage", "billing", "", time.Hour),
			mint: func(g *Generator) (string, string, error) { return g.GenerateAccessToken(1, 1, nil) },
		},
		{
			name: "expired",
			gen:  NewGenerator(key, "mileage", "fleet", "", -time.Minute),
			mint: func(g *Generator) (string, string, error) { return g.GenerateAccessToken(1, 1, nil) },
		},
		{
			name: "not an access token",
			gen:  NewGenerator(key, "mileage", "fleet", "", time.Hour),
			mint: func(g *Generator) (string, string, error) { return g.Generate(1, 1, nil, "refresh") },
		},
		{
			name: "signed by another key",
			gen:  NewGenerator(testKey(t), "mileage", "fleet", "", time.Hour),
			mint: func(g *Generator) (string, string, error) { return g.GenerateAccessToken(1, 1, nil) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := tt.mint(tt.gen)
			require.NoError(t, err)
			_, err = ver.VerifyAccessToken(token)
			assert.Error(t, err)
		})
	}
}

func TestGenerator_RequiresTenant(t *testing.T) {
	gen := NewGenerator(testKey(t), "mileage", "fleet", "", time.Hour)
	_, _, err := gen.GenerateAccessToken(1, 0, nil)
	assert.ErrorIs(t, err, ErrNoTenant)
}

func TestVerifier_TypedErrors(t *testing.T) {
	key := testKey(t)
	gen := NewGenerator(key, "mileage", "fleet", "k1", time.Hour)
	ver := NewVerifier(&key.PublicKey, "mileage", "fleet")

	refresh, _, err := gen.Generate(1, 1, nil, "refresh")
	require.NoError(t, err)
	_, err = ver.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, ErrNotAccessToken)

	expired := NewGenerator(key, "mileage", "fleet", "", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := expired.GenerateAccessToken(1, 1, nil)
	require.NoError(t, err)
	_, err = ver.Verify(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	// Within the tolerated skew
	skewed := NewGenerator(key, "mileage", "fleet", "", time.Hour)
	skewed.now = func() time.Time { return time.Now().Add(10 * time.Second) }
	token, _, err = skewed.GenerateAccessToken(1, 1, nil)
	require.NoError(t, err)
	_, err = ver.VerifyAccessToken(token)
	assert.NoError(t, err)
}

func writePEM(t *testing.T, dir, name, typ string, der []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der}), 0o600))
	return path
}

func TestLoadAndBuild(t *testing.T) {
	dir := t.TempDir()
	key, other := testKey(t), testKey(t)

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	cfg := Config{
		PrivPath: writePEM(t, dir, "priv.pem", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key)),
		PubPath:  writePEM(t, dir, "pub.pem", "PUBLIC KEY", pubDER),
		Issuer:   "mileage",
		Audience: "fleet",
		TTL:      time.Hour,
	}

	mgr, err := LoadAndBuild(cfg)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mgr.Generator.TTL())
	token, _, err := mgr.Generator.GenerateAccessToken(1, 2, nil)
	require.NoError(t, err)
	_, err = mgr.Verifier.VerifyAccessToken(token)
	require.NoError(t, err)

	mismatched := cfg
	mismatched.PrivPath = writePEM(t, dir, "other.pem", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(other))
	_, err = LoadAndBuild(mismatched)
	assert.ErrorContains(t, err, "does not match")

	noIssuer := cfg
	noIssuer.Issuer = ""
	_, err = LoadVerifier(noIssuer)
	assert.Error(t, err)

	noTTL := cfg
	noTTL.TTL = 0
	_, err = LoadAndBuild(noTTL)
	assert.Error(t, err)
}

func TestParseRSAKeys(t *testing.T) {
	key := testKey(t)

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	parsed, err := ParseRSAPrivateKey(pkcs1)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub, err := ParseRSAPublicKey(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))

	_, err = ParseRSAPublicKey([]byte("not a key"))
	assert.Error(t, err)
}
