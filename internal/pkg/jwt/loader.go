// internal/pkg/jwt/loader.go
package jwt

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	PrivPath string
	PubPath  string
	Issuer   string
	Audience string
	TTL      time.Duration
	KID      string
}

func (c Config) validate() error {
	if c.Issuer == "" || c.Audience == "" {
		return errors.New("jwt issuer and audience must be set")
	}
	return nil
}

// Manager pairs a generator with the verifier for the same key pair.
type Manager struct {
	Generator *Generator
	Verifier  *Verifier
}

// LoadAndBuild loads both keys and checks that they belong together.
func LoadAndBuild(cfg Config) (*Manager, error) {
	ver, err := LoadVerifier(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("jwt ttl must be positive, got %s", cfg.TTL)
	}

	priv, err := LoadRSAPrivateKeyFromPEM(cfg.PrivPath)
	if err != nil {
		return nil, fmt.Errorf("load private key %s: %w", cfg.PrivPath, err)
	}
	if !priv.PublicKey.Equal(ver.pub) {
		return nil, fmt.Errorf("private key %s does not match public key %s", cfg.PrivPath, cfg.PubPath)
	}

	return &Manager{
		Generator: NewGenerator(priv, cfg.Issuer, cfg.Audience, cfg.KID, cfg.TTL),
		Verifier:  ver,
	}, nil
}

// LoadVerifier loads the public key only. The API server never signs tokens.
func LoadVerifier(cfg Config) (*Verifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pub, err := LoadRSAPublicKeyFromPEM(cfg.PubPath)
	if err != nil {
		return nil, fmt.Errorf("load public key %s: %w", cfg.PubPath, err)
	}
	return NewVerifier(pub, cfg.Issuer, cfg.Audience), nil
}
