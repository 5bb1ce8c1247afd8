// internal/pkg/jwt/loader.go
package jwt

import (
	"errors"
	"fmt"
	"os"
	"time"
)

type Config struct {
	PrivPath string
	PubPath  string
	Issuer   string
	Audience string
	TTL      time.Duration
	KID      string

	// AllowEphemeral falls back to a generated key pair when the PEM files are absent.
	AllowEphemeral bool
}

type Manager struct {
	Generator *Generator
	Verifier  *Verifier
	Ephemeral bool
}

func LoadAndBuild(cfg Config) (*Manager, error) {
	if cfg.AllowEphemeral && !exists(cfg.PrivPath) && !exists(cfg.PubPath) {
		priv, err := GenerateEphemeralKey()
		if err != nil {
			return nil, err
		}
		return &Manager{
			Generator: NewGenerator(priv, cfg.Issuer, cfg.Audience, cfg.KID, cfg.TTL),
			Verifier:  NewVerifier(&priv.PublicKey, cfg.Issuer, cfg.Audience),
			Ephemeral: true,
		}, nil
	}

	priv, err := LoadRSAPrivateKeyFromPEM(cfg.PrivPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key from %s: %w", cfg.PrivPath, err)
	}

	pub, err := LoadRSAPublicKeyFromPEM(cfg.PubPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load public key from %s: %w", cfg.PubPath, err)
	}

	return &Manager{
		Generator: NewGenerator(priv, cfg.Issuer, cfg.Audience, cfg.KID, cfg.TTL),
		Verifier:  NewVerifier(pub, cfg.Issuer, cfg.Audience),
	}, nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
