// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string // key id for rotation
	Ttl      time.Duration
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		Ttl:      ttl,
	}
}

// Token is a signed token plus the facts callers need to track it.
type Token struct {
	Value     string
	JTI       string
	ExpiresAt time.Time
}

// Generate signs a token for subject. establishmentID is empty for super admins.
func (g *Generator) Generate(subject, establishmentID string, roles []string) (*Token, error) {
	if g.priv == nil {
		return nil, fmt.Errorf("jwt generator has nil private key")
	}

	now := time.Now()
	expiresAt := now.Add(g.Ttl)
	jti := ulid.Make().String()

	claims := &Claims{
		EstablishmentID: establishmentID,
		Roles:           roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   subject,
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Token{Value: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// GenerateStaffToken issues the token an establishment's dashboard uses.
func (g *Generator) GenerateStaffToken(establishmentID string) (*Token, error) {
	return g.Generate(establishmentID, establishmentID, []string{RoleStaff})
}

// GenerateSuperAdminToken issues a platform operator token.
func (g *Generator) GenerateSuperAdminToken() (*Token, error) {
	return g.Generate(RoleSuperAdmin, "", []string{RoleSuperAdmin})
}
