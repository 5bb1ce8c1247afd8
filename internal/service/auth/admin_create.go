// internal/service/auth/admin_create.go
package auth

import (
	"context"
	"fmt"

	"waitlist-service/internal/domain/establishment"
	xerrors "waitlist-service/internal/pkg/errors"
	"waitlist-service/internal/pkg/jwt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ConfigureSuperAdmin hashes the operator password once at startup. An empty
// password leaves super admin login disabled.
func (s *AuthService) ConfigureSuperAdmin(password string) error {
	if password == "" {
		s.logger.Warn("SUPER_ADMIN_PASSWORD not set, super admin login disabled")
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	s.superAdminHash = hashedPassword
	s.logger.Info("super admin login enabled")
	return nil
}

// SuperAdminLogin issues a platform operator token.
func (s *AuthService) SuperAdminLogin(ctx context.Context, req *establishment.SuperAdminLoginRequest, client ClientInfo) (*establishment.LoginResponse, error) {
	if s.superAdminHash == nil {
		return nil, xerrors.ErrUnauthorized
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.CheckLoginAttempt(ctx, client.IPAddress, jwt.RoleSuperAdmin)
		if err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}
		if !allowed {
			return nil, xerrors.ErrRateLimited
		}
	}

	if err := bcrypt.CompareHashAndPassword(s.superAdminHash, []byte(req.Password)); err != nil {
		s.logger.Warn("super admin login rejected", zap.String("ip", client.IPAddress))
		return nil, xerrors.ErrUnauthorized
	}

	tok, err := s.jwtManager.Generator.GenerateSuperAdminToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	roles := []string{jwt.RoleSuperAdmin}
	if err := s.trackSession(ctx, tok, "", roles, client); err != nil {
		return nil, err
	}

	s.logger.Info("super admin logged in", zap.String("ip", client.IPAddress))
	return &establishment.LoginResponse{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		Roles:     roles,
	}, nil
}
