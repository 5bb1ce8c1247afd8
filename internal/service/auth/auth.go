// internal/service/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"waitlist-service/internal/domain/establishment"
	"waitlist-service/internal/domain/queue"
	xerrors "waitlist-service/internal/pkg/errors"
	"waitlist-service/internal/pkg/jwt"
	"waitlist-service/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type EstablishmentRepository interface {
	Create(ctx context.Context, e *establishment.Establishment) error
	FindByID(ctx context.Context, id string) (*establishment.Establishment, error)
	List(ctx context.Context, limit, offset int) ([]establishment.Establishment, error)
}

// SessionStore tracks issued tokens. Optional: without it tokens are only
// checked for signature and expiry, and logout cannot revoke them.
type SessionStore interface {
	CreateSession(ctx context.Context, s *session.SessionData) error
	InvalidateSession(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
}

// LoginLimiter throttles password guessing. Optional.
type LoginLimiter interface {
	CheckLoginAttempt(ctx context.Context, ip, slug string) (bool, int64, error)
	ResetLoginAttempts(ctx context.Context, ip, slug string) error
}

// ClientInfo describes who is calling, for sessions and rate limits.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type AuthService struct {
	repo           EstablishmentRepository
	jwtManager     *jwt.Manager
	sessions       SessionStore
	limiter        LoginLimiter
	superAdminHash []byte
	logger         *zap.Logger
}

func NewAuthService(
	repo EstablishmentRepository,
	jwtManager *jwt.Manager,
	sessions SessionStore,
	limiter LoginLimiter,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		repo:       repo,
		jwtManager: jwtManager,
		sessions:   sessions,
		limiter:    limiter,
		logger:     logger,
	}
}

// ========== Registration ==========

// Register creates an establishment. The slug becomes its queue partition key.
func (s *AuthService) Register(ctx context.Context, req *establishment.RegisterRequest) (*establishment.Establishment, error) {
	slug, err := queue.NormalizeEstablishmentID(req.Slug)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}
	name, err := queue.NormalizeName(req.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	est := &establishment.Establishment{
		ID:           slug,
		Name:         name,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, est); err != nil {
		return nil, err
	}

	s.logger.Info("establishment registered", zap.String("establishment_id", slug))
	return est, nil
}

// ========== Login ==========

// Login authenticates an establishment with slug/password
func (s *AuthService) Login(ctx context.Context, req *establishment.LoginRequest, client ClientInfo) (*establishment.LoginResponse, error) {
	slug, err := queue.NormalizeEstablishmentID(req.Slug)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.CheckLoginAttempt(ctx, client.IPAddress, slug)
		if err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}
		if !allowed {
			return nil, xerrors.ErrRateLimited
		}
	}

	est, err := s.repo.FindByID(ctx, slug)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, xerrors.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(est.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Debug("login rejected", zap.String("establishment_id", slug))
		return nil, xerrors.ErrUnauthorized
	}

	if s.limiter != nil {
		if err := s.limiter.ResetLoginAttempts(ctx, client.IPAddress, slug); err != nil {
			s.logger.Warn("failed to reset login attempts", zap.Error(err))
		}
	}

	tok, err := s.jwtManager.Generator.GenerateStaffToken(est.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	roles := []string{jwt.RoleStaff}
	if err := s.trackSession(ctx, tok, est.ID, roles, client); err != nil {
		return nil, err
	}

	s.logger.Info("establishment logged in", zap.String("establishment_id", est.ID))
	return &establishment.LoginResponse{
		Token:         tok.Value,
		ExpiresAt:     tok.ExpiresAt,
		Establishment: est,
		Roles:         roles,
	}, nil
}

// ========== Logout ==========

// Logout revokes the token the claims came from.
func (s *AuthService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if s.sessions == nil {
		return nil
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.sessions.InvalidateSession(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// ValidateToken validates a JWT token and, when sessions are tracked, its revocation state
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrUnauthorized, err)
	}

	if s.sessions != nil {
		blacklisted, err := s.sessions.IsTokenBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check blacklist: %w", err)
		}
		if blacklisted {
			return nil, xerrors.ErrSessionExpired
		}
	}

	return claims, nil
}

// ListEstablishments pages through registered establishments, newest first.
func (s *AuthService) ListEstablishments(ctx context.Context, limit, offset int) ([]establishment.Establishment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *AuthService) trackSession(ctx context.Context, tok *jwt.Token, establishmentID string, roles []string, client ClientInfo) error {
	if s.sessions == nil {
		return nil
	}
	err := s.sessions.CreateSession(ctx, &session.SessionData{
		JTI:             tok.JTI,
		EstablishmentID: establishmentID,
		Roles:           roles,
		IPAddress:       client.IPAddress,
		UserAgent:       client.UserAgent,
		LoginAt:         time.Now(),
		ExpiresAt:       tok.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create session cache: %w", err)
	}
	return nil
}
