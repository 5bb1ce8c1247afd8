// internal/handlers/auth/auth_handler.go
package auth

import (
	"errors"
	"net/http"

	"waitlist-service/internal/domain/establishment"
	"waitlist-service/internal/middleware"
	xerrors "waitlist-service/internal/pkg/errors"
	"waitlist-service/internal/pkg/response"
	authUsecase "waitlist-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *authUsecase.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *authUsecase.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// ========== Registration ==========

// Register creates an establishment (public endpoint)
func (h *AuthHandler) Register(c *gin.Context) {
	var req establishment.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	est, err := h.authService.Register(c.Request.Context(), &req)
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput):
		response.ValidationError(c, "registration failed", err)
		return
	case errors.Is(err, xerrors.ErrDuplicateEntry):
		response.Conflict(c, "establishment already exists")
		return
	case err != nil:
		h.logger.Error("registration failed",
			zap.String("slug", req.Slug),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "registration failed", nil)
		return
	}

	response.Success(c, http.StatusCreated, "registration successful", est)
}

// ========== Login ==========

// Login handles establishment staff login
func (h *AuthHandler) Login(c *gin.Context) {
	var req establishment.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	loginResp, err := h.authService.Login(c.Request.Context(), &req, clientInfo(c))
	if err != nil {
		h.loginFailed(c, req.Slug, err)
		return
	}

	response.Success(c, http.StatusOK, "login successful", loginResp)
}

// SuperAdminLogin issues a platform operator token
func (h *AuthHandler) SuperAdminLogin(c *gin.Context) {
	var req establishment.SuperAdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	loginResp, err := h.authService.SuperAdminLogin(c.Request.Context(), &req, clientInfo(c))
	if err != nil {
		h.loginFailed(c, "", err)
		return
	}

	response.Success(c, http.StatusOK, "login successful", loginResp)
}

func (h *AuthHandler) loginFailed(c *gin.Context, slug string, err error) {
	switch {
	case errors.Is(err, xerrors.ErrRateLimited):
		response.TooManyRequests(c, "too many login attempts")
	case errors.Is(err, xerrors.ErrUnauthorized):
		response.Unauthorized(c, "invalid credentials")
	default:
		h.logger.Error("login failed",
			zap.String("slug", slug),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "login failed", nil)
	}
}

// ========== Logout ==========

// Logout revokes the presented token (requires auth)
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.MustGetClaims(c)

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		h.logger.Error("logout failed",
			zap.String("jti", claims.ID),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "logout failed", nil)
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// GetMe returns the caller's token identity (requires auth)
func (h *AuthHandler) GetMe(c *gin.Context) {
	claims := middleware.MustGetClaims(c)
	response.Success(c, http.StatusOK, "profile retrieved", gin.H{
		"establishment_id": claims.EstablishmentID,
		"roles":            claims.Roles,
		"expires_at":       claims.ExpiresAt,
	})
}

func clientInfo(c *gin.Context) authUsecase.ClientInfo {
	return authUsecase.ClientInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
