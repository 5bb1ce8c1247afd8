package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"waitlist-service/internal/pkg/jwt"
	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubValidator map[string]*jwt.Claims

func (s stubValidator) ValidateToken(_ context.Context, token string) (*jwt.Claims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, xerrors.ErrUnauthorized
}

func newEngine() (*gin.Engine, *AuthMiddleware) {
	gin.SetMode(gin.TestMode)
	mw := NewAuthMiddleware(stubValidator{
		"staff": {EstablishmentID: "cafe-x", Roles: []string{jwt.RoleStaff}, RegisteredClaims: gojwt.RegisteredClaims{ID: "j1"}},
		"root":  {Roles: []string{jwt.RoleSuperAdmin}, RegisteredClaims: gojwt.RegisteredClaims{ID: "j2"}},
	})
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop()), LoggingMiddleware(zap.NewNop()))
	r.GET("/me", mw.Auth(), func(c *gin.Context) {
		c.String(http.StatusOK, MustGetClaims(c).EstablishmentID)
	})
	r.GET("/admin", append(mw.SuperAdminOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })...)
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r, mw
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r, _ := newEngine()

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "forged").Code)

	w := do(r, "/me", "staff")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cafe-x", w.Body.String())
}

func TestSuperAdminOnly(t *testing.T) {
	r, _ := newEngine()
	assert.Equal(t, http.StatusForbidden, do(r, "/admin", "staff").Code)
	assert.Equal(t, http.StatusOK, do(r, "/admin", "root").Code)
}

func TestRecovery(t *testing.T) {
	r, _ := newEngine()
	assert.Equal(t, http.StatusInternalServerError, do(r, "/panic", "").Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	assert.True(t, OriginAllowed(nil, "anything"))
}
