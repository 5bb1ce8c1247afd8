// internal/domain/establishment/dto.go
package establishment

import "time"

type RegisterRequest struct {
	Slug     string `json:"slug" binding:"required,max=63"`
	Name     string `json:"name" binding:"required,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type LoginRequest struct {
	Slug     string `json:"slug" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SuperAdminLoginRequest struct {
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token         string         `json:"token"`
	ExpiresAt     time.Time      `json:"expires_at"`
	Establishment *Establishment `json:"establishment,omitempty"`
	Roles         []string       `json:"roles"`
}
