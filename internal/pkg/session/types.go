// internal/pkg/session/types.go
package session

import "time"

// SessionData is what Redis holds for a signed-in staff member.
type SessionData struct {
	JTI             string    `json:"jti"`
	EstablishmentID string    `json:"establishment_id,omitempty"`
	Roles           []string  `json:"roles"`
	IPAddress       string    `json:"ip_address"`
	UserAgent       string    `json:"user_agent"`
	LoginAt         time.Time `json:"login_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}
