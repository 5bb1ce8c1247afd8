// internal/domain/establishment/entity.go
package establishment

import "time"

// Establishment is a tenant of the queue system; ID is its slug.
type Establishment struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
