// internal/domain/queue/entity.go
package queue

import "time"

// Customer is a person who joined at least one queue. Phone is the dedup key.
type Customer struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Entry is one customer's place in one establishment's queue.
type Entry struct {
	ID              string     `json:"id" db:"id"`
	EstablishmentID string     `json:"establishment_id" db:"establishment_id"`
	CustomerID      string     `json:"customer_id" db:"customer_id"`
	Status          Status     `json:"status" db:"status"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	CalledAt        *time.Time `json:"called_at,omitempty" db:"called_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// Filled from the customer record on reads.
	Name  string `json:"name"`
	Phone string `json:"phone"`

	// Position is the 1-based rank among waiting entries; zero when not waiting.
	Position int `json:"position,omitempty"`
}

// IsActive reports whether the entry still occupies the queue.
func (e *Entry) IsActive() bool {
	return e.Status.IsActive()
}

// AssignPositions ranks the waiting entries of an ordered snapshot in place.
// Entries must already be sorted by creation time.
func AssignPositions(entries []Entry) {
	pos := 0
	for i := range entries {
		if entries[i].Status == StatusWaiting {
			pos++
			entries[i].Position = pos
		} else {
			entries[i].Position = 0
		}
	}
}

// Stats summarises a snapshot for dashboards.
type Stats struct {
	Waiting int `json:"waiting"`
	Called  int `json:"called"`
}

// Summarize counts the active entries of a snapshot by state.
func Summarize(entries []Entry) Stats {
	var st Stats
	for _, e := range entries {
		switch e.Status {
		case StatusWaiting:
			st.Waiting++
		case StatusCalled:
			st.Called++
		}
	}
	return st
}
