// internal/service/queue/store.go
package queue

import (
	"context"
	"time"

	"waitlist-service/internal/domain/queue"
)

// QueueStore is the per-establishment entry set. Every method is scoped by
// establishmentID and must be atomic with respect to other calls on the same
// establishment. Implementations: repository/memory, repository/postgres.
type QueueStore interface {
	// Snapshot returns the active entries ordered by creation time, enriched with
	// the customer's name and phone.
	Snapshot(ctx context.Context, establishmentID string) ([]queue.Entry, error)

	// InsertIfAbsent creates a waiting entry unless the customer already has an
	// active one, in which case that entry is returned unchanged. created reports
	// which of the two happened.
	InsertIfAbsent(ctx context.Context, establishmentID, customerID string) (entry *queue.Entry, created bool, err error)

	// Transition moves the customer's active entry from -> to. It reports false
	// when there is no active entry or its status is not from.
	Transition(ctx context.Context, establishmentID, customerID string, from, to queue.Status) (bool, error)

	// FindActive returns the customer's active entry or xerrors.ErrNotFound.
	FindActive(ctx context.Context, establishmentID, customerID string) (*queue.Entry, error)

	// PurgeCompleted deletes completed entries finished before cutoff.
	PurgeCompleted(ctx context.Context, cutoff time.Time) (int64, error)
}

// CustomerStore holds customers keyed by a unique phone number.
type CustomerStore interface {
	// FindByPhone returns xerrors.ErrNotFound when no customer has that phone.
	FindByPhone(ctx context.Context, phone string) (*queue.Customer, error)

	// Create inserts a customer and returns xerrors.ErrDuplicateEntry when the
	// phone is already taken.
	Create(ctx context.Context, c *queue.Customer) error
}
