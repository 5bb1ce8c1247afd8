// internal/service/queue/identity.go
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"waitlist-service/internal/domain/queue"
	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// maxResolveAttempts bounds the lookup/create loop. A duplicate on create means
// another caller won the insert, so the second lookup finds it.
const maxResolveAttempts = 3

// IdentityResolver maps (name, phone) to a stable customer id.
type IdentityResolver struct {
	customers CustomerStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewIdentityResolver(customers CustomerStore, logger *zap.Logger) *IdentityResolver {
	return &IdentityResolver{
		customers: customers,
		logger:    logger,
		now:       time.Now,
	}
}

// Resolve returns the id of the customer owning phone, creating the customer on
// first sight. An existing customer's name is left as first seen.
func (r *IdentityResolver) Resolve(ctx context.Context, name, phone string) (string, error) {
	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		existing, err := r.customers.FindByPhone(ctx, phone)
		if err == nil {
			return existing.ID, nil
		}
		if !errors.Is(err, xerrors.ErrNotFound) {
			return "", err
		}

		c := &queue.Customer{
			ID:        ulid.Make().String(),
			Name:      name,
			Phone:     phone,
			CreatedAt: r.now().UTC(),
		}
		err = r.customers.Create(ctx, c)
		if err == nil {
			r.logger.Debug("customer created",
				zap.String("customer_id", c.ID),
			)
			return c.ID, nil
		}
		if !errors.Is(err, xerrors.ErrDuplicateEntry) {
			return "", err
		}
		r.logger.Debug("customer phone taken concurrently, retrying lookup", zap.Int("attempt", attempt+1))
	}
	return "", fmt.Errorf("resolve customer: %w", xerrors.ErrConflict)
}
