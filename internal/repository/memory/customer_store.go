// internal/repository/memory/customer_store.go
package memory

import (
	"context"
	"sync"

	"waitlist-service/internal/domain/queue"
	xerrors "waitlist-service/internal/pkg/errors"
)

// CustomerStore enforces phone uniqueness under a single lock, the in-memory
// equivalent of the unique constraint on customers.phone.
type CustomerStore struct {
	mu      sync.RWMutex
	byPhone map[string]*queue.Customer
	ids     map[string]*queue.Customer
}

func NewCustomerStore() *CustomerStore {
	return &CustomerStore{
		byPhone: make(map[string]*queue.Customer),
		ids:     make(map[string]*queue.Customer),
	}
}

func (s *CustomerStore) FindByPhone(ctx context.Context, phone string) (*queue.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, xerrors.NewStoreError("find customer", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byPhone[phone]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *CustomerStore) Create(ctx context.Context, c *queue.Customer) error {
	if err := ctx.Err(); err != nil {
		return xerrors.NewStoreError("create customer", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byPhone[c.Phone]; taken {
		return xerrors.ErrDuplicateEntry
	}
	cp := *c
	s.byPhone[c.Phone] = &cp
	s.ids[c.ID] = &cp
	return nil
}

// Count returns the number of customers stored.
func (s *CustomerStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func (s *CustomerStore) byID(id string) (queue.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.ids[id]
	if !ok {
		return queue.Customer{}, false
	}
	return *c, true
}
