// internal/repository/memory/establishment_store.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"waitlist-service/internal/domain/establishment"
	xerrors "waitlist-service/internal/pkg/errors"
)

type EstablishmentStore struct {
	mu    sync.RWMutex
	items map[string]*establishment.Establishment
}

func NewEstablishmentStore() *EstablishmentStore {
	return &EstablishmentStore{items: make(map[string]*establishment.Establishment)}
}

func (s *EstablishmentStore) Create(_ context.Context, e *establishment.Establishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[e.ID]; ok {
		return xerrors.ErrDuplicateEntry
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	s.items[e.ID] = &cp
	return nil
}

func (s *EstablishmentStore) FindByID(_ context.Context, id string) (*establishment.Establishment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// List returns establishments newest first.
func (s *EstablishmentStore) List(_ context.Context, limit, offset int) ([]establishment.Establishment, error) {
	s.mu.RLock()
	list := make([]establishment.Establishment, 0, len(s.items))
	for _, e := range s.items {
		list = append(list, *e)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if offset >= len(list) {
		return []establishment.Establishment{}, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}
