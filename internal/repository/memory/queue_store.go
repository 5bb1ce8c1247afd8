// internal/repository/memory/queue_store.go
package memory

import (
	"context"
	"sync"
	"time"

	"waitlist-service/internal/domain/queue"
	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
)

// partition is one establishment's entries in insertion order. Its mutex is the
// serialization point for that establishment only.
type partition struct {
	mu      sync.Mutex
	entries []*queue.Entry
	last    time.Time
}

// QueueStore keeps queues in process memory. State is lost on restart.
type QueueStore struct {
	partitions sync.Map // establishmentID -> *partition
	customers  *CustomerStore
	now        func() time.Time
}

func NewQueueStore(customers *CustomerStore) *QueueStore {
	return &QueueStore{
		customers: customers,
		now:       time.Now,
	}
}

// partition creates the establishment's partition on first use. Only inserts
// call it; read paths use lookup so unknown ids leave no trace.
func (s *QueueStore) partition(establishmentID string) *partition {
	if p, ok := s.partitions.Load(establishmentID); ok {
		return p.(*partition)
	}
	p, _ := s.partitions.LoadOrStore(establishmentID, &partition{})
	return p.(*partition)
}

func (s *QueueStore) lookup(establishmentID string) (*partition, bool) {
	p, ok := s.partitions.Load(establishmentID)
	if !ok {
		return nil, false
	}
	return p.(*partition), true
}

func (s *QueueStore) Snapshot(ctx context.Context, establishmentID string) ([]queue.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, xerrors.NewStoreError("snapshot", err)
	}
	p, ok := s.lookup(establishmentID)
	if !ok {
		return []queue.Entry{}, nil
	}
	p.mu.Lock()
	out := make([]queue.Entry, 0, len(p.entries))
	for _, e := range p.entries {
		if e.IsActive() {
			out = append(out, s.enrich(*e))
		}
	}
	p.mu.Unlock()
	return out, nil
}

func (s *QueueStore) InsertIfAbsent(ctx context.Context, establishmentID, customerID string) (*queue.Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, xerrors.NewStoreError("insert entry", err)
	}
	p := s.partition(establishmentID)
	p.mu.Lock()
	defer p.mu.Unlock()

	if e := p.active(customerID); e != nil {
		out := s.enrich(*e)
		return &out, false, nil
	}

	// Strictly increasing timestamps keep FIFO order unambiguous.
	created := s.now().UTC()
	if !created.After(p.last) {
		created = p.last.Add(time.Microsecond)
	}
	p.last = created

	e := &queue.Entry{
		ID:              ulid.Make().String(),
		EstablishmentID: establishmentID,
		CustomerID:      customerID,
		Status:          queue.StatusWaiting,
		CreatedAt:       created,
	}
	p.entries = append(p.entries, e)
	out := s.enrich(*e)
	return &out, true, nil
}

func (s *QueueStore) Transition(ctx context.Context, establishmentID, customerID string, from, to queue.Status) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, xerrors.NewStoreError("transition", err)
	}
	if !queue.CanTransition(from, to) {
		return false, nil
	}
	p, ok := s.lookup(establishmentID)
	if !ok {
		return false, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.active(customerID)
	if e == nil || e.Status != from {
		return false, nil
	}
	now := s.now().UTC()
	e.Status = to
	switch to {
	case queue.StatusCalled:
		e.CalledAt = &now
	case queue.StatusCompleted:
		e.CompletedAt = &now
	}
	return true, nil
}

func (s *QueueStore) FindActive(ctx context.Context, establishmentID, customerID string) (*queue.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, xerrors.NewStoreError("find active entry", err)
	}
	p, ok := s.lookup(establishmentID)
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.active(customerID)
	if e == nil {
		return nil, xerrors.ErrNotFound
	}
	out := s.enrich(*e)
	return &out, nil
}

// PurgeCompleted visits partitions one at a time.
func (s *QueueStore) PurgeCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	s.partitions.Range(func(_, value any) bool {
		if ctx.Err() != nil {
			return false
		}
		p := value.(*partition)
		p.mu.Lock()
		kept := p.entries[:0]
		for _, e := range p.entries {
			if e.Status == queue.StatusCompleted && e.CompletedAt != nil && e.CompletedAt.Before(cutoff) {
				purged++
				continue
			}
			kept = append(kept, e)
		}
		for i := len(kept); i < len(p.entries); i++ {
			p.entries[i] = nil
		}
		p.entries = kept
		p.mu.Unlock()
		return true
	})
	if err := ctx.Err(); err != nil {
		return purged, xerrors.NewStoreError("purge completed", err)
	}
	return purged, nil
}

// active must be called with p.mu held.
func (p *partition) active(customerID string) *queue.Entry {
	for _, e := range p.entries {
		if e.CustomerID == customerID && e.IsActive() {
			return e
		}
	}
	return nil
}

func (s *QueueStore) enrich(e queue.Entry) queue.Entry {
	if s.customers == nil {
		return e
	}
	if c, ok := s.customers.byID(e.CustomerID); ok {
		e.Name = c.Name
		e.Phone = c.Phone
	}
	return e
}
