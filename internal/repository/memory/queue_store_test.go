package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"waitlist-service/internal/domain/queue"
	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) (*QueueStore, *CustomerStore) {
	t.Helper()
	customers := NewCustomerStore()
	return NewQueueStore(customers), customers
}

func TestQueueStore_InsertIfAbsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, customers := newStores(t)
	require.NoError(t, customers.Create(ctx, &queue.Customer{ID: "c1", Name: "Ann", Phone: "111"}))

	first, created, err := store.InsertIfAbsent(ctx, "cafe-x", "c1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, queue.StatusWaiting, first.Status)
	assert.Equal(t, "Ann", first.Name)

	again, created, err := store.InsertIfAbsent(ctx, "cafe-x", "c1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.CreatedAt, again.CreatedAt)
}

func TestQueueStore_SnapshotOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	store, _ := newStores(t)

	for _, id := range []string{"a", "b", "c"} {
		_, _, err := store.InsertIfAbsent(ctx, "cafe-x", id)
		require.NoError(t, err)
	}
	_, _, err := store.InsertIfAbsent(ctx, "other", "z")
	require.NoError(t, err)

	ok, err := store.Transition(ctx, "cafe-x", "b", queue.StatusWaiting, queue.StatusCompleted)
	require.NoError(t, err)
	require.True(t, ok)

	snap, err := store.Snapshot(ctx, "cafe-x")
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].CustomerID)
	assert.Equal(t, "c", snap[1].CustomerID)
	assert.True(t, snap[0].CreatedAt.Before(snap[1].CreatedAt))
}

func TestQueueStore_TransitionRules(t *testing.T) {
	ctx := context.Background()
	store, _ := newStores(t)
	_, _, err := store.InsertIfAbsent(ctx, "cafe-x", "a")
	require.NoError(t, err)

	ok, err := store.Transition(ctx, "cafe-x", "a", queue.StatusWaiting, queue.StatusCalled)
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale from-state.
	ok, err = store.Transition(ctx, "cafe-x", "a", queue.StatusWaiting, queue.StatusCalled)
	require.NoError(t, err)
	assert.False(t, ok)

	e, err := store.FindActive(ctx, "cafe-x", "a")
	require.NoError(t, err)
	assert.Equal(t, queue.StatusCalled, e.Status)
	assert.NotNil(t, e.CalledAt)

	ok, err = store.Transition(ctx, "cafe-x", "a", queue.StatusCalled, queue.StatusCompleted)
	require.NoError(t, err)
	assert.True(t, ok)

	// completed is terminal and no longer active.
	ok, err = store.Transition(ctx, "cafe-x", "a", queue.StatusCompleted, queue.StatusWaiting)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = store.FindActive(ctx, "cafe-x", "a")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	// Missing entry.
	ok, err = store.Transition(ctx, "cafe-x", "ghost", queue.StatusWaiting, queue.StatusCalled)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueueStore_RejoinAfterCompletionCreatesNewEntry(t *testing.T) {
	ctx := context.Background()
	store, _ := newStores(t)

	first, _, err := store.InsertIfAbsent(ctx, "cafe-x", "a")
	require.NoError(t, err)
	_, err = store.Transition(ctx, "cafe-x", "a", queue.StatusWaiting, queue.StatusCompleted)
	require.NoError(t, err)

	second, created, err := store.InsertIfAbsent(ctx, "cafe-x", "a")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestQueueStore_ConcurrentInsertsKeepOneActiveEntry(t *testing.T) {
	ctx := context.Background()
	store, _ := newStores(t)

	const workers = 64
	var (
		wg      sync.WaitGroup
		created atomic.Int32
		ids     sync.Map
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			e, ok, err := store.InsertIfAbsent(ctx, "cafe-x", "a")
			assert.NoError(t, err)
			if ok {
				created.Add(1)
			}
			ids.Store(e.ID, struct{}{})
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, created.Load())
	n := 0
	ids.Range(func(_, _ any) bool { n++; return true })
	assert.Equal(t, 1, n)

	snap, err := store.Snapshot(ctx, "cafe-x")
	require.NoError(t, err)
	assert.Len(t, snap, 1)
}

func TestQueueStore_ConcurrentTransitionsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	store, _ := newStores(t)
	_, _, err := store.InsertIfAbsent(ctx, "cafe-x", "a")
	require.NoError(t, err)

	const workers = 32
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		to := queue.StatusCalled
		if i%2 == 0 {
			to = queue.StatusCompleted
		}
		go func() {
			defer wg.Done()
			ok, err := store.Transition(ctx, "cafe-x", "a", queue.StatusWaiting, to)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestQueueStore_PurgeCompleted(t *testing.T) {
	ctx := context.Background()
	store, _ := newStores(t)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	_, _, err := store.InsertIfAbsent(ctx, "cafe-x", "a")
	require.NoError(t, err)
	_, _, err = store.InsertIfAbsent(ctx, "cafe-x", "b")
	require.NoError(t, err)
	_, err = store.Transition(ctx, "cafe-x", "a", queue.StatusWaiting, queue.StatusCompleted)
	require.NoError(t, err)

	n, err := store.PurgeCompleted(ctx, clock.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.PurgeCompleted(ctx, clock.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	snap, err := store.Snapshot(ctx, "cafe-x")
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "b", snap[0].CustomerID)
}

func TestQueueStore_CancelledContextIsStoreError(t *testing.T) {
	store, _ := newStores(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Snapshot(ctx, "cafe-x")
	assert.True(t, xerrors.IsStoreError(err))
}

func partitionCount(s *QueueStore) int {
	n := 0
	s.partitions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestQueueStore_ReadsOnUnknownEstablishmentsAllocateNothing(t *testing.T) {
	store, _ := newStores(t)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("ghost-%d", i)

		entries, err := store.Snapshot(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)

		_, err = store.FindActive(ctx, id, "c1")
		assert.ErrorIs(t, err, xerrors.ErrNotFound)

		applied, err := store.Transition(ctx, id, "c1", queue.StatusWaiting, queue.StatusCalled)
		require.NoError(t, err)
		assert.False(t, applied)
	}
	assert.Equal(t, 0, partitionCount(store))

	_, _, err := store.InsertIfAbsent(ctx, "cafe-x", "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, partitionCount(store))
}

func TestCustomerStore_DuplicatePhone(t *testing.T) {
	ctx := context.Background()
	customers := NewCustomerStore()
	require.NoError(t, customers.Create(ctx, &queue.Customer{ID: "c1", Name: "Ann", Phone: "111"}))

	err := customers.Create(ctx, &queue.Customer{ID: "c2", Name: "Bob", Phone: "111"})
	assert.ErrorIs(t, err, xerrors.ErrDuplicateEntry)

	c, err := customers.FindByPhone(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, 1, customers.Count())

	_, err = customers.FindByPhone(ctx, "999")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}
