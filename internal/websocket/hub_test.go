package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"

	"waitlist-service/internal/domain/queue"
	wstypes "waitlist-service/internal/domain/websocket"
	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	id   string
	mu   sync.Mutex
	msgs []*wstypes.WSMessage
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(msg *wstypes.WSMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return true
}

func (r *recorder) types() []wstypes.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wstypes.EventType, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Type)
	}
	return out
}

func (r *recorder) last() *wstypes.WSMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return nil
	}
	return r.msgs[len(r.msgs)-1]
}

// staticSource serves fixed snapshots per establishment.
type staticSource struct {
	mu      sync.Mutex
	entries map[string][]queue.Entry
	err     error
	calls   int
}

func (s *staticSource) Snapshot(_ context.Context, establishmentID string) ([]queue.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.entries[establishmentID], nil
}

func newTestHub(src SnapshotSource) *Hub {
	return NewHub(src, zap.NewNop())
}

func entriesOf(t *testing.T, msg *wstypes.WSMessage) []queue.Entry {
	t.Helper()
	data, ok := msg.Data.(wstypes.QueueUpdateData)
	require.True(t, ok, "unexpected payload %T", msg.Data)
	entries, ok := data.Entries.([]queue.Entry)
	require.True(t, ok)
	return entries
}

func TestHub_SubscribeSendsSnapshotToNewcomerOnly(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{entries: map[string][]queue.Entry{
		"cafe-x": {{CustomerID: "a", Status: queue.StatusWaiting, Position: 1}},
	}}
	hub := newTestHub(src)
	first := &recorder{id: "1"}
	second := &recorder{id: "2"}

	require.NoError(t, hub.Subscribe(ctx, first, "cafe-x"))
	require.NoError(t, hub.Subscribe(ctx, second, "cafe-x"))

	assert.Len(t, first.types(), 1)
	require.Len(t, second.types(), 1)
	assert.Equal(t, wstypes.EventTypeQueueUpdate, second.last().Type)
	assert.Len(t, entriesOf(t, second.last()), 1)
	assert.Equal(t, 2, hub.Subscribers("cafe-x"))
}

func TestHub_PublishReachesOnlyThatRoom(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(&staticSource{entries: map[string][]queue.Entry{}})
	a := &recorder{id: "a"}
	b := &recorder{id: "b"}
	require.NoError(t, hub.Subscribe(ctx, a, "cafe-x"))
	require.NoError(t, hub.Subscribe(ctx, b, "deli-y"))

	require.NoError(t, hub.Publish(ctx, "cafe-x"))
	assert.Len(t, a.types(), 2)
	assert.Len(t, b.types(), 1)

	// No subscribers: nothing to read, nothing to send.
	require.NoError(t, hub.Publish(ctx, "nobody-here"))
}

func TestHub_PublishCalledSendsSnapshotThenSignal(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(&staticSource{entries: map[string][]queue.Entry{}})
	a := &recorder{id: "a"}
	require.NoError(t, hub.Subscribe(ctx, a, "cafe-x"))

	require.NoError(t, hub.PublishCalled(ctx, "cafe-x", "cust-1"))
	assert.Equal(t, []wstypes.EventType{
		wstypes.EventTypeQueueUpdate,
		wstypes.EventTypeQueueUpdate,
		wstypes.EventTypeCustomerCalled,
	}, a.types())

	called, ok := a.last().Data.(wstypes.CustomerCalledData)
	require.True(t, ok)
	assert.Equal(t, "cust-1", called.CustomerID)
}

func TestHub_UnsubscribeRemovesFromEveryRoom(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(&staticSource{entries: map[string][]queue.Entry{}})
	a := &recorder{id: "a"}
	b := &recorder{id: "b"}
	require.NoError(t, hub.Subscribe(ctx, a, "cafe-x"))
	require.NoError(t, hub.Subscribe(ctx, a, "deli-y"))
	require.NoError(t, hub.Subscribe(ctx, b, "cafe-x"))

	hub.Unsubscribe(a)
	assert.Equal(t, 1, hub.Subscribers("cafe-x"))
	assert.Equal(t, 0, hub.Subscribers("deli-y"))
	assert.Equal(t, 1, hub.Stats().Rooms)

	before := len(a.types())
	require.NoError(t, hub.Publish(ctx, "cafe-x"))
	assert.Len(t, a.types(), before)

	// Resubscribing after the room emptied creates a fresh room.
	require.NoError(t, hub.Subscribe(ctx, a, "deli-y"))
	assert.Equal(t, 1, hub.Subscribers("deli-y"))
}

func TestHub_LeaveOneRoom(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(&staticSource{entries: map[string][]queue.Entry{}})
	a := &recorder{id: "a"}
	require.NoError(t, hub.Subscribe(ctx, a, "cafe-x"))
	require.NoError(t, hub.Subscribe(ctx, a, "deli-y"))

	hub.Leave(a, "cafe-x")
	assert.Equal(t, 0, hub.Subscribers("cafe-x"))
	assert.Equal(t, 1, hub.Subscribers("deli-y"))
}

func TestHub_StoreErrorSendsNothing(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{entries: map[string][]queue.Entry{}}
	hub := newTestHub(src)
	a := &recorder{id: "a"}
	require.NoError(t, hub.Subscribe(ctx, a, "cafe-x"))

	src.err = xerrors.NewStoreError("snapshot", errors.New("down"))
	err := hub.PublishCalled(ctx, "cafe-x", "cust-1")
	assert.True(t, xerrors.IsStoreError(err))
	assert.Len(t, a.types(), 1, "no snapshot and no called signal")
}

func TestHub_ConcurrentSubscribeAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(&staticSource{entries: map[string][]queue.Entry{}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := &recorder{id: string(rune('A' + i%26)) + string(rune('a'+i/26))}
			assert.NoError(t, hub.Subscribe(ctx, r, "cafe-x"))
			assert.NoError(t, hub.Publish(ctx, "cafe-x"))
			hub.Unsubscribe(r)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.Subscribers("cafe-x"))
}
