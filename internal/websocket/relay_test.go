package websocket

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"waitlist-service/internal/domain/queue"
	wstypes "waitlist-service/internal/domain/websocket"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func announcementPayload(t *testing.T, a announcement) []byte {
	t.Helper()
	payload, err := json.Marshal(a)
	require.NoError(t, err)
	return payload
}

func relayFixture(t *testing.T) (*Relay, *recorder, *staticSource) {
	t.Helper()
	src := &staticSource{entries: map[string][]queue.Entry{
		"cafe-x": {{CustomerID: "a", Status: queue.StatusCalled, Position: 1}},
	}}
	hub := newTestHub(src)
	sink := &recorder{id: "screen"}
	require.NoError(t, hub.Subscribe(context.Background(), sink, "cafe-x"))
	return &Relay{hub: hub, origin: "instance-a", logger: zap.NewNop()}, sink, src
}

func TestRelay_UpdateFromPeerRepublishesSnapshot(t *testing.T) {
	relay, sink, _ := relayFixture(t)

	relay.handle(context.Background(), announcementPayload(t, announcement{
		Origin: "instance-b", EstablishmentID: "cafe-x", Kind: kindUpdate,
	}))

	assert.Equal(t, []wstypes.EventType{wstypes.EventTypeQueueUpdate, wstypes.EventTypeQueueUpdate}, sink.types())
	assert.Len(t, entriesOf(t, sink.last()), 1)
}

func TestRelay_CalledFromPeerSignalsCustomer(t *testing.T) {
	relay, sink, _ := relayFixture(t)

	relay.handle(context.Background(), announcementPayload(t, announcement{
		Origin: "instance-b", EstablishmentID: "cafe-x", Kind: kindCalled, CustomerID: "a",
	}))

	assert.Equal(t, []wstypes.EventType{
		wstypes.EventTypeQueueUpdate,
		wstypes.EventTypeQueueUpdate,
		wstypes.EventTypeCustomerCalled,
	}, sink.types())
	assert.Equal(t, "a", sink.last().Data.(wstypes.CustomerCalledData).CustomerID)
}

func TestRelay_IgnoresOwnAndMalformedAnnouncements(t *testing.T) {
	relay, sink, src := relayFixture(t)
	ctx := context.Background()
	readsBefore := src.calls

	relay.handle(ctx, announcementPayload(t, announcement{Origin: "instance-a", EstablishmentID: "cafe-x", Kind: kindUpdate}))
	relay.handle(ctx, announcementPayload(t, announcement{Origin: "instance-b", EstablishmentID: "", Kind: kindUpdate}))
	relay.handle(ctx, []byte("{not json"))

	assert.Len(t, sink.types(), 1, "only the initial snapshot")
	assert.Equal(t, readsBefore, src.calls, "no store reads")
}

func TestRelay_RedisRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	src := &staticSource{entries: map[string][]queue.Entry{}}
	sender := NewRelay(client, newTestHub(src), zap.NewNop())

	receiverHub := newTestHub(src)
	receiver := NewRelay(client, receiverHub, zap.NewNop())
	sink := &recorder{id: "screen"}
	require.NoError(t, receiverHub.Subscribe(ctx, sink, "cafe-x"))

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- receiver.Run(runCtx) }()

	// Announce until the subscription is live; publishes before it are lost.
	require.Eventually(t, func() bool {
		if err := sender.Announce(ctx, "cafe-x", "c1"); err != nil {
			return false
		}
		for _, typ := range sink.types() {
			if typ == wstypes.EventTypeCustomerCalled {
				return true
			}
		}
		return false
	}, 5*time.Second, 100*time.Millisecond)

	stop()
	assert.NoError(t, <-done)
}
