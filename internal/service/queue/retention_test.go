package queue_test

import (
	"context"
	"testing"
	"time"

	"waitlist-service/internal/repository/memory"
	queuesvc "waitlist-service/internal/service/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetention_SweepKeepsActiveEntries(t *testing.T) {
	ctx := context.Background()
	customers := memory.NewCustomerStore()
	store := memory.NewQueueStore(customers)
	svc := queuesvc.NewService(store, customers, zap.NewNop())

	a, err := svc.Join(ctx, "cafe-x", "A", "111")
	require.NoError(t, err)
	_, err = svc.Join(ctx, "cafe-x", "B", "222")
	require.NoError(t, err)
	_, err = svc.Complete(ctx, "cafe-x", a.CustomerID)
	require.NoError(t, err)

	// A negative max age puts the cutoff in the future.
	r := queuesvc.NewRetention(store, "@daily", -time.Minute, zap.NewNop())
	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries, err := svc.Snapshot(ctx, "cafe-x")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].Name)
}

func TestRetention_RejectsBadSchedule(t *testing.T) {
	r := queuesvc.NewRetention(memory.NewQueueStore(nil), "not a schedule", time.Hour, zap.NewNop())
	assert.Error(t, r.Start())
}
