// internal/websocket/relay.go
package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RelayChannel carries room announcements between instances.
const RelayChannel = "waitlist:rooms"

// announcement tells other instances that an establishment changed. It carries
// no queue state: receivers re-read the shared store.
type announcement struct {
	Origin          string `json:"origin"`
	EstablishmentID string `json:"establishment_id"`
	Kind            string `json:"kind"`
	CustomerID      string `json:"customer_id,omitempty"`
}

const (
	kindUpdate = "update"
	kindCalled = "called"
)

// Relay fans publishes out to hubs running in other processes over Redis pub/sub.
type Relay struct {
	client *redis.Client
	hub    *Hub
	origin string
	logger *zap.Logger
}

func NewRelay(client *redis.Client, hub *Hub, logger *zap.Logger) *Relay {
	r := &Relay{
		client: client,
		hub:    hub,
		origin: uuid.NewString(),
		logger: logger,
	}
	hub.SetRelay(r)
	return r
}

// Announce publishes a change of establishmentID. calledCustomerID is set when
// the change was a call.
func (r *Relay) Announce(ctx context.Context, establishmentID, calledCustomerID string) error {
	a := announcement{
		Origin:          r.origin,
		EstablishmentID: establishmentID,
		Kind:            kindUpdate,
	}
	if calledCustomerID != "" {
		a.Kind = kindCalled
		a.CustomerID = calledCustomerID
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal announcement: %w", err)
	}
	return r.client.Publish(ctx, RelayChannel, payload).Err()
}

// Run consumes announcements until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, RelayChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", RelayChannel, err)
	}
	r.logger.Info("room relay subscribed", zap.String("channel", RelayChannel), zap.String("origin", r.origin))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (r *Relay) handle(ctx context.Context, payload []byte) {
	var a announcement
	if err := json.Unmarshal(payload, &a); err != nil {
		r.logger.Warn("ignoring malformed announcement", zap.Error(err))
		return
	}
	if a.Origin == r.origin || a.EstablishmentID == "" {
		return
	}

	called := ""
	if a.Kind == kindCalled {
		called = a.CustomerID
	}
	if err := r.hub.publishLocal(ctx, a.EstablishmentID, called); err != nil {
		r.logger.Warn("relayed publish failed",
			zap.String("establishment_id", a.EstablishmentID),
			zap.Error(err),
		)
	}
}
