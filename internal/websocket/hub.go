// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"
	"sync/atomic"

	"waitlist-service/internal/domain/queue"
	wstypes "waitlist-service/internal/domain/websocket"

	"go.uber.org/zap"
)

// Sink is anything that can receive outbound events: a live socket, a test
// recorder, a long-poll buffer. Send must not block; false means the event was
// dropped.
type Sink interface {
	ID() string
	Send(msg *wstypes.WSMessage) bool
}

// SnapshotSource computes an establishment's ordered, positioned snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context, establishmentID string) ([]queue.Entry, error)
}

// room is one establishment's subscriber set. mu also serializes
// snapshot-and-send so two publishes for the same establishment cannot
// interleave their fanout.
type room struct {
	mu     sync.Mutex
	sinks  map[string]Sink
	closed bool
}

type Hub struct {
	// Rooms by establishment ID
	rooms map[string]*room
	// Establishments each sink is subscribed to, for unsubscribe on disconnect
	members map[string]map[string]struct{}
	mu      sync.RWMutex

	// Connection registration, serialized through Run
	clients    map[*Client]struct{}
	connected  atomic.Int64
	Register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Handler registry for modular message handling
	handlerRegistry *HandlerRegistry

	source SnapshotSource
	relay  *Relay
	logger *zap.Logger
}

func NewHub(source SnapshotSource, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:           make(map[string]*room),
		members:         make(map[string]map[string]struct{}),
		clients:         make(map[*Client]struct{}),
		Register:        make(chan *Client),
		unregister:      make(chan *Client),
		done:            make(chan struct{}),
		handlerRegistry: NewHandlerRegistry(),
		source:          source,
		logger:          logger,
	}
}

// SetRelay enables cross-instance fanout.
func (h *Hub) SetRelay(r *Relay) {
	h.relay = r
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage dispatches a message to its registered handler.
// handled is false when no handler claims the event type.
func (h *Hub) HandleClientMessage(ctx context.Context, session Session, msg *wstypes.WSMessage) (handled bool, err error) {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, session, msg)
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clients[client] = struct{}{}
	h.connected.Add(1)

	h.logger.Debug("client connected",
		zap.String("connection_id", client.ID()),
		zap.String("remote_ip", client.RemoteIP()),
		zap.Int("total", len(h.clients)),
	)

	client.Send(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"connection_id": client.ID(),
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	h.connected.Add(-1)
	h.Unsubscribe(client)
	client.Close()

	h.logger.Debug("client disconnected",
		zap.String("connection_id", client.ID()),
		zap.Int("total", len(h.clients)),
	)
}

// Subscribe adds sink to the establishment's room and sends it the current
// snapshot. The sink stays subscribed if the snapshot read fails; the next
// publish brings it up to date.
func (h *Hub) Subscribe(ctx context.Context, sink Sink, establishmentID string) error {
	for {
		r := h.roomFor(establishmentID)
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			h.dropRoom(establishmentID, r)
			continue
		}
		r.sinks[sink.ID()] = sink
		h.track(sink.ID(), establishmentID)

		err := h.sendSnapshot(ctx, establishmentID, []Sink{sink})
		r.mu.Unlock()
		return err
	}
}

// Leave removes sink from one establishment's room.
func (h *Hub) Leave(sink Sink, establishmentID string) {
	h.mu.Lock()
	if set, ok := h.members[sink.ID()]; ok {
		delete(set, establishmentID)
		if len(set) == 0 {
			delete(h.members, sink.ID())
		}
	}
	h.mu.Unlock()
	h.removeFromRoom(sink.ID(), establishmentID)
}

// Unsubscribe removes sink from every room it joined. Queue state is untouched.
func (h *Hub) Unsubscribe(sink Sink) {
	h.mu.Lock()
	set := h.members[sink.ID()]
	delete(h.members, sink.ID())
	h.mu.Unlock()

	for establishmentID := range set {
		h.removeFromRoom(sink.ID(), establishmentID)
	}
}

// Publish pushes the current snapshot to every local subscriber and announces
// the change to other instances.
func (h *Hub) Publish(ctx context.Context, establishmentID string) error {
	if err := h.publishLocal(ctx, establishmentID, ""); err != nil {
		return err
	}
	h.announce(ctx, establishmentID, "")
	return nil
}

// PublishCalled is Publish followed by a customer_called signal.
func (h *Hub) PublishCalled(ctx context.Context, establishmentID, customerID string) error {
	if err := h.publishLocal(ctx, establishmentID, customerID); err != nil {
		return err
	}
	h.announce(ctx, establishmentID, customerID)
	return nil
}

func (h *Hub) publishLocal(ctx context.Context, establishmentID, calledCustomerID string) error {
	h.mu.RLock()
	r := h.rooms[establishmentID]
	h.mu.RUnlock()
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.sinks) == 0 {
		return nil
	}

	sinks := make([]Sink, 0, len(r.sinks))
	for _, s := range r.sinks {
		sinks = append(sinks, s)
	}
	if err := h.sendSnapshot(ctx, establishmentID, sinks); err != nil {
		return err
	}

	if calledCustomerID != "" {
		msg := wstypes.NewMessage(wstypes.EventTypeCustomerCalled, wstypes.CustomerCalledData{
			EstablishmentID: establishmentID,
			CustomerID:      calledCustomerID,
		})
		for _, s := range sinks {
			s.Send(msg)
		}
	}
	return nil
}

// sendSnapshot must be called with the room lock held.
func (h *Hub) sendSnapshot(ctx context.Context, establishmentID string, sinks []Sink) error {
	entries, err := h.source.Snapshot(ctx, establishmentID)
	if err != nil {
		h.logger.Error("snapshot failed, nothing sent",
			zap.String("establishment_id", establishmentID),
			zap.Error(err),
		)
		return err
	}

	msg := wstypes.NewMessage(wstypes.EventTypeQueueUpdate, wstypes.QueueUpdateData{
		EstablishmentID: establishmentID,
		Entries:         entries,
	})
	for _, s := range sinks {
		if !s.Send(msg) {
			h.logger.Warn("queue update dropped",
				zap.String("establishment_id", establishmentID),
				zap.String("connection_id", s.ID()),
			)
		}
	}
	return nil
}

func (h *Hub) announce(ctx context.Context, establishmentID, calledCustomerID string) {
	if h.relay == nil {
		return
	}
	if err := h.relay.Announce(ctx, establishmentID, calledCustomerID); err != nil {
		h.logger.Warn("relay announce failed",
			zap.String("establishment_id", establishmentID),
			zap.Error(err),
		)
	}
}

func (h *Hub) roomFor(establishmentID string) *room {
	h.mu.RLock()
	r := h.rooms[establishmentID]
	h.mu.RUnlock()
	if r != nil {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r = h.rooms[establishmentID]; r == nil {
		r = &room{sinks: make(map[string]Sink)}
		h.rooms[establishmentID] = r
	}
	return r
}

func (h *Hub) track(sinkID, establishmentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.members[sinkID]
	if set == nil {
		set = make(map[string]struct{})
		h.members[sinkID] = set
	}
	set[establishmentID] = struct{}{}
}

func (h *Hub) removeFromRoom(sinkID, establishmentID string) {
	h.mu.RLock()
	r := h.rooms[establishmentID]
	h.mu.RUnlock()
	if r == nil {
		return
	}

	r.mu.Lock()
	delete(r.sinks, sinkID)
	empty := len(r.sinks) == 0
	if empty {
		r.closed = true
	}
	r.mu.Unlock()

	if empty {
		h.dropRoom(establishmentID, r)
	}
}

// dropRoom unmaps a closed room unless it was already replaced.
func (h *Hub) dropRoom(establishmentID string, r *room) {
	h.mu.Lock()
	if h.rooms[establishmentID] == r {
		delete(h.rooms, establishmentID)
	}
	h.mu.Unlock()
}

// Stats describes live connections for the ops endpoint.
type Stats struct {
	Connections int            `json:"connections"`
	Rooms       int            `json:"rooms"`
	Subscribers map[string]int `json:"subscribers"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	rooms := make(map[string]*room, len(h.rooms))
	for id, r := range h.rooms {
		rooms[id] = r
	}
	h.mu.RUnlock()

	st := Stats{Rooms: len(rooms), Connections: int(h.connected.Load()), Subscribers: make(map[string]int, len(rooms))}
	for id, r := range rooms {
		r.mu.Lock()
		st.Subscribers[id] = len(r.sinks)
		r.mu.Unlock()
	}
	return st
}

// Subscribers returns how many sinks are in an establishment's room.
func (h *Hub) Subscribers(establishmentID string) int {
	h.mu.RLock()
	r := h.rooms[establishmentID]
	h.mu.RUnlock()
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}

func (h *Hub) shutdown() {
	for client := range h.clients {
		h.Unsubscribe(client)
		client.Close()
	}
	h.clients = make(map[*Client]struct{})
	h.connected.Store(0)
}
