// internal/websocket/handler/queue.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"waitlist-service/internal/domain/queue"
	wstypes "waitlist-service/internal/domain/websocket"
	xerrors "waitlist-service/internal/pkg/errors"
	ws "waitlist-service/internal/websocket"

	"go.uber.org/zap"
)

// QueueService applies queue intents against the store.
type QueueService interface {
	Join(ctx context.Context, establishmentID, name, phone string) (*queue.Entry, error)
	Call(ctx context.Context, establishmentID, customerID string) (bool, error)
	Complete(ctx context.Context, establishmentID, customerID string) (bool, error)
	Status(ctx context.Context, establishmentID, customerID string) (*queue.Entry, error)
}

// Broadcaster pushes snapshots to the sinks subscribed to an establishment.
type Broadcaster interface {
	Subscribe(ctx context.Context, sink ws.Sink, establishmentID string) error
	Leave(sink ws.Sink, establishmentID string)
	Publish(ctx context.Context, establishmentID string) error
	PublishCalled(ctx context.Context, establishmentID, customerID string) error
}

// JoinLimiter caps add_customer per establishment and address. Optional.
type JoinLimiter interface {
	CheckJoinAttempt(ctx context.Context, establishmentID, ip string, limit int) (bool, error)
}

// QueueHandler is the per-connection dispatcher for queue intents. Every
// mutating intent publishes the establishment's snapshot, whether or not the
// store changed, so duplicate client events look the same as the first one.
type QueueHandler struct {
	queues    QueueService
	rooms     Broadcaster
	limiter   JoinLimiter
	joinLimit int
	logger    *zap.Logger
}

func NewQueueHandler(queues QueueService, rooms Broadcaster, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{
		queues: queues,
		rooms:  rooms,
		logger: logger,
	}
}

// WithJoinLimit enables add_customer throttling.
func (h *QueueHandler) WithJoinLimit(limiter JoinLimiter, perMinute int) *QueueHandler {
	h.limiter = limiter
	h.joinLimit = perMinute
	return h
}

// SupportedEvents returns events this handler supports
func (h *QueueHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeJoinRoom,
		wstypes.EventTypeLeaveRoom,
		wstypes.EventTypeAddCustomer,
		wstypes.EventTypeCallCustomer,
		wstypes.EventTypeRemoveCustomer,
		wstypes.EventTypeGetStatus,
	}
}

// HandleMessage processes queue-related messages
func (h *QueueHandler) HandleMessage(ctx context.Context, session ws.Session, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeJoinRoom:
		return h.handleJoinRoom(ctx, session, msg)

	case wstypes.EventTypeLeaveRoom:
		return h.handleLeaveRoom(session, msg)

	case wstypes.EventTypeAddCustomer:
		return h.handleAddCustomer(ctx, session, msg)

	case wstypes.EventTypeCallCustomer:
		return h.handleCallCustomer(ctx, session, msg)

	case wstypes.EventTypeRemoveCustomer:
		return h.handleRemoveCustomer(ctx, session, msg)

	case wstypes.EventTypeGetStatus:
		return h.handleGetStatus(ctx, session, msg)

	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

// handleJoinRoom subscribes the connection and sends it the current snapshot
func (h *QueueHandler) handleJoinRoom(ctx context.Context, session ws.Session, msg *wstypes.WSMessage) error {
	establishmentID, ok := h.roomID(session, msg)
	if !ok {
		return nil
	}
	return h.rooms.Subscribe(ctx, session, establishmentID)
}

func (h *QueueHandler) handleLeaveRoom(session ws.Session, msg *wstypes.WSMessage) error {
	establishmentID, ok := h.roomID(session, msg)
	if !ok {
		return nil
	}
	h.rooms.Leave(session, establishmentID)
	return nil
}

// handleAddCustomer resolves the customer, queues them and acknowledges the requester
func (h *QueueHandler) handleAddCustomer(ctx context.Context, session ws.Session, msg *wstypes.WSMessage) error {
	var req queue.AddCustomerRequest
	if err := msg.Bind(&req); err != nil {
		session.SendError("invalid_request", "Invalid add customer request", err.Error())
		return nil
	}
	establishmentID, ok := h.establishment(session, req.EstablishmentID)
	if !ok {
		return nil
	}

	if h.limiter != nil {
		allowed, err := h.limiter.CheckJoinAttempt(ctx, establishmentID, session.RemoteIP(), h.joinLimit)
		if err != nil {
			h.logger.Warn("join rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			session.SendError("rate_limited", "Too many join attempts", "try again in a minute")
			return nil
		}
	}

	entry, err := h.queues.Join(ctx, establishmentID, req.Name, req.Phone)
	if errors.Is(err, xerrors.ErrInvalidInput) {
		session.SendError("invalid_request", "Invalid add customer request", err.Error())
		return nil
	}
	if xerrors.IsNoop(err) {
		// Lost every race for the phone number. Nothing changed; the requester
		// gets the room's snapshot but no entry to acknowledge.
		h.logger.Debug("add customer was a no-op", zap.String("establishment_id", establishmentID), zap.Error(err))
		return h.rooms.Publish(ctx, establishmentID)
	}
	if err != nil {
		return err
	}

	if err := h.rooms.Publish(ctx, establishmentID); err != nil {
		return err
	}

	session.Send(wstypes.NewMessage(wstypes.EventTypeJoinSuccess, entry))
	return nil
}

// handleCallCustomer moves a waiting customer to called
func (h *QueueHandler) handleCallCustomer(ctx context.Context, session ws.Session, msg *wstypes.WSMessage) error {
	establishmentID, customerID, ok := h.customerAction(session, msg)
	if !ok {
		return nil
	}

	applied, err := h.queues.Call(ctx, establishmentID, customerID)
	if err != nil && !xerrors.IsNoop(err) {
		return err
	}
	if applied {
		return h.rooms.PublishCalled(ctx, establishmentID, customerID)
	}
	return h.rooms.Publish(ctx, establishmentID)
}

// handleRemoveCustomer completes a customer's entry from any active state
func (h *QueueHandler) handleRemoveCustomer(ctx context.Context, session ws.Session, msg *wstypes.WSMessage) error {
	establishmentID, customerID, ok := h.customerAction(session, msg)
	if !ok {
		return nil
	}

	if _, err := h.queues.Complete(ctx, establishmentID, customerID); err != nil && !xerrors.IsNoop(err) {
		return err
	}
	return h.rooms.Publish(ctx, establishmentID)
}

// handleGetStatus answers the requester with one entry. Unknown entries get no reply.
func (h *QueueHandler) handleGetStatus(ctx context.Context, session ws.Session, msg *wstypes.WSMessage) error {
	establishmentID, customerID, ok := h.customerAction(session, msg)
	if !ok {
		return nil
	}

	entry, err := h.queues.Status(ctx, establishmentID, customerID)
	if xerrors.IsNoop(err) {
		return nil
	}
	if err != nil {
		return err
	}

	session.Send(wstypes.NewMessage(wstypes.EventTypeStatusUpdate, entry))
	return nil
}

// roomID accepts either a bare establishment id or {"establishment_id": ...}.
func (h *QueueHandler) roomID(session ws.Session, msg *wstypes.WSMessage) (string, bool) {
	var raw string
	if err := json.Unmarshal(msg.Raw, &raw); err != nil {
		var req queue.RoomRequest
		if err := msg.Bind(&req); err != nil {
			session.SendError("invalid_request", "Invalid room request", err.Error())
			return "", false
		}
		raw = req.EstablishmentID
	}
	return h.establishment(session, raw)
}

func (h *QueueHandler) customerAction(session ws.Session, msg *wstypes.WSMessage) (string, string, bool) {
	var req queue.CustomerActionRequest
	if err := msg.Bind(&req); err != nil {
		session.SendError("invalid_request", "Invalid request", err.Error())
		return "", "", false
	}
	establishmentID, ok := h.establishment(session, req.EstablishmentID)
	if !ok {
		return "", "", false
	}
	if req.CustomerID == "" {
		session.SendError("invalid_request", "customer_id is required", "")
		return "", "", false
	}
	return establishmentID, req.CustomerID, true
}

func (h *QueueHandler) establishment(session ws.Session, raw string) (string, bool) {
	id, err := queue.NormalizeEstablishmentID(raw)
	if err != nil {
		session.SendError("invalid_establishment", "Invalid establishment id", err.Error())
		return "", false
	}
	return id, true
}
