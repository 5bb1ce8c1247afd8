// internal/websocket/client.go
package websocket

import (
	"context"
	"sync"
	"time"

	wstypes "waitlist-service/internal/domain/websocket"
	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512KB
	sendBuffer     = 256

	// handlerTimeout bounds one intent. Intents run detached from the
	// connection so a dropped socket cannot abort a mutation halfway.
	handlerTimeout = 10 * time.Second
)

// ClientOptions configures per-connection limits.
type ClientOptions struct {
	RemoteIP          string
	MessagesPerSecond float64
	MessageBurst      int
}

type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	remoteIP string
	limiter  *rate.Limiter
	logger   *zap.Logger

	// Context for graceful shutdown
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	return &Client{
		id:       id,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		remoteIP: opts.RemoteIP,
		limiter:  rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.MessageBurst),
		logger:   hub.logger.With(zap.String("connection_id", id)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID returns the connection id
func (c *Client) ID() string {
	return c.id
}

// RemoteIP returns the address the connection came from
func (c *Client) RemoteIP() string {
	return c.remoteIP
}

// ReadPump handles incoming messages from client
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.SendError("rate_limited", "Too many messages", "slow down and retry")
			continue
		}

		c.handleMessage(message)
	}
}

// WritePump handles outgoing messages to client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// handleMessage processes incoming messages from client
func (c *Client) handleMessage(data []byte) {
	msg, err := wstypes.ParseMessage(data)
	if err != nil {
		c.SendError("invalid_message", "Failed to parse message", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	handled, err := c.hub.HandleClientMessage(ctx, c, msg)
	switch {
	case err == nil:
	case xerrors.IsStoreError(err):
		// The intent is dropped without a reply and the client retries.
		c.logger.Error("intent dropped",
			zap.String("type", string(msg.Type)),
			zap.Error(err),
		)
		return
	case xerrors.IsNoop(err):
		c.logger.Debug("intent was a no-op", zap.String("type", string(msg.Type)), zap.Error(err))
		return
	default:
		c.logger.Error("intent failed",
			zap.String("type", string(msg.Type)),
			zap.Error(err),
		)
		c.SendError("internal_error", "Request could not be processed", "")
		return
	}
	if handled {
		return
	}

	// Built-in message handling
	switch msg.Type {
	case wstypes.EventTypePing:
		c.Send(wstypes.NewMessage(wstypes.EventTypePong, nil))
	default:
		c.SendError("unknown_event", "Unsupported event type", string(msg.Type))
	}
}

// Send queues a message without blocking. A client whose buffer is full is
// too slow to keep up and gets disconnected.
func (c *Client) Send(msg *wstypes.WSMessage) bool {
	data, err := msg.ToJSON()
	if err != nil {
		c.logger.Error("failed to marshal message", zap.Error(err))
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("send buffer full, dropping connection")
		c.Close()
		return false
	}
}

// SendError sends an error message to the client
func (c *Client) SendError(code, message, details string) {
	c.Send(wstypes.NewMessage(wstypes.EventTypeError, wstypes.ErrorData{
		Code:    code,
		Message: message,
		Details: details,
	}))
}

// Close stops both pumps. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
	})
}
