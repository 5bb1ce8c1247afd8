// internal/handlers/websocket/websocket.go
package handlers

import (
	"net/http"
	"time"

	"waitlist-service/internal/middleware"
	"waitlist-service/internal/pkg/response"
	ws "waitlist-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options tunes the upgrade and per-connection limits.
type Options struct {
	AllowedOrigins    []string
	MessagesPerSecond float64
	MessageBurst      int
}

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	opts     Options
	logger   *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, opts Options, logger *zap.Logger) *WebSocketHandler {
	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[o] = struct{}{}
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowed, origin)
			},
		},
		opts:   opts,
		logger: logger,
	}
}

// HandleConnection upgrades an anonymous connection. Queue intents need no
// credentials; establishments are isolated by room, not by identity.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, ws.ClientOptions{
		RemoteIP:          c.ClientIP(),
		MessagesPerSecond: h.opts.MessagesPerSecond,
		MessageBurst:      h.opts.MessageBurst,
	})

	select {
	case h.hub.Register <- client:
	case <-h.hub.Done():
		client.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// GetStats returns WebSocket connection statistics. Mounted behind SuperAdminOnly.
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := h.hub.Stats()
	response.Success(c, http.StatusOK, "WebSocket stats", gin.H{
		"connections": stats.Connections,
		"rooms":       stats.Rooms,
		"subscribers": stats.Subscribers,
		"timestamp":   time.Now(),
	})
}
