package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"waitlist-service/internal/domain/queue"
	wstypes "waitlist-service/internal/domain/websocket"
	"waitlist-service/internal/repository/memory"
	queuesvc "waitlist-service/internal/service/queue"
	ws "waitlist-service/internal/websocket"
	wsHandlers "waitlist-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type frame struct {
	Type wstypes.EventType `json:"type"`
	Data json.RawMessage   `json:"data"`
}

func startServer(t *testing.T, opts Options) (*httptest.Server, *ws.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	customers := memory.NewCustomerStore()
	svc := queuesvc.NewService(memory.NewQueueStore(customers), customers, zap.NewNop())
	hub := ws.NewHub(svc, zap.NewNop())
	hub.RegisterHandler(wsHandlers.NewQueueHandler(svc, hub, zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	h := NewWebSocketHandler(hub, opts, zap.NewNop())
	r.GET("/ws", h.HandleConnection)
	r.GET("/stats", h.GetStats)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.Done()
	})
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f := next(t, conn, wstypes.EventTypeConnected)
	assert.Contains(t, string(f.Data), "connection_id")
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ wstypes.EventType, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": typ, "data": data}))
}

// next reads frames until one of the wanted type arrives.
func next(t *testing.T, conn *websocket.Conn, want wstypes.EventType) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == want {
			return f
		}
	}
}

func snapshotOf(t *testing.T, f frame) []queue.Entry {
	t.Helper()
	var data struct {
		EstablishmentID string        `json:"establishment_id"`
		Entries         []queue.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &data))
	return data.Entries
}

func TestWebSocket_EndToEnd(t *testing.T) {
	srv, hub := startServer(t, Options{MessagesPerSecond: 100, MessageBurst: 100})

	staff := dial(t, srv)
	send(t, staff, wstypes.EventTypeJoinRoom, "cafe-x")
	assert.Empty(t, snapshotOf(t, next(t, staff, wstypes.EventTypeQueueUpdate)))

	customer := dial(t, srv)
	send(t, customer, wstypes.EventTypeAddCustomer, map[string]string{
		"establishment_id": "cafe-x", "name": "Ann", "phone": "555-0100",
	})

	var entry queue.Entry
	require.NoError(t, json.Unmarshal(next(t, customer, wstypes.EventTypeJoinSuccess).Data, &entry))
	assert.Equal(t, 1, entry.Position)
	assert.Equal(t, queue.StatusWaiting, entry.Status)

	snap := snapshotOf(t, next(t, staff, wstypes.EventTypeQueueUpdate))
	require.Len(t, snap, 1)
	assert.Equal(t, entry.CustomerID, snap[0].CustomerID)

	send(t, customer, wstypes.EventTypeJoinRoom, map[string]string{"establishment_id": "cafe-x"})
	next(t, customer, wstypes.EventTypeQueueUpdate)

	send(t, staff, wstypes.EventTypeCallCustomer, map[string]string{
		"establishment_id": "cafe-x", "customer_id": entry.CustomerID,
	})
	called := next(t, customer, wstypes.EventTypeCustomerCalled)
	assert.Contains(t, string(called.Data), entry.CustomerID)

	send(t, customer, wstypes.EventTypeGetStatus, map[string]string{
		"establishment_id": "cafe-x", "customer_id": entry.CustomerID,
	})
	var status queue.Entry
	require.NoError(t, json.Unmarshal(next(t, customer, wstypes.EventTypeStatusUpdate).Data, &status))
	assert.Equal(t, queue.StatusCalled, status.Status)

	send(t, staff, wstypes.EventTypeRemoveCustomer, map[string]string{
		"establishment_id": "cafe-x", "customer_id": entry.CustomerID,
	})
	assert.Empty(t, snapshotOf(t, next(t, customer, wstypes.EventTypeQueueUpdate)))

	assert.Equal(t, 2, hub.Stats().Connections)
}

func TestWebSocket_ErrorsAndPing(t *testing.T) {
	srv, _ := startServer(t, Options{MessagesPerSecond: 100, MessageBurst: 100})
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Contains(t, string(next(t, conn, wstypes.EventTypeError).Data), "invalid_message")

	send(t, conn, "teleport", nil)
	assert.Contains(t, string(next(t, conn, wstypes.EventTypeError).Data), "unknown_event")

	send(t, conn, wstypes.EventTypeJoinRoom, "Not A Slug!")
	assert.Contains(t, string(next(t, conn, wstypes.EventTypeError).Data), "invalid_establishment")

	send(t, conn, wstypes.EventTypePing, nil)
	next(t, conn, wstypes.EventTypePong)
}

func TestWebSocket_DisconnectLeavesRooms(t *testing.T) {
	srv, hub := startServer(t, Options{MessagesPerSecond: 100, MessageBurst: 100})
	conn := dial(t, srv)
	send(t, conn, wstypes.EventTypeJoinRoom, "cafe-x")
	next(t, conn, wstypes.EventTypeQueueUpdate)
	require.Equal(t, 1, hub.Subscribers("cafe-x"))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return hub.Subscribers("cafe-x") == 0 && hub.Stats().Connections == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWebSocket_OriginCheck(t *testing.T) {
	srv, _ := startServer(t, Options{AllowedOrigins: []string{"https://app.example"}, MessagesPerSecond: 1, MessageBurst: 1})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestWebSocket_Stats(t *testing.T) {
	srv, _ := startServer(t, Options{MessagesPerSecond: 100, MessageBurst: 100})
	conn := dial(t, srv)
	send(t, conn, wstypes.EventTypeJoinRoom, "cafe-x")
	next(t, conn, wstypes.EventTypeQueueUpdate)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Connections int            `json:"connections"`
			Rooms       int            `json:"rooms"`
			Subscribers map[string]int `json:"subscribers"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Data.Connections)
	assert.Equal(t, 1, body.Data.Subscribers["cafe-x"])
}
