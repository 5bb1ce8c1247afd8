// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Queue intents (client -> server)
	EventTypeJoinRoom       EventType = "join_room"
	EventTypeLeaveRoom      EventType = "leave_room"
	EventTypeAddCustomer    EventType = "add_customer"
	EventTypeCallCustomer   EventType = "call_customer"
	EventTypeRemoveCustomer EventType = "remove_customer"
	EventTypeGetStatus      EventType = "get_status"

	// Queue events (server -> client)
	EventTypeQueueUpdate    EventType = "queue_update"
	EventTypeJoinSuccess    EventType = "join_success"
	EventTypeCustomerCalled EventType = "customer_called"
	EventTypeStatusUpdate   EventType = "status_update"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType       `json:"type"`
	Data      interface{}     `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	ID        string          `json:"id,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// inbound keeps the data field undecoded so handlers can bind it to their own types.
type inbound struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	ID   string          `json:"id,omitempty"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// CustomerCalledData is broadcast alongside the snapshot when an entry moves to called.
type CustomerCalledData struct {
	EstablishmentID string `json:"establishment_id"`
	CustomerID      string `json:"customer_id"`
}

// QueueUpdateData carries an establishment's full ordered snapshot.
type QueueUpdateData struct {
	EstablishmentID string      `json:"establishment_id"`
	Entries         interface{} `json:"entries"`
}

// Helper to create messages
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Bind decodes the raw data of an inbound message into target.
func (m *WSMessage) Bind(target interface{}) error {
	if len(m.Raw) == 0 {
		return json.Unmarshal([]byte("{}"), target)
	}
	return json.Unmarshal(m.Raw, target)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return &WSMessage{
		Type:      in.Type,
		Raw:       in.Data,
		Timestamp: time.Now(),
		ID:        in.ID,
	}, nil
}
