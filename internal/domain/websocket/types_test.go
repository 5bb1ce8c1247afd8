package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessageKeepsRawData(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"call_customer","data":{"establishment_id":"cafe-x","customer_id":"c1"},"id":"42"}`))
	require.NoError(t, err)
	assert.Equal(t, EventTypeCallCustomer, msg.Type)
	assert.Equal(t, "42", msg.ID)

	var req struct {
		EstablishmentID string `json:"establishment_id"`
		CustomerID      string `json:"customer_id"`
	}
	require.NoError(t, msg.Bind(&req))
	assert.Equal(t, "cafe-x", req.EstablishmentID)
	assert.Equal(t, "c1", req.CustomerID)
}

func TestParseMessageRejectsGarbage(t *testing.T) {
	_, err := ParseMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestNewMessageJSON(t *testing.T) {
	out, err := NewMessage(EventTypeCustomerCalled, CustomerCalledData{EstablishmentID: "cafe-x", CustomerID: "c1"}).ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "customer_called", decoded["type"])
	assert.NotEmpty(t, decoded["id"])
	assert.Equal(t, "c1", decoded["data"].(map[string]interface{})["customer_id"])
}
