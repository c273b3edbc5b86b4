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

	// Server -> client
	EventTypeAuditEntry EventType = "audit:entry"
	EventTypeChainAlert EventType = "chain:alert"

	// Client -> server request, answered with the same type
	EventTypeAuditHistory EventType = "audit:history"

	// Subscription events
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// Subscription channels that clients can subscribe to
type ChannelType string

const (
	// Every audit entry of the tenant
	ChannelAudit ChannelType = "audit"
	// Flagged entries only: large gaps, rejections, soft deletes
	ChannelAlerts ChannelType = "alerts"
)

// SubscribeRequest sent by client to subscribe to specific channels
type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// UnsubscribeRequest sent by client to unsubscribe from channels
type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ChainAlertData summarizes a flagged audit entry.
type ChainAlertData struct {
	AuditID        string   `json:"audit_id"`
	Operation      string   `json:"operation"`
	TripID         *int64   `json:"trip_id,omitempty"`
	VehicleID      *int64   `json:"vehicle_id,omitempty"`
	Classification string   `json:"classification"`
	Message        string   `json:"message"`
	Warnings       []string `json:"warnings,omitempty"`
}

// AuditHistoryRequest asks for the audit trail of one trip.
type AuditHistoryRequest struct {
	TripID int64 `json:"trip_id"`
	Limit  int   `json:"limit,omitempty"`
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

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
