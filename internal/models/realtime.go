package models

import (
	"encoding/json"
	"time"
)

// ConnectionStatus is the health of a realtime channel as seen by consumers.
// Connection problems are reported through this value, never as errors.
type ConnectionStatus string

// Connection statuses.
const (
	StatusIdle         ConnectionStatus = "idle"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusReconnecting ConnectionStatus = "reconnecting"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusClosed       ConnectionStatus = "closed"
)

// RealtimeEventType classifies pushed events.
type RealtimeEventType string

// Event types pushed by the backend or by peers.
const (
	EventInsert   RealtimeEventType = "INSERT"
	EventUpdate   RealtimeEventType = "UPDATE"
	EventDelete   RealtimeEventType = "DELETE"
	EventTyping   RealtimeEventType = "typing"
	EventReaction RealtimeEventType = "reaction"
	EventMessage  RealtimeEventType = "message"
)

// RealtimeEvent is one notification delivered on a channel.
type RealtimeEvent struct {
	Channel    string            `json:"channel"`
	Type       RealtimeEventType `json:"type"`
	Table      string            `json:"table,omitempty"`
	RecordID   string            `json:"record_id,omitempty"`
	Sender     string            `json:"sender,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`
}
