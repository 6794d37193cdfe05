package models

import (
	"encoding/json"
	"time"
)

// Message types for WebSocket communication
const (
	MessageTypeReportUpdated = "report_updated"
	MessageTypeSubscribe     = "subscribe"
	MessageTypeUnsubscribe   = "unsubscribe"
	MessageTypeSubscribed    = "subscribed"
	MessageTypeHeartbeat     = "heartbeat"
	MessageTypeError         = "error"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SettlementEvent is published on the settlement stream whenever a bet
// is resolved, edited or deleted by the system of record.
type SettlementEvent struct {
	BetID     int64     `json:"bet_id"`
	Bookmaker string    `json:"bookmaker"`
	Outcome   Outcome   `json:"outcome"`
	Action    string    `json:"action"` // "resolved", "edited", "deleted"
	At        time.Time `json:"at"`
}

// ReportUpdate is pushed to websocket subscribers after a recompute
type ReportUpdate struct {
	ReportID  string      `json:"report_id"`
	Bookmaker string      `json:"bookmaker,omitempty"`
	Trigger   int64       `json:"trigger_bet_id"`
	Report    interface{} `json:"report"`
}

// SubscriptionFilter narrows report pushes to the listed bookmakers.
// An empty filter receives every update.
type SubscriptionFilter struct {
	Bookmakers []string `json:"bookmakers,omitempty"`
}

// Subscription is the client's current filter, echoed on subscribe,
// unsubscribe and heartbeat
type Subscription struct {
	ClientID    string    `json:"client_id"`
	Bookmakers  []string  `json:"bookmakers,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// HubStats summarizes report push since startup
type HubStats struct {
	Subscribers      int    `json:"subscribers"`
	UpdatesPublished int64  `json:"updates_published"`
	Deliveries       int64  `json:"deliveries"`
	SlowDisconnects  int64  `json:"slow_disconnects"`
	LastReportID     string `json:"last_report_id,omitempty"`
	Queued           int    `json:"queued"`
}

// ErrorMessage represents an error message
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
