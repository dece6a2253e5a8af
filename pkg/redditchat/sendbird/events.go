// Copyright 2025-2026 Aiku AI

package sendbird

import "encoding/json"

// EventType classifies inbound traffic for handler registration.
type EventType string

const (
	// EventMessage is a chat message posted to a channel.
	EventMessage EventType = "message"
	// EventMessageDeleted is a server-side message deletion.
	EventMessageDeleted EventType = "message_deleted"
	// EventSystem covers presence updates and other channel system events.
	EventSystem EventType = "system"
	// EventError is an error notification frame pushed by the server.
	EventError EventType = "error"
	// EventReconnected fires after a dropped connection is re-established.
	EventReconnected EventType = "reconnected"
	// EventConnectionLost fires when the reconnect budget is exhausted.
	// The connection is fatally lost; the client is Disconnected.
	EventConnectionLost EventType = "connection_lost"
	// EventAuthExpired fires when the broker rejects the session during a
	// handshake. The owner should mint a fresh session and reconnect.
	EventAuthExpired EventType = "auth_expired"
)

// Sender identifies the author of a channel message.
type Sender struct {
	ID   string `json:"guest_id"`
	Name string `json:"name"`
}

// Message is a chat message received over the realtime connection.
type Message struct {
	MessageID  int64  `json:"msg_id"`
	ReqID      string `json:"req_id"`
	ChannelURL string `json:"channel_url"`
	Text       string `json:"message"`
	Data       string `json:"data"`
	Timestamp  int64  `json:"ts"`
	User       Sender `json:"user"`
}

// SystemEvent is a channel lifecycle or presence notification.
type SystemEvent struct {
	Category   string          `json:"cat"`
	ChannelURL string          `json:"channel_url"`
	Data       json.RawMessage `json:"data"`
}

// Event is the discriminated inbound event delivered to registered
// handlers. Exactly the fields relevant to Type are populated; Raw carries
// the frame body for anything a handler wants to inspect itself.
type Event struct {
	Type    EventType
	Message *Message
	System  *SystemEvent
	Err     error
	Raw     json.RawMessage
}

// Handler receives inbound events. Handlers run on the read loop: a handler
// that blocks stalls all further dispatch, so long work must be offloaded
// by the caller.
type Handler func(Event)

// MessageAck confirms a sent message has been accepted by the broker.
type MessageAck struct {
	MessageID  int64
	ChannelURL string
	Timestamp  int64
}
