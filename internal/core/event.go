package core

// EventKind is a notification pushed to connected clients.
type EventKind int

const (
	// EventConnected acknowledges a freshly opened subscription.
	EventConnected EventKind = iota
	// EventMessage delivers a persisted chat message.
	EventMessage
	// EventTyping relays an ephemeral typing indicator. Never persisted.
	EventTyping
	// EventError reports a domain error to a single client.
	EventError
)

// Event is what flows through a delivery handle to one client.
type Event struct {
	Kind    EventKind
	Message *Message
	Typing  *Typing
	Error   *CoreError
}

// Typing describes a typing-indicator change in a room.
type Typing struct {
	RoomID   string
	UserID   string
	IsTyping bool
}
