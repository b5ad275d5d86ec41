package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for events coming from a socket client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinRoom    = "join-room"
	InboundTypeSendMessage = "send-message"
	InboundTypeTyping      = "typing"

	OutboundTypeConnected      = "connected"
	OutboundTypeReceiveMessage = "receive-message"
	OutboundTypeUserTyping     = "user-typing"
	OutboundTypeError          = "error"

	// Stream event types carried in SSE data frames.
	StreamTypeConnected = "connected"
	StreamTypeMessage   = "message"
)

// JoinRoomData requests membership in a room.
type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

// SendMessageData is a chat message from a socket client. SenderID is
// accepted for wire compatibility but the authenticated identity wins.
type SendMessageData struct {
	RoomID   string `json:"roomId"`
	Message  string `json:"message"`
	SenderID string `json:"senderId,omitempty"`
}

// TypingData signals a typing-indicator change.
type TypingData struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// Outbound is the envelope for events sent to a socket client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload is a render-ready chat message: everything a client needs
// to display it without a further fetch.
type MessagePayload struct {
	ID          int64     `json:"id"`
	Content     string    `json:"content"`
	Sender      string    `json:"sender"`
	SenderImage string    `json:"senderImage,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// TypingPayload relays a peer's typing state.
type TypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// StreamEvent is the JSON payload of one SSE data frame.
type StreamEvent struct {
	Type string          `json:"type"`
	Data *MessagePayload `json:"data,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
