package core

import "time"

// Message is the domain model for a persisted chat message.
type Message struct {
	ID           int64
	RoomID       string
	SenderID     string
	SenderName   string
	SenderAvatar string
	Text         string
	CreatedAt    time.Time
}
