package store

import (
	"context"
	"time"
)

// User represents a marketplace user (student or tutor).
type User struct {
	ID           string
	Email        string
	Name         string
	Image        string
	PasswordHash string
	CreatedAt    time.Time
}

// Lecture represents a tutor's published lecture. Only the columns the chat
// core needs; the full lecture record belongs to the marketplace service.
type Lecture struct {
	ID        string
	TutorID   string
	Title     string
	CreatedAt time.Time
}

// BookingStatus defines the lifecycle of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking links a student to a booked lecture. The booking's (student,
// lecture-owner) pair defines who may enter the booking's chat room.
type Booking struct {
	ID        string
	UserID    string
	LectureID string
	Status    BookingStatus
	CreatedAt time.Time
}

// ChatRoom is the chat channel attached to one booking.
type ChatRoom struct {
	ID        string
	BookingID string
	CreatedAt time.Time
}

// Message represents a persisted chat message. SenderName and SenderImage
// are joined from the sender so a delivery payload renders without a
// further fetch. Immutable once created.
type Message struct {
	ID          int64
	RoomID      string
	SenderID    string
	SenderName  string
	SenderImage string
	Content     string
	CreatedAt   time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, email, name, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// BookingStore handles lecture/booking persistence and the room access query.
type BookingStore interface {
	// CreateLecture creates a lecture owned by a tutor.
	CreateLecture(ctx context.Context, tutorID, title string) (*Lecture, error)

	// CreateBooking books a lecture for a student.
	CreateBooking(ctx context.Context, userID, lectureID string, status BookingStatus) (*Booking, error)

	// UpdateBookingStatus changes a booking's status.
	UpdateBookingStatus(ctx context.Context, id string, status BookingStatus) error

	// HasRoomAccess reports whether a non-cancelled booking links roomID to
	// userID as either the booking's student or the booked lecture's tutor.
	HasRoomAccess(ctx context.Context, userID, roomID string) (bool, error)

	// IsBookingParticipant reports whether userID is the student or the
	// lecture's tutor on a non-cancelled booking.
	IsBookingParticipant(ctx context.Context, userID, bookingID string) (bool, error)
}

// ChatRoomStore handles chat room persistence.
type ChatRoomStore interface {
	// CreateChatRoom creates the chat room for a booking.
	CreateChatRoom(ctx context.Context, bookingID string) (*ChatRoom, error)

	// GetChatRoomByBooking retrieves a booking's chat room, or nil if the
	// booking has none yet.
	GetChatRoomByBooking(ctx context.Context, bookingID string) (*ChatRoom, error)

	// GetBookingForRoom retrieves the booking a room belongs to.
	GetBookingForRoom(ctx context.Context, roomID string) (*Booking, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message and returns it with the sender's
	// display name and image joined in.
	CreateMessage(ctx context.Context, roomID, senderID, content string) (*Message, error)

	// ListMessages retrieves a room's messages in the order they were
	// persisted, oldest first.
	ListMessages(ctx context.Context, roomID string) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	BookingStore
	ChatRoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
