package chat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tutorlink/chat-server/internal/store"
)

// Policy decides whether a user may read/write a room. Access derives from
// the booking relationship: the booking's student and the tutor owning the
// booked lecture, while the booking is not cancelled. The policy never
// errors out to callers; a failed lookup reads as "no access", so endpoints
// cannot leak whether a room exists.
type Policy struct {
	bookings store.BookingStore
	log      *zerolog.Logger
}

// NewPolicy creates a room access policy over booking data.
func NewPolicy(bookings store.BookingStore, logger *zerolog.Logger) *Policy {
	return &Policy{bookings: bookings, log: logger}
}

// CanAccess reports whether userID may read/write roomID.
func (p *Policy) CanAccess(ctx context.Context, userID, roomID string) bool {
	if userID == "" || roomID == "" {
		return false
	}

	allowed, err := p.bookings.HasRoomAccess(ctx, userID, roomID)
	if err != nil {
		p.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("room access lookup failed")
		return false
	}

	return allowed
}
