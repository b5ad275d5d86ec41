package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tutorlink/chat-server/internal/core"
	"github.com/tutorlink/chat-server/internal/store"
)

var (
	// ErrRoomRequired is returned when the room id is missing.
	ErrRoomRequired = errors.New("room id is required")
	// ErrSenderRequired is returned when the participant id is missing.
	ErrSenderRequired = errors.New("sender id is required")
	// ErrTextRequired is returned when the message text is empty.
	ErrTextRequired = errors.New("message text is required")
	// ErrAccessDenied is returned when the room access policy refuses the
	// caller. Deliberately indistinguishable from a nonexistent room.
	ErrAccessDenied = errors.New("room not found or access denied")
)

// Store is the persistence surface the chat service consumes.
type Store interface {
	store.MessageStore
	store.BookingStore
	store.ChatRoomStore
}

// Service is the chat session facade: join a room, send a message, receive
// a stream of messages. Both transport adapters compose it, so the access
// policy, the persist-then-publish ordering and the registry lifecycle are
// written once.
type Service struct {
	store      Store
	policy     *Policy
	registry   *core.Registry
	dispatcher *core.Dispatcher
	buffer     int
	log        *zerolog.Logger
}

// NewService wires the facade. buffer sizes each subscriber's delivery
// channel; a subscriber that falls that far behind is treated as dead.
func NewService(st Store, policy *Policy, registry *core.Registry, dispatcher *core.Dispatcher, buffer int, logger *zerolog.Logger) *Service {
	return &Service{
		store:      st,
		policy:     policy,
		registry:   registry,
		dispatcher: dispatcher,
		buffer:     buffer,
		log:        logger,
	}
}

// Join authorizes the participant for the room and registers the given
// delivery handle under the transport kind. Atomic from the caller's view:
// either access is refused and nothing is registered, or the handle starts
// receiving the room's broadcasts immediately.
func (s *Service) Join(ctx context.Context, roomID, participantID string, kind core.TransportKind, handle core.Handle) error {
	if roomID == "" {
		return ErrRoomRequired
	}
	if participantID == "" {
		return ErrSenderRequired
	}
	if !s.policy.CanAccess(ctx, participantID, roomID) {
		return ErrAccessDenied
	}

	s.registry.Register(roomID, participantID, kind, handle)

	s.log.Debug().
		Str("room_id", roomID).
		Str("participant_id", participantID).
		Str("transport", kind.String()).
		Msg("participant joined room")

	return nil
}

// Subscribe is Join with a fresh handle, for the event-stream transport.
// The returned handle already carries the "connected" acknowledgment so it
// is always the first event on the wire. The caller owns the handle's
// lifetime: Unsubscribe and Close on disconnect.
func (s *Service) Subscribe(ctx context.Context, roomID, participantID string, kind core.TransportKind) (*core.ChanHandle, error) {
	handle := core.NewChanHandle(s.buffer)

	if err := handle.Push(core.Event{Kind: core.EventConnected}); err != nil {
		return nil, fmt.Errorf("prime handle: %w", err)
	}

	if err := s.Join(ctx, roomID, participantID, kind, handle); err != nil {
		return nil, err
	}

	return handle, nil
}

// Unsubscribe removes the participant's handle for the transport kind,
// provided it is still the registered one: a rejoin may already have
// replaced it, and the stale connection's cleanup must not evict the new
// handle. Idempotent; safe after the dispatcher already pruned the entry.
func (s *Service) Unsubscribe(roomID, participantID string, kind core.TransportKind, handle core.Handle) {
	s.registry.Drop(core.Entry{
		RoomID:        roomID,
		ParticipantID: participantID,
		Kind:          kind,
		Handle:        handle,
	})

	s.log.Debug().
		Str("room_id", roomID).
		Str("participant_id", participantID).
		Str("transport", kind.String()).
		Msg("participant left room")
}

// Send validates, persists and broadcasts a message. Publish happens
// strictly after the store write succeeds; a failed write is never
// broadcast.
func (s *Service) Send(ctx context.Context, roomID, senderID, text string) (*core.Message, error) {
	if roomID == "" {
		return nil, ErrRoomRequired
	}
	if senderID == "" {
		return nil, ErrSenderRequired
	}
	if text == "" {
		return nil, ErrTextRequired
	}
	if !s.policy.CanAccess(ctx, senderID, roomID) {
		return nil, ErrAccessDenied
	}

	saved, err := s.store.CreateMessage(ctx, roomID, senderID, text)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	msg := toCoreMessage(saved)
	s.dispatcher.Publish(msg)

	return msg, nil
}

// History returns the room's messages in persistence order, provided the
// caller passes the access policy.
func (s *Service) History(ctx context.Context, userID, roomID string) ([]*core.Message, error) {
	if roomID == "" {
		return nil, ErrRoomRequired
	}
	if !s.policy.CanAccess(ctx, userID, roomID) {
		return nil, ErrAccessDenied
	}

	stored, err := s.store.ListMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]*core.Message, 0, len(stored))
	for _, m := range stored {
		messages = append(messages, toCoreMessage(m))
	}

	return messages, nil
}

// Typing relays an ephemeral typing indicator to the sender's room peers on
// the socket transport. Nothing is persisted and failures are invisible.
func (s *Service) Typing(roomID, userID string, isTyping bool) {
	if roomID == "" || userID == "" {
		return
	}
	s.dispatcher.PublishTyping(&core.Typing{RoomID: roomID, UserID: userID, IsTyping: isTyping})
}

// RoomForBooking resolves the chat room for a booking the caller
// participates in, creating it on first use.
func (s *Service) RoomForBooking(ctx context.Context, userID, bookingID string) (*store.ChatRoom, error) {
	if bookingID == "" {
		return nil, ErrRoomRequired
	}

	participant, err := s.store.IsBookingParticipant(ctx, userID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("check booking participant: %w", err)
	}
	if !participant {
		return nil, ErrAccessDenied
	}

	room, err := s.store.GetChatRoomByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get chat room: %w", err)
	}
	if room != nil {
		return room, nil
	}

	room, err = s.store.CreateChatRoom(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("create chat room: %w", err)
	}

	return room, nil
}

func toCoreMessage(m *store.Message) *core.Message {
	return &core.Message{
		ID:           m.ID,
		RoomID:       m.RoomID,
		SenderID:     m.SenderID,
		SenderName:   m.SenderName,
		SenderAvatar: m.SenderImage,
		Text:         m.Content,
		CreatedAt:    m.CreatedAt,
	}
}
