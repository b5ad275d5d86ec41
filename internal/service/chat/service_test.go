package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tutorlink/chat-server/internal/core"
	"github.com/tutorlink/chat-server/internal/store"
	"github.com/tutorlink/chat-server/internal/store/sqlite"
)

type fixture struct {
	svc      *Service
	store    *sqlite.SQLiteStore
	registry *core.Registry
	student  *store.User
	tutor    *store.User
	booking  *store.Booking
	roomID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	student, err := st.CreateUser(ctx, "student@example.edu", "Sasha", "hash")
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	tutor, err := st.CreateUser(ctx, "tutor@example.edu", "Toni", "hash")
	if err != nil {
		t.Fatalf("create tutor: %v", err)
	}
	lecture, err := st.CreateLecture(ctx, tutor.ID, "Discrete Math")
	if err != nil {
		t.Fatalf("create lecture: %v", err)
	}
	booking, err := st.CreateBooking(ctx, student.ID, lecture.ID, store.BookingStatusConfirmed)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	room, err := st.CreateChatRoom(ctx, booking.ID)
	if err != nil {
		t.Fatalf("create chat room: %v", err)
	}

	logger := zerolog.New(nil)
	registry := core.NewRegistry()
	dispatcher := core.NewDispatcher(registry, &logger)
	policy := NewPolicy(st, &logger)
	svc := NewService(st, policy, registry, dispatcher, 16, &logger)

	return &fixture{
		svc:      svc,
		store:    st,
		registry: registry,
		student:  student,
		tutor:    tutor,
		booking:  booking,
		roomID:   room.ID,
	}
}

func (f *fixture) stranger(t *testing.T) *store.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), "stranger@example.edu", "Sam", "hash")
	if err != nil {
		t.Fatalf("create stranger: %v", err)
	}
	return u
}

func recvEvent(t *testing.T, h *core.ChanHandle) core.Event {
	t.Helper()
	select {
	case ev, ok := <-h.Events():
		if !ok {
			t.Fatalf("handle closed while waiting for event")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return core.Event{}
	}
}

func TestSubscribeEmitsConnectedFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	handle, err := f.svc.Subscribe(ctx, f.roomID, f.student.ID, core.TransportStream)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer handle.Close()
	defer f.svc.Unsubscribe(f.roomID, f.student.ID, core.TransportStream, handle)

	if ev := recvEvent(t, handle); ev.Kind != core.EventConnected {
		t.Fatalf("expected connected ack first, got kind %d", ev.Kind)
	}
}

func TestSubscribeDeniesStranger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stranger := f.stranger(t)

	if _, err := f.svc.Subscribe(ctx, f.roomID, stranger.ID, core.TransportStream); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if entries := f.registry.ListForRoom(f.roomID); entries != nil {
		t.Fatalf("denied join must not register a handle: %+v", entries)
	}
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		roomID  string
		sender  string
		text    string
		wantErr error
	}{
		{"missing room", "", f.student.ID, "hi", ErrRoomRequired},
		{"missing sender", f.roomID, "", "hi", ErrSenderRequired},
		{"missing text", f.roomID, f.student.ID, "", ErrTextRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Send(ctx, tt.roomID, tt.sender, tt.text); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// No side effects from rejected sends.
	messages, err := f.store.ListMessages(ctx, f.roomID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no persisted messages, got %d", len(messages))
	}
}

func TestSendPersistsThenBroadcasts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	handle, err := f.svc.Subscribe(ctx, f.roomID, f.student.ID, core.TransportStream)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer handle.Close()
	recvEvent(t, handle) // connected ack

	sent, err := f.svc.Send(ctx, f.roomID, f.tutor.ID, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.SenderName != "Toni" {
		t.Fatalf("expected joined sender name, got %q", sent.SenderName)
	}

	ev := recvEvent(t, handle)
	if ev.Kind != core.EventMessage || ev.Message.Text != "hello" || ev.Message.SenderName != "Toni" {
		t.Fatalf("unexpected broadcast: %+v", ev)
	}

	messages, err := f.svc.History(ctx, f.student.ID, f.roomID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(messages) != 1 || messages[0].Text != "hello" {
		t.Fatalf("unexpected history: %+v", messages)
	}
}

func TestSendDoesNotEchoToSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	handle, err := f.svc.Subscribe(ctx, f.roomID, f.tutor.ID, core.TransportStream)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer handle.Close()
	recvEvent(t, handle) // connected ack

	if _, err := f.svc.Send(ctx, f.roomID, f.tutor.ID, "talking to myself"); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case ev := <-handle.Events():
		t.Fatalf("sender received own broadcast: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendDeniedForStrangerPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stranger := f.stranger(t)

	if _, err := f.svc.Send(ctx, f.roomID, stranger.ID, "let me in"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	messages, err := f.store.ListMessages(ctx, f.roomID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("denied send persisted a message")
	}
}

func TestHistoryDeniedForStranger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Send(ctx, f.roomID, f.tutor.ID, "private note"); err != nil {
		t.Fatalf("send: %v", err)
	}

	stranger := f.stranger(t)
	if _, err := f.svc.History(ctx, stranger.ID, f.roomID); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	// Unknown room answers the same way as a denied one.
	if _, err := f.svc.History(ctx, f.student.ID, "no-such-room"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for unknown room, got %v", err)
	}
}

func TestStaleHandlePrunedAfterDisconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	handle, err := f.svc.Subscribe(ctx, f.roomID, f.student.ID, core.TransportStream)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Student closes the tab: the transport closes the handle but a crash
	// before Unsubscribe leaves the registry entry behind.
	handle.Close()

	if _, err := f.svc.Send(ctx, f.roomID, f.tutor.ID, "anyone there?"); err != nil {
		t.Fatalf("send must succeed despite the stale handle: %v", err)
	}

	if entries := f.registry.ListForRoom(f.roomID); entries != nil {
		t.Fatalf("stale handle was not pruned: %+v", entries)
	}
}

func TestStaleCleanupKeepsRejoinedHandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Subscribe(ctx, f.roomID, f.student.ID, core.TransportStream)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Rejoin (page refresh): the new handle displaces and closes the first.
	second, err := f.svc.Subscribe(ctx, f.roomID, f.student.ID, core.TransportStream)
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	defer second.Close()

	// The first connection's cleanup runs late; it must not evict the
	// replacement.
	f.svc.Unsubscribe(f.roomID, f.student.ID, core.TransportStream, first)

	entries := f.registry.ListForRoom(f.roomID)
	if len(entries) != 1 || entries[0].Handle != second {
		t.Fatalf("replacement handle was evicted: %+v", entries)
	}
}

func TestRoomForBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Fresh booking without a room yet.
	lecture, err := f.store.CreateLecture(ctx, f.tutor.ID, "Statistics")
	if err != nil {
		t.Fatalf("create lecture: %v", err)
	}
	booking, err := f.store.CreateBooking(ctx, f.student.ID, lecture.ID, store.BookingStatusConfirmed)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	room, err := f.svc.RoomForBooking(ctx, f.student.ID, booking.ID)
	if err != nil {
		t.Fatalf("room for booking: %v", err)
	}

	// Second resolution returns the same room.
	again, err := f.svc.RoomForBooking(ctx, f.tutor.ID, booking.ID)
	if err != nil {
		t.Fatalf("room for booking (tutor): %v", err)
	}
	if again.ID != room.ID {
		t.Fatalf("expected stable room id, got %q then %q", room.ID, again.ID)
	}

	stranger := f.stranger(t)
	if _, err := f.svc.RoomForBooking(ctx, stranger.ID, booking.ID); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}
