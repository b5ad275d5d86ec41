package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tutorlink/chat-server/internal/auth"
	"github.com/tutorlink/chat-server/internal/config"
	"github.com/tutorlink/chat-server/internal/core"
	"github.com/tutorlink/chat-server/internal/service/chat"
	"github.com/tutorlink/chat-server/internal/store"
	"github.com/tutorlink/chat-server/internal/store/sqlite"
)

// testEnv is a running server over an in-memory store seeded with one
// booked lecture: student "Sasha" booked tutor "Toni", and the booking
// already has its chat room.
type testEnv struct {
	ts      *httptest.Server
	store   *sqlite.SQLiteStore
	jwtCfg  *auth.JWTConfig
	student *store.User
	tutor   *store.User
	booking *store.Booking
	roomID  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate test store: %v", err)
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
	lecture, err := st.CreateLecture(ctx, tutor.ID, "Linear Algebra")
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

	jwtCfg := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtCfg)

	registry := core.NewRegistry()
	dispatcher := core.NewDispatcher(registry, &logger)
	policy := chat.NewPolicy(st, &logger)
	chatService := chat.NewService(st, policy, registry, dispatcher, 16, &logger)

	cfg := config.Default()
	cfg.JWTSecret = "test-secret"

	server := NewServer(chatService, authService, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:      ts,
		store:   st,
		jwtCfg:  jwtCfg,
		student: student,
		tutor:   tutor,
		booking: booking,
		roomID:  room.ID,
	}
}

func (e *testEnv) token(t *testing.T, u *store.User) string {
	t.Helper()
	token, err := auth.GenerateToken(e.jwtCfg, u.ID, u.Name)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func (e *testEnv) stranger(t *testing.T) *store.User {
	t.Helper()
	u, err := e.store.CreateUser(context.Background(), "stranger@example.edu", "Sam", "hash")
	if err != nil {
		t.Fatalf("create stranger: %v", err)
	}
	return u
}
