package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tutorlink/chat-server/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func postJSON(t *testing.T, env *testEnv, path string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	resp, err := env.ts.Client().Post(env.ts.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getWithToken(t *testing.T, env *testEnv, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// openStream subscribes to the room's event stream and returns a reader
// over the response body. Closing happens via t.Cleanup.
func openStream(t *testing.T, env *testEnv, roomID, userID string) *bufio.Reader {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		env.ts.URL+"/api/chat/events?roomId="+roomID+"&userId="+userID, nil)
	if err != nil {
		t.Fatalf("build stream request: %v", err)
	}

	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected stream status %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %q", ct)
	}

	return bufio.NewReader(resp.Body)
}

// readFrame blocks until the next data frame arrives and decodes it.
func readFrame(t *testing.T, r *bufio.Reader) proto.StreamEvent {
	t.Helper()

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream line: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev proto.StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("unmarshal frame %q: %v", line, err)
		}
		return ev
	}
}

func TestStreamMissingParams(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/chat/events",
		"/api/chat/events?roomId=" + env.roomID,
		"/api/chat/events?userId=" + env.student.ID,
	} {
		resp, err := env.ts.Client().Get(env.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("GET %s: expected 400, got %d", path, resp.StatusCode)
		}
	}
}

func TestStreamDeniedLooksLikeMissingRoom(t *testing.T) {
	env := newTestEnv(t)
	stranger := env.stranger(t)

	// A stranger probing a real room and a participant asking for a room
	// that does not exist get the same answer.
	for _, q := range []string{
		"?roomId=" + env.roomID + "&userId=" + stranger.ID,
		"?roomId=no-such-room&userId=" + env.student.ID,
	} {
		resp, err := env.ts.Client().Get(env.ts.URL + "/api/chat/events" + q)
		if err != nil {
			t.Fatalf("GET stream: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 for %s, got %d", q, resp.StatusCode)
		}
	}
}

func TestStreamDeliversMessages(t *testing.T) {
	env := newTestEnv(t)

	stream := openStream(t, env, env.roomID, env.student.ID)

	if ev := readFrame(t, stream); ev.Type != proto.StreamTypeConnected {
		t.Fatalf("expected connected frame first, got %q", ev.Type)
	}

	resp := postJSON(t, env, "/api/chat/events", SendMessageRequest{
		RoomID:   env.roomID,
		Message:  "office hours moved to 3pm",
		SenderID: env.tutor.ID,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("send failed with %d: %s", resp.StatusCode, body)
	}

	var sent proto.MessagePayload
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		t.Fatalf("decode send response: %v", err)
	}
	if sent.Content != "office hours moved to 3pm" || sent.Sender != "Toni" {
		t.Fatalf("unexpected send response: %+v", sent)
	}

	ev := readFrame(t, stream)
	if ev.Type != proto.StreamTypeMessage {
		t.Fatalf("expected message frame, got %q", ev.Type)
	}
	if ev.Data == nil || ev.Data.Content != "office hours moved to 3pm" || ev.Data.Sender != "Toni" {
		t.Fatalf("unexpected frame payload: %+v", ev.Data)
	}
}

func TestSendMessageRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)
	stranger := env.stranger(t)

	tests := []struct {
		name       string
		body       SendMessageRequest
		wantStatus int
	}{
		{"missing room", SendMessageRequest{Message: "hi", SenderID: env.student.ID}, http.StatusBadRequest},
		{"missing text", SendMessageRequest{RoomID: env.roomID, SenderID: env.student.ID}, http.StatusBadRequest},
		{"missing sender", SendMessageRequest{RoomID: env.roomID, Message: "hi"}, http.StatusBadRequest},
		{"stranger sender", SendMessageRequest{RoomID: env.roomID, Message: "hi", SenderID: stranger.ID}, http.StatusNotFound},
		{"unknown room", SendMessageRequest{RoomID: "no-such-room", Message: "hi", SenderID: env.student.ID}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, env, "/api/chat/events", tt.body)
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t)

	for _, text := range []string{"first", "second", "third"} {
		resp := postJSON(t, env, "/api/chat/events", SendMessageRequest{
			RoomID:   env.roomID,
			Message:  text,
			SenderID: env.student.ID,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("seed send %q failed with %d", text, resp.StatusCode)
		}
	}

	resp := getWithToken(t, env, "/api/chat/messages?roomId="+env.roomID, env.token(t, env.tutor))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history failed with %d", resp.StatusCode)
	}

	var messages []proto.MessagePayload
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, want := range []string{"first", "second", "third"} {
		if messages[i].Content != want {
			t.Fatalf("message %d out of order: got %q, want %q", i, messages[i].Content, want)
		}
	}
}

func TestHistoryAccessControl(t *testing.T) {
	env := newTestEnv(t)
	stranger := env.stranger(t)

	// No token.
	resp := getWithToken(t, env, "/api/chat/messages?roomId="+env.roomID, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	// Missing room id.
	resp = getWithToken(t, env, "/api/chat/messages", env.token(t, env.student))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without roomId, got %d", resp.StatusCode)
	}

	// Stranger with a valid token.
	resp = getWithToken(t, env, "/api/chat/messages?roomId="+env.roomID, env.token(t, stranger))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for stranger, got %d", resp.StatusCode)
	}
}

func TestRoomForBookingEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := getWithToken(t, env, "/api/chat/room?bookingId="+env.booking.ID, env.token(t, env.student))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("room lookup failed with %d", resp.StatusCode)
	}

	var room RoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		t.Fatalf("decode room response: %v", err)
	}
	if room.RoomID != env.roomID || room.BookingID != env.booking.ID {
		t.Fatalf("unexpected room response: %+v", room)
	}

	stranger := env.stranger(t)
	strangerResp := getWithToken(t, env, "/api/chat/room?bookingId="+env.booking.ID, env.token(t, stranger))
	strangerResp.Body.Close()
	if strangerResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for stranger, got %d", strangerResp.StatusCode)
	}

	badResp := getWithToken(t, env, "/api/chat/room", env.token(t, env.student))
	badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without bookingId, got %d", badResp.StatusCode)
	}
}
