package core

import "sync"

// TransportKind distinguishes the two delivery transports. Each kind keeps
// its own namespace of live handles, so one participant may hold a stream
// handle and a socket handle in the same room at once.
type TransportKind int

const (
	// TransportStream is the one-way event-stream (SSE) transport.
	TransportStream TransportKind = iota
	// TransportSocket is the bidirectional WebSocket transport.
	TransportSocket
)

func (k TransportKind) String() string {
	switch k {
	case TransportStream:
		return "stream"
	case TransportSocket:
		return "socket"
	default:
		return "unknown"
	}
}

// Entry is one live connection as seen in a registry snapshot.
type Entry struct {
	RoomID        string
	ParticipantID string
	Kind          TransportKind
	Handle        Handle
}

type connKey struct {
	participant string
	kind        TransportKind
}

// Registry is the process-wide map from (room, participant, transport) to a
// live delivery handle. It is the single piece of shared mutable state in
// the chat core; a coarse RWMutex is enough at the expected cardinality
// (a handful of connections per booking-scoped room). The lock is never
// held across a blocking call.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[connKey]Handle
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[connKey]Handle)}
}

// Register records the delivery handle for (room, participant, kind),
// replacing any existing one under the same key. The displaced handle is
// closed so a redundant join (page refresh) cannot strand its goroutine.
func (r *Registry) Register(roomID, participantID string, kind TransportKind, h Handle) {
	key := connKey{participant: participantID, kind: kind}

	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[connKey]Handle)
		r.rooms[roomID] = room
	}
	old := room[key]
	room[key] = h
	r.mu.Unlock()

	if old != nil && old != h {
		old.Close()
	}
}

// Unregister removes the handle for (room, participant, kind). No-op if
// absent. The handle itself is not closed; the owning transport does that.
func (r *Registry) Unregister(roomID, participantID string, kind TransportKind) {
	key := connKey{participant: participantID, kind: kind}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(room, key)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
}

// Drop removes the entry only if the registered handle is still the one in
// the snapshot. Used when pruning after a failed delivery, so a replacement
// registered in the meantime is never evicted by mistake.
func (r *Registry) Drop(e Entry) {
	key := connKey{participant: e.ParticipantID, kind: e.Kind}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[e.RoomID]
	if !ok {
		return
	}
	if room[key] != e.Handle {
		return
	}
	delete(room, key)
	if len(room) == 0 {
		delete(r.rooms, e.RoomID)
	}
}

// ListForRoom returns a snapshot of the room's live connections. Entries may
// go stale between snapshot and delivery; callers treat a failed push as
// "already disconnected".
func (r *Registry) ListForRoom(roomID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	if len(room) == 0 {
		return nil
	}
	entries := make([]Entry, 0, len(room))
	for key, h := range room {
		entries = append(entries, Entry{
			RoomID:        roomID,
			ParticipantID: key.participant,
			Kind:          key.kind,
			Handle:        h,
		})
	}
	return entries
}
