package core

import "sync"

// Handle is an opaque reference usable to push events to one connected client.
// Implementations must be safe for concurrent Push and Close.
type Handle interface {
	// Push enqueues an event for delivery. A non-nil error means the
	// connection is gone (or hopelessly backlogged) and the handle should
	// be pruned.
	Push(ev Event) error

	// Close releases the handle. Idempotent. After Close, Push fails and
	// the Events channel is closed.
	Close()
}

// ChanHandle delivers events over a buffered channel. Both transport
// adapters drain Events from their write side: the stream handler copies
// them onto the HTTP response, the socket handler onto the WebSocket.
type ChanHandle struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewChanHandle constructs a handle with the given delivery buffer size.
func NewChanHandle(buffer int) *ChanHandle {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChanHandle{ch: make(chan Event, buffer)}
}

// Push enqueues an event without blocking. A full buffer counts as a
// delivery failure so a stalled consumer cannot wedge the dispatcher.
func (h *ChanHandle) Push(ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandleClosed
	}
	select {
	case h.ch <- ev:
		return nil
	default:
		return ErrHandleFull
	}
}

// Events exposes the delivery channel. Closed when the handle closes.
func (h *ChanHandle) Events() <-chan Event {
	return h.ch
}

// Close marks the handle dead and closes the delivery channel.
func (h *ChanHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.ch)
}
