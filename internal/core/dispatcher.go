package core

import "github.com/rs/zerolog"

// Dispatcher fans persisted messages out to every live handle in a room.
// Both transport adapters publish through it, so pruning and delivery
// policy live in one place.
type Dispatcher struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewDispatcher builds a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: logger}
}

// Publish pushes msg to every handle registered for its room, on both
// transports, skipping the sender's own handles: the sender already holds
// the message locally, so there is no self-echo. A failed push prunes the
// handle and never aborts delivery to the rest.
func (d *Dispatcher) Publish(msg *Message) {
	entries := d.registry.ListForRoom(msg.RoomID)
	for _, e := range entries {
		if e.ParticipantID == msg.SenderID {
			continue
		}
		if err := e.Handle.Push(Event{Kind: EventMessage, Message: msg}); err != nil {
			d.prune(e, err)
		}
	}
}

// PublishTyping relays a typing indicator to the other socket-transport
// members of the room. Stream subscribers never see typing state and
// nothing is persisted.
func (d *Dispatcher) PublishTyping(t *Typing) {
	entries := d.registry.ListForRoom(t.RoomID)
	for _, e := range entries {
		if e.Kind != TransportSocket || e.ParticipantID == t.UserID {
			continue
		}
		if err := e.Handle.Push(Event{Kind: EventTyping, Typing: t}); err != nil {
			d.prune(e, err)
		}
	}
}

func (d *Dispatcher) prune(e Entry, err error) {
	d.registry.Drop(e)
	e.Handle.Close()
	d.log.Debug().
		Err(err).
		Str("room_id", e.RoomID).
		Str("participant_id", e.ParticipantID).
		Str("transport", e.Kind.String()).
		Msg("pruned dead connection")
}
