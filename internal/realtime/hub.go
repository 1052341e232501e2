// Package realtime delivers server events to connected websocket clients.
//
// Hub fans a named event out to every connection in a presence room, or to a
// single connection. Delivery is best-effort and at-most-once: the envelope is
// encoded once and enqueued without blocking on each recipient; a recipient
// whose buffer is full (or already closed) simply misses the frame. One slow
// or dead connection never delays the others.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster is what the session layer needs from the transport.
type Broadcaster interface {
	// Publish delivers event to every connection currently in room.
	Publish(room, event string, payload any)
	// Send delivers event to a single connection.
	Send(token, event string, payload any)
}

// Sender is one registered connection.
type Sender interface {
	// Enqueue offers a frame without blocking and reports whether it was queued.
	Enqueue(frame []byte) bool
	// Close terminates the connection. It must be safe to call more than once.
	Close()
}

// RoomLister resolves a room to the tokens currently in it.
type RoomLister interface {
	MembersOf(room string) []string
}

// Envelope is the wire shape of every server frame.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Encode marshals an envelope for event and payload.
func Encode(event string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: payload})
}

// Hub tracks registered connections and performs fanout.
type Hub struct {
	rooms RoomLister
	log   zerolog.Logger

	mu     sync.RWMutex
	conns  map[string]Sender
	events map[string]struct{} // metric labels; anything else counts as "other"
}

// NewHub returns a Hub resolving rooms with rooms.
func NewHub(rooms RoomLister, log zerolog.Logger) *Hub {
	return &Hub{
		rooms:  rooms,
		log:    log.With().Str("component", "realtime").Logger(),
		conns:  make(map[string]Sender),
		events: make(map[string]struct{}),
	}
}

// TrackEvents names the events that get their own frame metric series.
// Event names are partly client-chosen, so untracked ones share the
// "other" label.
func (h *Hub) TrackEvents(names ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, n := range names {
		h.events[n] = struct{}{}
	}
}

// Register makes s reachable under token. An existing sender for the same
// token is closed and replaced.
func (h *Hub) Register(token string, s Sender) {
	h.mu.Lock()
	prev, existed := h.conns[token]
	h.conns[token] = s
	h.mu.Unlock()

	if existed && prev != s {
		prev.Close()
	} else if !existed {
		wsConnections.Inc()
	}
}

// Unregister removes token if it still maps to s. It does not close s.
func (h *Hub) Unregister(token string, s Sender) {
	h.mu.Lock()
	cur, ok := h.conns[token]
	if ok && cur == s {
		delete(h.conns, token)
	}
	h.mu.Unlock()
	if ok && cur == s {
		wsConnections.Dec()
	}
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Publish implements Broadcaster.
func (h *Hub) Publish(room, event string, payload any) {
	tokens := h.rooms.MembersOf(room)
	if len(tokens) == 0 {
		return
	}
	frame, err := Encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Str("room", room).Msg("encode event")
		return
	}
	for _, t := range tokens {
		h.deliver(t, event, frame)
	}
}

// Send implements Broadcaster.
func (h *Hub) Send(token, event string, payload any) {
	frame, err := Encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode event")
		return
	}
	h.deliver(token, event, frame)
}

func (h *Hub) deliver(token, event string, frame []byte) {
	h.mu.RLock()
	s, ok := h.conns[token]
	label := event
	if _, tracked := h.events[event]; !tracked {
		label = "other"
	}
	h.mu.RUnlock()
	if !ok {
		return
	}
	if s.Enqueue(frame) {
		wsFrames.WithLabelValues(label, "queued").Inc()
		return
	}
	wsFrames.WithLabelValues(label, "dropped").Inc()
	wsDropped.Inc()
	h.log.Debug().Str("token", token).Str("event", event).Msg("frame dropped")
}

// Shutdown closes every registered connection and waits until they have
// unregistered or ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	all := make([]Sender, 0, len(h.conns))
	for _, s := range h.conns {
		all = append(all, s)
	}
	h.mu.RUnlock()

	for _, s := range all {
		s.Close()
	}

	for h.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-shutdownPoll():
		}
	}
	return nil
}
