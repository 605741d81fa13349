// ABOUTME: In-memory fan-out of message envelopes to a room's push subscribers
// ABOUTME: Non-blocking sends; slow subscribers drop rather than stall the room

package room

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/roundtable/internal/store"
)

// subscriberBuffer is the channel buffer per subscriber. Delivery within a
// connection is ordered; a full buffer drops for that subscriber only.
const subscriberBuffer = 64

// Envelope is the wire unit pushed to clients. Sequence is assigned by each
// client on receipt, not here; the server contributes only the end-to-end
// dedup key EventID.
type Envelope struct {
	RoomID   string         `json:"room_id"`
	Message  *store.Message `json:"message"`
	Sequence int            `json:"sequence,omitempty"`
	EventID  string         `json:"event_id"`
}

type subscriber struct {
	id string
	ch chan *Envelope
}

// Broadcaster fans committed messages out to every subscriber of a room.
type Broadcaster struct {
	mu     sync.RWMutex
	rooms  map[string][]*subscriber
	logger *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for the default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		rooms:  make(map[string][]*subscriber),
		logger: logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for a room's envelopes. The returned
// channel is closed and the subscription removed when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, roomID string) (<-chan *Envelope, string) {
	sub := &subscriber{
		id: uuid.New().String(),
		ch: make(chan *Envelope, subscriberBuffer),
	}

	b.mu.Lock()
	b.rooms[roomID] = append(b.rooms[roomID], sub)
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "room_id", roomID, "sub_id", sub.id)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(roomID, sub.id)
	}()

	return sub.ch, sub.id
}

// Publish delivers an envelope to every subscriber of the room except the
// one identified by excludeSubID (the originating connection, if any).
func (b *Broadcaster) Publish(roomID string, env *Envelope, excludeSubID string) {
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.rooms[roomID]))
	for _, sub := range b.rooms[roomID] {
		if excludeSubID != "" && sub.id == excludeSubID {
			continue
		}
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.ch <- env:
		default:
			b.logger.Debug("dropped envelope for slow subscriber",
				"room_id", roomID,
				"sub_id", sub.id,
				"event_id", env.EventID)
		}
	}
}

// Unsubscribe removes one subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(roomID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.rooms[roomID]
	for i, sub := range subs {
		if sub.id != subID {
			continue
		}
		b.rooms[roomID] = append(subs[:i], subs[i+1:]...)
		close(sub.ch)
		break
	}
	if len(b.rooms[roomID]) == 0 {
		delete(b.rooms, roomID)
	}

	b.logger.Debug("subscriber removed", "room_id", roomID, "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for roomID, subs := range b.rooms {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(b.rooms, roomID)
	}
}
