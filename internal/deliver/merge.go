// ABOUTME: Merge pass: applies pending envelopes to the cached message lists
// ABOUTME: Idempotent upsert keyed by messageKey, then durable id, else append

package deliver

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/2389/roundtable/internal/room"
	"github.com/2389/roundtable/internal/store"
)

// Cache holds the merged, deduplicated message list per room. It is the
// visible state consumed by rendering; the reducer state only stages
// envelopes on their way in.
type Cache struct {
	lists map[string][]*store.Message
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{lists: make(map[string][]*store.Message)}
}

// Messages returns the merged list for a room in merge order.
func (c *Cache) Messages(roomID string) []*store.Message {
	return append([]*store.Message(nil), c.lists[roomID]...)
}

// Seed replaces a room's list wholesale, used to load history on (re)connect.
func (c *Cache) Seed(roomID string, msgs []*store.Message) {
	c.lists[roomID] = append([]*store.Message(nil), msgs...)
}

// AddLocal appends an optimistic, locally authored message. The broadcast
// echo of this message is filtered before it reaches the reducer, so the
// optimistic copy is upgraded via messageKey rather than duplicated.
func (c *Cache) AddLocal(roomID string, msg *store.Message) {
	c.lists[roomID] = append(c.lists[roomID], msg)
}

// Merge applies one envelope's message to the room list. The upsert is
// idempotent: applying the same envelope twice leaves the list unchanged.
func (c *Cache) Merge(env *room.Envelope) error {
	if env == nil || env.Message == nil {
		return fmt.Errorf("envelope has no message")
	}
	msg := env.Message
	list := c.lists[env.RoomID]

	// 1. A shared messageKey means the same logical reply: replace only if
	// the incoming copy is richer, otherwise it's a stale duplicate.
	if msg.MessageKey != "" {
		for i, existing := range list {
			if existing.MessageKey != msg.MessageKey {
				continue
			}
			if richer(msg, existing) {
				list[i] = msg
			}
			return nil
		}
	}

	// 2. A shared durable id is a plain duplicate.
	if msg.ID != "" {
		for _, existing := range list {
			if existing.ID == msg.ID {
				return nil
			}
		}
	}

	// 3. Genuinely new: append.
	c.lists[env.RoomID] = append(list, msg)
	return nil
}

// richer reports whether the incoming copy carries durable fields the
// existing one lacks.
func richer(incoming, existing *store.Message) bool {
	if incoming.ID != "" && existing.ID == "" {
		return true
	}
	if incoming.CreatedAt != nil && existing.CreatedAt == nil {
		return true
	}
	return false
}

// RunMergePass merges every eligible pending envelope, ascending by
// sequence, and returns the ProcessMessage action to apply — or nil when
// nothing changed.
//
// A merge failure leaves that envelope pending with the watermark held below
// its sequence so it is retried on the next pass; later envelopes still
// merge in the same pass (the upsert being idempotent makes the eventual
// re-merge harmless).
func RunMergePass(s State, cache *Cache, logger *slog.Logger) *ProcessMessage {
	if logger == nil {
		logger = slog.Default()
	}
	if len(s.Pending) == 0 {
		return nil
	}

	envs := make([]*room.Envelope, 0, len(s.Pending))
	for _, env := range s.Pending {
		envs = append(envs, env)
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].Sequence < envs[j].Sequence })

	watermark := s.LastProcessedSequence
	advancing := true
	var processed []string

	for _, env := range envs {
		if env.Sequence <= s.LastProcessedSequence {
			// Already applied on an earlier pass; just drop it from pending.
			processed = append(processed, env.EventID)
			continue
		}
		if err := cache.Merge(env); err != nil {
			logger.Warn("envelope failed to merge, will retry",
				"event_id", env.EventID,
				"sequence", env.Sequence,
				"error", err)
			advancing = false
			continue
		}
		processed = append(processed, env.EventID)
		if advancing {
			watermark = env.Sequence
		}
	}

	if len(processed) == 0 && watermark == s.LastProcessedSequence {
		return nil
	}
	return &ProcessMessage{EventIDs: processed, Watermark: watermark}
}
