// ABOUTME: Room service — persist-first message commit, then push-channel fan-out
// ABOUTME: The store is the source of truth; broadcast happens only after commit

package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/roundtable/internal/dedupe"
	"github.com/2389/roundtable/internal/store"
)

// Idempotency window for re-sent client posts.
const (
	dedupeTTL     = 2 * time.Minute
	dedupeMaxKeys = 4096
)

// ErrDuplicatePost is returned when a post carries an idempotency key that
// was already accepted within the dedupe window.
var ErrDuplicatePost = errors.New("duplicate post")

// PostRequest describes one message to commit to a room. Exactly one of
// SenderID or AgentID must be set.
type PostRequest struct {
	RoomID     string
	SenderID   string
	AgentID    string
	Content    string
	MessageKey string
	// IdempotencyKey, when set, suppresses re-sends of the same post.
	IdempotencyKey string
	// ExcludeSubID skips the originating subscription during fan-out.
	ExcludeSubID string
}

// Service commits messages and fans them out to room subscribers.
type Service struct {
	store  store.Store
	bus    *Broadcaster
	dupes  *dedupe.Cache
	logger *slog.Logger
}

// NewService creates the room service.
func NewService(st store.Store, bus *Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		bus:    bus,
		dupes:  dedupe.New(dedupeTTL, dedupeMaxKeys),
		logger: logger.With("component", "room"),
	}
}

// Post commits a message and publishes its envelope. Record first, then
// fan out: the message is durable (with store-assigned id and timestamp)
// before any client sees it. A message_key collision resolves to the
// already-committed copy, which is re-broadcast so late subscribers still
// converge.
func (s *Service) Post(ctx context.Context, req *PostRequest) (*store.Message, error) {
	if req.RoomID == "" {
		return nil, fmt.Errorf("room_id is required")
	}
	if req.SenderID == "" && req.AgentID == "" {
		return nil, fmt.Errorf("sender_id or agent_id is required")
	}
	if _, err := s.store.GetRoom(ctx, req.RoomID); err != nil {
		return nil, fmt.Errorf("resolving room: %w", err)
	}

	if s.dupes.Duplicate(req.IdempotencyKey) {
		s.logger.Debug("dropping duplicate post",
			"room_id", req.RoomID,
			"idempotency_key", req.IdempotencyKey)
		return nil, ErrDuplicatePost
	}

	msg := &store.Message{
		ID:         uuid.New().String(),
		RoomID:     req.RoomID,
		SenderID:   req.SenderID,
		AgentID:    req.AgentID,
		Content:    req.Content,
		MessageKey: req.MessageKey,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			existing, lookupErr := s.store.GetMessageByKey(ctx, req.RoomID, req.MessageKey)
			if lookupErr != nil {
				s.dupes.Forget(req.IdempotencyKey)
				return nil, fmt.Errorf("resolving existing message after key collision: %w", lookupErr)
			}
			s.logger.Debug("message key already committed, re-broadcasting existing copy",
				"room_id", req.RoomID,
				"message_key", req.MessageKey,
				"message_id", existing.ID)
			s.publish(existing, req.ExcludeSubID)
			return existing, nil
		}
		// Nothing was committed: release the idempotency key so the client's
		// retry is not rejected as a duplicate of a post that never happened.
		s.dupes.Forget(req.IdempotencyKey)
		return nil, fmt.Errorf("saving message: %w", err)
	}

	s.logger.Debug("message committed",
		"room_id", req.RoomID,
		"message_id", msg.ID,
		"author", msg.Speaker())

	s.publish(msg, req.ExcludeSubID)
	return msg, nil
}

// History returns up to limit messages for a room in chronological order.
func (s *Service) History(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	return s.store.GetMessagesByRoom(ctx, roomID, limit)
}

// Subscribe attaches a push-channel subscriber to a room.
func (s *Service) Subscribe(ctx context.Context, roomID string) (<-chan *Envelope, string) {
	return s.bus.Subscribe(ctx, roomID)
}

func (s *Service) publish(msg *store.Message, excludeSubID string) {
	env := &Envelope{
		RoomID:  msg.RoomID,
		Message: msg,
		EventID: uuid.New().String(),
	}
	s.bus.Publish(msg.RoomID, env, excludeSubID)
}
