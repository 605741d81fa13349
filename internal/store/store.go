// ABOUTME: Store interface and data types for roundtable persistence
// ABOUTME: Defines Room, Agent, Message structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateKey is returned when an insert collides with an existing
// message_key. The earlier row wins; callers fetch it via GetMessageByKey.
var ErrDuplicateKey = errors.New("message key already exists")

// Room is one shared conversation space. Scheduling pipelines for different
// rooms are fully independent.
type Room struct {
	ID        string
	Topic     string
	CreatedAt time.Time
}

// Agent is a simulated participant attached to a room.
type Agent struct {
	ID        string
	RoomID    string
	Name      string
	Persona   string
	CreatedAt time.Time
}

// Message is one committed utterance in a room. Exactly one of SenderID
// (human) or AgentID (simulated participant) is set. MessageKey is the
// derived logical identity (room:turn:agent:index) that lets clients
// recognize the same reply across its optimistic and durable copies.
type Message struct {
	ID         string     `json:"id"`
	RoomID     string     `json:"room_id"`
	SenderID   string     `json:"sender_id,omitempty"`
	AgentID    string     `json:"agent_id,omitempty"`
	Content    string     `json:"content"`
	MessageKey string     `json:"message_key,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// Speaker returns the display attribution used when rendering transcripts.
func (m *Message) Speaker() string {
	if m.AgentID != "" {
		return m.AgentID
	}
	return m.SenderID
}

// Store is the persistence interface for rooms, agents and messages.
type Store interface {
	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, id string) (*Room, error)
	ListRooms(ctx context.Context) ([]*Room, error)

	CreateAgent(ctx context.Context, agent *Agent) error
	ListAgentsByRoom(ctx context.Context, roomID string) ([]*Agent, error)

	SaveMessage(ctx context.Context, msg *Message) error
	GetMessagesByRoom(ctx context.Context, roomID string, limit int) ([]*Message, error)
	GetMessageByKey(ctx context.Context, roomID, messageKey string) (*Message, error)

	Close() error
}
