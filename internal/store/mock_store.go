// ABOUTME: In-memory Store implementation for tests
// ABOUTME: Mirrors SQLiteStore semantics including message_key uniqueness

package store

import (
	"context"
	"sync"
	"time"
)

// MockStore is a thread-safe in-memory Store used by tests.
type MockStore struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	agents   map[string][]*Agent  // roomID -> agents
	messages map[string][]*Message // roomID -> messages in insertion order

	// FailSaveMessage, when set, is returned by SaveMessage. Lets tests
	// exercise persistence-failure paths.
	FailSaveMessage error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		rooms:    make(map[string]*Room),
		agents:   make(map[string][]*Agent),
		messages: make(map[string][]*Message),
	}
}

func (m *MockStore) CreateRoom(_ context.Context, room *Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room
	return nil
}

func (m *MockStore) GetRoom(_ context.Context, id string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return room, nil
}

func (m *MockStore) ListRooms(_ context.Context) ([]*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms, nil
}

func (m *MockStore) CreateAgent(_ context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.RoomID] = append(m.agents[agent.RoomID], agent)
	return nil
}

func (m *MockStore) ListAgentsByRoom(_ context.Context, roomID string) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Agent(nil), m.agents[roomID]...), nil
}

func (m *MockStore) SaveMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSaveMessage != nil {
		return m.FailSaveMessage
	}

	if msg.MessageKey != "" {
		for _, existing := range m.messages[msg.RoomID] {
			if existing.MessageKey == msg.MessageKey {
				return ErrDuplicateKey
			}
		}
	}
	if msg.CreatedAt == nil {
		now := time.Now()
		msg.CreatedAt = &now
	}
	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], msg)
	return nil
}

func (m *MockStore) GetMessagesByRoom(_ context.Context, roomID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[roomID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]*Message(nil), msgs...), nil
}

func (m *MockStore) GetMessageByKey(_ context.Context, roomID, messageKey string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msg := range m.messages[roomID] {
		if msg.MessageKey == messageKey {
			return msg, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) Close() error { return nil }
