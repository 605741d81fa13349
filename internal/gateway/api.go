// ABOUTME: HTTP API handlers for rooms, messages, agents and the SSE push channel
// ABOUTME: POST commits through the room service; GET /stream fans envelopes out

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/roundtable/internal/room"
	"github.com/2389/roundtable/internal/store"
)

// CreateRoomRequest is the JSON body for POST /api/rooms.
type CreateRoomRequest struct {
	Topic string `json:"topic"`
}

// RoomResponse is the JSON shape for a room.
type RoomResponse struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAgentRequest is the JSON body for POST /api/rooms/{id}/agents.
type CreateAgentRequest struct {
	Name    string `json:"name"`
	Persona string `json:"persona"`
}

// AgentResponse is the JSON shape for an agent.
type AgentResponse struct {
	ID      string `json:"id"`
	RoomID  string `json:"room_id"`
	Name    string `json:"name"`
	Persona string `json:"persona,omitempty"`
}

// PostMessageRequest is the JSON body for POST /api/rooms/{id}/messages.
type PostMessageRequest struct {
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	MessageKey     string `json:"message_key,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (g *Gateway) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListRooms(w, r)
	case http.MethodPost:
		g.handleCreateRoom(w, r)
	default:
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (g *Gateway) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rm := &store.Room{
		ID:        uuid.New().String(),
		Topic:     req.Topic,
		CreatedAt: time.Now(),
	}
	if err := g.store.CreateRoom(r.Context(), rm); err != nil {
		g.logger.Error("failed to create room", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	g.writeJSON(w, http.StatusCreated, roomResponse(rm))
}

func (g *Gateway) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := g.store.ListRooms(r.Context())
	if err != nil {
		g.logger.Error("failed to list rooms", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}

	out := make([]RoomResponse, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, roomResponse(rm))
	}
	g.writeJSON(w, http.StatusOK, out)
}

// handleRoomRoutes dispatches /api/rooms/{id}/... paths.
func (g *Gateway) handleRoomRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}
	roomID, resource := parts[0], parts[1]

	switch {
	case resource == "messages" && r.Method == http.MethodPost:
		g.handlePostMessage(w, r, roomID)
	case resource == "messages" && r.Method == http.MethodGet:
		g.handleHistory(w, r, roomID)
	case resource == "agents" && r.Method == http.MethodPost:
		g.handleCreateAgent(w, r, roomID)
	case resource == "agents" && r.Method == http.MethodGet:
		g.handleListAgents(w, r, roomID)
	case resource == "stream" && r.Method == http.MethodGet:
		g.handleStream(w, r, roomID)
	default:
		g.sendJSONError(w, http.StatusNotFound, "not found")
	}
}

func (g *Gateway) handlePostMessage(w http.ResponseWriter, r *http.Request, roomID string) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SenderID == "" || req.Content == "" {
		g.sendJSONError(w, http.StatusBadRequest, "sender_id and content are required")
		return
	}

	msg, err := g.rooms.Post(r.Context(), &room.PostRequest{
		RoomID:         roomID,
		SenderID:       req.SenderID,
		Content:        req.Content,
		MessageKey:     req.MessageKey,
		IdempotencyKey: req.IdempotencyKey,
	})
	switch {
	case errors.Is(err, room.ErrDuplicatePost):
		g.sendJSONError(w, http.StatusConflict, "duplicate post")
		return
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "room not found")
		return
	case err != nil:
		g.logger.Error("failed to post message", "room_id", roomID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to post message")
		return
	}

	// Kick off the scheduling pipeline off the request path. The turn runs
	// against its own deadline; the HTTP response doesn't wait for agents.
	g.scheduleTurn(msg)

	g.writeJSON(w, http.StatusAccepted, msg)
}

func (g *Gateway) scheduleTurn(trigger *store.Message) {
	if g.director == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.turnTimeout)
		defer cancel()
		if _, err := g.director.Step(ctx, trigger); err != nil {
			g.logger.Error("scheduling turn failed",
				"room_id", trigger.RoomID,
				"trigger_id", trigger.ID,
				"error", err)
		}
	}()
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request, roomID string) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			g.sendJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	msgs, err := g.rooms.History(r.Context(), roomID, limit)
	if err != nil {
		g.logger.Error("failed to load history", "room_id", roomID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if msgs == nil {
		msgs = []*store.Message{}
	}
	g.writeJSON(w, http.StatusOK, msgs)
}

func (g *Gateway) handleCreateAgent(w http.ResponseWriter, r *http.Request, roomID string) {
	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		g.sendJSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := g.store.GetRoom(r.Context(), roomID); err != nil {
		g.sendJSONError(w, http.StatusNotFound, "room not found")
		return
	}

	agent := &store.Agent{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Name:      req.Name,
		Persona:   req.Persona,
		CreatedAt: time.Now(),
	}
	if err := g.store.CreateAgent(r.Context(), agent); err != nil {
		g.logger.Error("failed to create agent", "room_id", roomID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to create agent")
		return
	}

	g.writeJSON(w, http.StatusCreated, agentResponse(agent))
}

func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request, roomID string) {
	agents, err := g.store.ListAgentsByRoom(r.Context(), roomID)
	if err != nil {
		g.logger.Error("failed to list agents", "room_id", roomID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to list agents")
		return
	}

	out := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentResponse(a))
	}
	g.writeJSON(w, http.StatusOK, out)
}

func roomResponse(rm *store.Room) RoomResponse {
	return RoomResponse{ID: rm.ID, Topic: rm.Topic, CreatedAt: rm.CreatedAt}
}

func agentResponse(a *store.Agent) AgentResponse {
	return AgentResponse{ID: a.ID, RoomID: a.RoomID, Name: a.Name, Persona: a.Persona}
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`+"\n", message)
}
