// ABOUTME: HTTP API tests over httptest against a mock store
// ABOUTME: Room/agent/message endpoints plus error status mapping

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/roundtable/internal/room"
	"github.com/2389/roundtable/internal/store"
)

func newTestGateway(t *testing.T) (*Gateway, *store.MockStore) {
	t.Helper()
	st := store.NewMockStore()
	bus := room.NewBroadcaster(nil)
	t.Cleanup(bus.Close)
	return New(st, room.NewService(st, bus, nil), nil, nil), st
}

func doJSON(t *testing.T, g *Gateway, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	g.Routes().ServeHTTP(rec, req)
	return rec
}

func createRoom(t *testing.T, g *Gateway, topic string) string {
	t.Helper()
	rec := doJSON(t, g, http.MethodPost, "/api/rooms", CreateRoomRequest{Topic: topic})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp RoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func TestCreateAndListRooms(t *testing.T) {
	g, _ := newTestGateway(t)

	id := createRoom(t, g, "capacity planning")
	require.NotEmpty(t, id)

	rec := doJSON(t, g, http.MethodGet, "/api/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rooms []RoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "capacity planning", rooms[0].Topic)
}

func TestCreateRoom_InvalidJSON(t *testing.T) {
	g, _ := newTestGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	g.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRooms_MethodNotAllowed(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(t, g, http.MethodDelete, "/api/rooms", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAgentLifecycle(t *testing.T) {
	g, _ := newTestGateway(t)
	roomID := createRoom(t, g, "standup")

	rec := doJSON(t, g, http.MethodPost, "/api/rooms/"+roomID+"/agents",
		CreateAgentRequest{Name: "Mina", Persona: "pragmatic skeptic"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, g, http.MethodGet, "/api/rooms/"+roomID+"/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var agents []AgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	require.Len(t, agents, 1)
	assert.Equal(t, "Mina", agents[0].Name)
}

func TestCreateAgent_Validation(t *testing.T) {
	g, _ := newTestGateway(t)
	roomID := createRoom(t, g, "standup")

	rec := doJSON(t, g, http.MethodPost, "/api/rooms/"+roomID+"/agents", CreateAgentRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, g, http.MethodPost, "/api/rooms/ghost/agents", CreateAgentRequest{Name: "Mina"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostMessage_CommitsAndReturnsAccepted(t *testing.T) {
	g, st := newTestGateway(t)
	roomID := createRoom(t, g, "standup")

	rec := doJSON(t, g, http.MethodPost, "/api/rooms/"+roomID+"/messages",
		PostMessageRequest{SenderID: "human-1", Content: "good morning"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var msg store.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "good morning", msg.Content)

	saved, err := st.GetMessagesByRoom(t.Context(), roomID, 0)
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestPostMessage_ErrorStatuses(t *testing.T) {
	g, _ := newTestGateway(t)
	roomID := createRoom(t, g, "standup")

	rec := doJSON(t, g, http.MethodPost, "/api/rooms/"+roomID+"/messages",
		PostMessageRequest{Content: "no sender"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, g, http.MethodPost, "/api/rooms/ghost/messages",
		PostMessageRequest{SenderID: "human-1", Content: "hello"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := PostMessageRequest{SenderID: "human-1", Content: "once", IdempotencyKey: "idem-1"}
	rec = doJSON(t, g, http.MethodPost, "/api/rooms/"+roomID+"/messages", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = doJSON(t, g, http.MethodPost, "/api/rooms/"+roomID+"/messages", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHistory_LimitAndOrder(t *testing.T) {
	g, _ := newTestGateway(t)
	roomID := createRoom(t, g, "standup")

	for i := 0; i < 4; i++ {
		rec := doJSON(t, g, http.MethodPost, "/api/rooms/"+roomID+"/messages",
			PostMessageRequest{SenderID: "human-1", Content: fmt.Sprintf("message %d", i)})
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := doJSON(t, g, http.MethodGet, "/api/rooms/"+roomID+"/messages?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []*store.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "message 2", msgs[0].Content)
	assert.Equal(t, "message 3", msgs[1].Content)

	rec = doJSON(t, g, http.MethodGet, "/api/rooms/"+roomID+"/messages?limit=banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_EmptyRoomReturnsEmptyArray(t *testing.T) {
	g, _ := newTestGateway(t)
	roomID := createRoom(t, g, "quiet")

	rec := doJSON(t, g, http.MethodGet, "/api/rooms/"+roomID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestUnknownRoutes(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(t, g, http.MethodGet, "/api/rooms/abc/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, g, http.MethodGet, "/api/rooms/bare-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(t, g, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
