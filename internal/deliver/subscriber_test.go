// ABOUTME: Tests for the SSE consumer against a stub stream server
// ABOUTME: Sequence stamping, bad-frame tolerance, reset on disconnect

package deliver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/roundtable/internal/room"
	"github.com/2389/roundtable/internal/store"
)

// sseStub serves one stream request, writing the given frames then closing.
func sseStub(t *testing.T, roomID string, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/rooms/"+roomID+"/stream", r.URL.Path)
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
}

func envelopeFrame(t *testing.T, eventID, msgID string) string {
	t.Helper()
	env := &room.Envelope{
		RoomID:  "room-1",
		EventID: eventID,
		Message: &store.Message{ID: msgID, RoomID: "room-1", SenderID: "human-1", Content: "hi"},
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return fmt.Sprintf("event: message\ndata: %s\n\n", data)
}

func TestSubscriber_MergesStreamInArrivalOrder(t *testing.T) {
	frames := []string{
		envelopeFrame(t, "evt-1", "m1"),
		": heartbeat\n\n",
		envelopeFrame(t, "evt-2", "m2"),
	}
	srv := sseStub(t, "room-1", frames)
	defer srv.Close()

	client := NewClient("", nil)
	sub := &Subscriber{BaseURL: srv.URL, RoomID: "room-1", Client: client}

	require.NoError(t, sub.Run(t.Context()))

	// The merged cache survives the disconnect; only reducer state resets.
	msgs := client.Messages("room-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
	assert.Equal(t, -1, client.Watermark(), "reducer state cleared on disconnect")
}

func TestSubscriber_SkipsUndecodableFrames(t *testing.T) {
	frames := []string{
		"event: message\ndata: {not json\n\n",
		envelopeFrame(t, "evt-1", "m1"),
	}
	srv := sseStub(t, "room-1", frames)
	defer srv.Close()

	client := NewClient("", nil)
	sub := &Subscriber{BaseURL: srv.URL, RoomID: "room-1", Client: client}

	require.NoError(t, sub.Run(t.Context()))
	assert.Len(t, client.Messages("room-1"), 1)
}

func TestSubscriber_NonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such room", http.StatusNotFound)
	}))
	defer srv.Close()

	sub := &Subscriber{BaseURL: srv.URL, RoomID: "ghost", Client: NewClient("", nil)}
	err := sub.Run(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestSubscriber_ContextCancelStopsCleanly(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(t.Context())
	sub := &Subscriber{BaseURL: srv.URL, RoomID: "room-1", Client: NewClient("", nil)}

	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop after context cancel")
	}
}
