// ABOUTME: SSE push channel: one ordered event stream per room per connection
// ABOUTME: Envelope frames plus heartbeat comments; closes on client disconnect

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/roundtable/internal/room"
)

// heartbeatInterval keeps intermediaries from timing out idle streams.
const heartbeatInterval = 15 * time.Second

func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request, roomID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if _, err := g.store.GetRoom(r.Context(), roomID); err != nil {
		g.sendJSONError(w, http.StatusNotFound, "room not found")
		return
	}

	ctx := r.Context()
	events, subID := g.rooms.Subscribe(ctx, roomID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	g.logger.Debug("stream opened", "room_id", roomID, "sub_id", subID)
	defer g.logger.Debug("stream closed", "room_id", roomID, "sub_id", subID)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env, open := <-events:
			if !open {
				return
			}
			g.writeSSEEvent(w, "message", env)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes one SSE frame. Encoding failures are logged and the
// frame skipped; the stream itself stays up.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, env *room.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		g.logger.Error("failed to encode envelope", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
