// ABOUTME: SSE consumer feeding a room's push stream into the delivery Client
// ABOUTME: Stamps receipt sequences per connection; ClearAll on disconnect

package deliver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/roundtable/internal/room"
)

// Subscriber reads a room's SSE stream and drives a delivery Client. It owns
// the connection-scoped sequence counter: a fresh Conn per connection, with
// ClearAll issued when the connection ends for any reason. Reconnection and
// backoff are the caller's business; this type handles exactly one
// connection per Run call.
type Subscriber struct {
	BaseURL string
	RoomID  string
	Client  *Client
	HTTP    *http.Client
	Logger  *slog.Logger
}

// Run opens the stream and pumps envelopes into the client until the context
// is cancelled or the connection drops. The client is reset on the way out.
func (s *Subscriber) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "subscriber", "room_id", s.RoomID)

	httpClient := s.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	url := fmt.Sprintf("%s/api/rooms/%s/stream", strings.TrimRight(s.BaseURL, "/"), s.RoomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	// Connection-scoped: sequences start at 0 on every connect.
	conn := NewConn()
	defer s.Client.Reset()

	logger.Debug("stream open")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "":
			if data.Len() > 0 {
				s.dispatch(conn, data.String(), logger)
				data.Reset()
			}
		}
		// Comment lines (": heartbeat") and event names need no handling;
		// every frame we care about carries an envelope in its data.
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return ctx.Err()
}

func (s *Subscriber) dispatch(conn *Conn, payload string, logger *slog.Logger) {
	var env room.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		logger.Warn("dropping undecodable frame", "error", err)
		return
	}
	env.Sequence = conn.Next()
	s.Client.Receive(&env)
}
