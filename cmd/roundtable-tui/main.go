// ABOUTME: Terminal client for a roundtable room — posts messages, renders the stream
// ABOUTME: Runs the client-resident delivery reducer over the room's SSE channel

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/roundtable/internal/deliver"
	"github.com/2389/roundtable/internal/store"
)

var (
	agentColor  = color.New(color.FgCyan, color.Bold)
	humanColor  = color.New(color.FgGreen, color.Bold)
	systemColor = color.New(color.FgYellow)
)

func main() {
	server := flag.String("server", "http://localhost:8484", "gateway base URL")
	roomID := flag.String("room", "", "room id to join (required)")
	sender := flag.String("sender", "", "your sender id (default: generated)")
	flag.Parse()

	if *roomID == "" {
		fmt.Fprintln(os.Stderr, "usage: roundtable-tui -room <room-id> [-server url] [-sender id]")
		os.Exit(1)
	}
	if *sender == "" {
		*sender = "user-" + uuid.New().String()[:8]
	}

	// The TUI only wants its own warnings on screen.
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := run(*server, *roomID, *sender); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type tui struct {
	server   string
	roomID   string
	sender   string
	client   *deliver.Client
	http     *http.Client
	mu       sync.Mutex
	rendered int
}

func run(server, roomID, sender string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	t := &tui{
		server: strings.TrimRight(server, "/"),
		roomID: roomID,
		sender: sender,
		client: deliver.NewClient(sender, nil),
		http:   &http.Client{},
	}
	t.client.SetOnChange(t.render)

	if err := t.seedHistory(ctx); err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	t.render()

	sub := &deliver.Subscriber{
		BaseURL: t.server,
		RoomID:  roomID,
		Client:  t.client,
	}
	streamErr := make(chan error, 1)
	go func() { streamErr <- sub.Run(ctx) }()

	systemColor.Printf("joined room %s as %s — type a message, Ctrl-D to quit\n", roomID, sender)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-streamErr:
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("stream: %w", err)
			}
			return nil
		case line, open := <-lines:
			if !open {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := t.post(ctx, line); err != nil {
				systemColor.Printf("send failed: %v\n", err)
			}
		}
	}
}

// seedHistory loads the committed backlog before the stream starts, so the
// reducer only has to handle live traffic.
func (t *tui) seedHistory(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/rooms/%s/messages", t.server, t.roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("history returned status %d", resp.StatusCode)
	}

	var msgs []*store.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return err
	}
	t.client.Seed(t.roomID, msgs)
	return nil
}

// post sends one message, applying it optimistically so the local bubble
// shows before the server echo (which the reducer filters out).
func (t *tui) post(ctx context.Context, content string) error {
	now := time.Now()
	optimistic := &store.Message{
		RoomID:    t.roomID,
		SenderID:  t.sender,
		Content:   content,
		CreatedAt: &now,
	}
	t.client.AddOptimistic(t.roomID, optimistic)
	t.render()

	body, err := json.Marshal(map[string]string{
		"sender_id":       t.sender,
		"content":         content,
		"idempotency_key": uuid.New().String(),
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/rooms/%s/messages", t.server, t.roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

// render prints messages not yet shown. The merged list only ever grows or
// upgrades entries in place, so a count cursor is enough.
func (t *tui) render() {
	t.mu.Lock()
	defer t.mu.Unlock()

	msgs := t.client.Messages(t.roomID)
	for ; t.rendered < len(msgs); t.rendered++ {
		m := msgs[t.rendered]
		if m.AgentID != "" {
			agentColor.Printf("%s: ", m.AgentID)
		} else {
			humanColor.Printf("%s: ", m.SenderID)
		}
		fmt.Println(m.Content)
	}
}
