// ABOUTME: Client-side delivery pipeline: receipt sequencing, reducer loop, merge
// ABOUTME: One Client per room subscription; run-to-completion per action

package deliver

import (
	"log/slog"
	"sync"

	"github.com/2389/roundtable/internal/room"
	"github.com/2389/roundtable/internal/store"
)

// Conn is the connection-scoped receipt-sequence counter. It is created on
// connect and discarded on disconnect; counters never survive a reconnect.
type Conn struct {
	mu   sync.Mutex
	next int
}

// NewConn returns a counter starting at 0.
func NewConn() *Conn { return &Conn{} }

// Next returns the next receipt sequence.
func (c *Conn) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.next
	c.next++
	return n
}

// Client owns one room subscription's delivery state: the reducer state, the
// merged message cache, and the identity used for own-echo filtering.
// Actions run to completion under one lock, with the merge pass scheduled
// after every transition, so transitions never interleave.
type Client struct {
	mu          sync.Mutex
	state       State
	cache       *Cache
	localSender string
	logger      *slog.Logger
	onChange    func()
}

// NewClient creates a delivery client. localSender is the identity whose own
// broadcast echoes are filtered (it already applied them optimistically);
// pass "" for a client that never posts.
func NewClient(localSender string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		state:       NewState(),
		cache:       NewCache(),
		localSender: localSender,
		logger:      logger.With("component", "deliver"),
	}
}

// Receive handles one push-channel envelope: filters the author's own echo,
// stages the envelope, then runs a merge pass. Several rapid receipts
// coalesce naturally because the merge pass always re-sorts all pending
// envelopes.
func (c *Client) Receive(env *room.Envelope) {
	if env != nil && env.Message != nil &&
		c.localSender != "" && env.Message.SenderID == c.localSender {
		c.logger.Debug("filtering own echo", "event_id", env.EventID)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, AddMessage{Envelope: env})
	c.runMergeLocked()
}

// AddOptimistic appends a locally authored message to the visible list ahead
// of its broadcast echo. The durable copy later replaces it via messageKey.
func (c *Client) AddOptimistic(roomID string, msg *store.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.AddLocal(roomID, msg)
}

// Seed loads a room's history into the visible list, typically right after
// (re)connecting.
func (c *Client) Seed(roomID string, msgs []*store.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Seed(roomID, msgs)
}

// Reset applies ClearAll. Any merge pass already holding the lock completes
// against the pre-clear state first; there is no mid-merge cancellation.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, ClearAll{})
}

// Messages returns the merged, deduplicated list for a room.
func (c *Client) Messages(roomID string) []*store.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Messages(roomID)
}

// Watermark returns the current LastProcessedSequence.
func (c *Client) Watermark() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.LastProcessedSequence
}

// PendingCount returns how many envelopes are staged but not yet merged.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.state.Pending)
}

// SetOnChange registers a callback fired (outside the lock) after a merge
// pass changes visible state. UIs use it to re-render.
func (c *Client) SetOnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

func (c *Client) runMergeLocked() {
	action := RunMergePass(c.state, c.cache, c.logger)
	if action == nil {
		return
	}
	c.state = Reduce(c.state, *action)
	if c.onChange != nil {
		go c.onChange()
	}
}
