// ABOUTME: Deterministic scripted generator for tests and offline runs
// ABOUTME: Cycles canned replies; records the requests it was given

package llm

import (
	"context"
	"fmt"
	"sync"
)

// Scripted is a Generator that returns canned replies in order, cycling when
// it runs out. Safe for concurrent use; tests can inspect Requests.
type Scripted struct {
	mu      sync.Mutex
	replies []string
	calls   int

	// Requests holds every request seen, in call order.
	Requests []*Request
}

// NewScripted creates a scripted generator. With no replies it echoes a
// placeholder mentioning the call number.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

func (s *Scripted) Generate(_ context.Context, req *Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)
	n := s.calls
	s.calls++

	if len(s.replies) == 0 {
		return fmt.Sprintf("scripted reply %d", n), nil
	}
	return s.replies[n%len(s.replies)], nil
}

// Calls returns how many times Generate has run.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
