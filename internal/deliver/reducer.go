// ABOUTME: Pure reducer over push-channel actions: pending envelopes + watermark
// ABOUTME: AddMessage / ProcessMessage / ClearAll form a closed action set

package deliver

import "github.com/2389/roundtable/internal/room"

// State is the per-connection reducer state. It lives only in memory and is
// reset to empty on reconnect or auth change.
//
// Invariant: LastProcessedSequence is non-decreasing, and every envelope
// with Sequence <= LastProcessedSequence has been merged into the visible
// list exactly once.
type State struct {
	Pending               map[string]*room.Envelope // eventID -> envelope
	LastProcessedSequence int
}

// NewState returns the initial state: nothing pending, watermark -1.
func NewState() State {
	return State{
		Pending:               map[string]*room.Envelope{},
		LastProcessedSequence: -1,
	}
}

// Action is the closed set of reducer inputs.
type Action interface{ isAction() }

// AddMessage records an envelope received on the push channel. Re-delivery
// of the same event id simply replaces the pending copy.
type AddMessage struct {
	Envelope *room.Envelope
}

// ProcessMessage removes a batch of merged (or already-applied) envelopes
// from the pending set and advances the watermark.
type ProcessMessage struct {
	EventIDs  []string
	Watermark int
}

// ClearAll resets the reducer on connect, disconnect or auth change.
type ClearAll struct{}

func (AddMessage) isAction()     {}
func (ProcessMessage) isAction() {}
func (ClearAll) isAction()       {}

// Reduce is the pure transition function. The input state is never mutated;
// maps are copied on write so observers of the old state stay consistent.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case AddMessage:
		if act.Envelope == nil || act.Envelope.EventID == "" {
			return s
		}
		pending := make(map[string]*room.Envelope, len(s.Pending)+1)
		for k, v := range s.Pending {
			pending[k] = v
		}
		pending[act.Envelope.EventID] = act.Envelope
		return State{Pending: pending, LastProcessedSequence: s.LastProcessedSequence}

	case ProcessMessage:
		pending := make(map[string]*room.Envelope, len(s.Pending))
		for k, v := range s.Pending {
			pending[k] = v
		}
		for _, id := range act.EventIDs {
			delete(pending, id)
		}
		watermark := s.LastProcessedSequence
		if act.Watermark > watermark {
			watermark = act.Watermark
		}
		return State{Pending: pending, LastProcessedSequence: watermark}

	case ClearAll:
		return NewState()

	default:
		return s
	}
}
