// Package deliver is the client-resident delivery pipeline: an ordered,
// deduplicating state machine that merges push-channel envelopes into the
// locally cached message list.
//
// The design is a reducer: State is an immutable value, the action set
// (AddMessage, ProcessMessage, ClearAll) is closed, and Reduce is a pure
// transition function. The side-effecting merge pass runs after each
// transition, sorting all pending envelopes by receipt sequence so that
// delivery order never affects the final list. The watermark
// (LastProcessedSequence) only ever advances; envelopes at or below it are
// already applied and are dropped, never re-merged.
//
// Receipt sequences are connection-scoped: Conn starts at 0 on connect and
// is discarded on disconnect, with ClearAll resetting the reducer. A missed
// envelope is permanently lost from this package's perspective; recovery is
// history replay (Seed), owned by the caller.
package deliver
