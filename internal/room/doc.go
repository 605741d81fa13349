// Package room provides the server-side message commit path and the
// in-memory push-channel fan-out.
//
// All messages flow through Service.Post: the message is persisted first
// (the store assigns the durable id and timestamp), then wrapped in an
// Envelope with a fresh event id and published to every subscriber of the
// room. Ordering is per-connection: each subscriber channel preserves
// publish order, and clients assign their own receipt sequences. Nothing is
// retried; a subscriber that misses an envelope relies on history replay,
// not on this package.
package room
