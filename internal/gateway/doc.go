// Package gateway exposes the roundtable HTTP API: room and agent CRUD,
// message posting, history, and the per-room SSE push channel. Posting a
// human message also kicks the director's scheduling turn off the request
// path.
package gateway
