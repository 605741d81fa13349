// Package store provides persistence for rooms, agents and messages.
//
// The Store interface is implemented by SQLiteStore (modernc.org/sqlite,
// pure Go) for production and MockStore for tests. Messages are the durable
// record: the store assigns creation timestamps on insert, and the optional
// message_key column carries the logical reply identity with a partial
// unique index so the same logical reply can never be committed twice.
package store
