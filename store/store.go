// Package store provides pluggable key to entry storage for serialized
// HTTP responses: an in-memory map, a SQLite file and a Redis backend.
package store

import "time"

// Entry is one stored response record: the serialized HTTP/1.x message
// plus the timestamps bracketing the origin exchange that produced it and
// an optional expiry used for storage housekeeping.
type Entry struct {
	Key          string
	RequestTime  time.Time
	ResponseTime time.Time
	Expires      time.Time
	Bytes        []byte
}

// Store is a key to entry store for cached responses.
//
// Implementations must be safe for concurrent use. Races between writers
// on the same key are resolved last-writer-wins; the store provides no
// cross-request coordination beyond that.
type Store interface {
	// All returns every entry whose key starts with the given prefix,
	// i.e. all stored variants of one resource. Expired entries are not
	// returned.
	All(prefix string) ([]Entry, error)
	// Put stores the entry under its key, replacing any previous one.
	Put(Entry) error
	// Purge removes the entry for the given key, if present.
	Purge(key string) error
}
