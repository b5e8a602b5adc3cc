package storage

import "time"

// Store is the key-value cache consumed by the indexing engine and the
// read resolver. Implementations must give atomic visibility to a
// committed Batch; there is no cross-batch transaction.
type Store interface {
	// Get decodes the entry at key into out. Returns false if the key is
	// absent or expired; absence is not an error.
	Get(key Key, out any) (bool, error)

	// Set writes a single entry. ttl == 0 means the entry never expires.
	Set(key Key, value any, ttl time.Duration) error

	// Scan iterates, in lexicographic segment order, over every live entry
	// strictly below the given key path. fn receives the full key and the
	// raw JSON value. Returning an error from fn stops the scan.
	Scan(prefix Key, fn func(key Key, value []byte) error) error

	// Batch returns a write batch. Queued sets become visible together
	// when Commit succeeds, or not at all.
	Batch() Batch

	// Close releases the underlying store.
	Close() error
}

// Batch queues writes for one atomic commit.
type Batch interface {
	Set(key Key, value any, ttl time.Duration)
	Len() int
	Commit() error
}
