// Package types defines the shared domain model for lexcache: the primary
// cache records (membership, information, committees, documents), the
// read-model views assembled by the resolver, and the report shapes
// returned by indexing operations.
//
// The package contains plain data structures only. Key-path conventions
// for where these records live in the cache are owned by pkg/storage and
// pkg/indexer; this package deliberately knows nothing about keys.
//
// # Record lifecycle
//
// MembershipRecord and InfoRecord are rewritten wholesale by the
// full-population indexing jobs. DocPartition values are merged
// per-congress: a per-congress job replaces only its own partition and
// leaves entries for other congresses untouched. DocumentInfo and
// Committee are simple upserts.
//
// IndexReport carries the resumable chunk cursor (NextStart) that lets an
// external scheduler walk a large population across many short-lived
// invocations.
package types
