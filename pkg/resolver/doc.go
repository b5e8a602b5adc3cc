// Package resolver answers read queries against the cache.
//
// The resolver is the read half of the system: it stitches person,
// document and committee views out of the primary records, partitioned
// document lists and inverted relationship entries that the indexer
// maintains. It never writes to the store.
//
// Two reads touch the upstream API. A per-congress document listing
// always fetches the bill page live (the bill catalog itself is not
// mirrored) and then decorates each row from the cache. A person whose
// membership record exists but whose document lists were never indexed
// gets a live fallback search scoped to that person's congresses; the
// fallback result is served but not cached, so a later indexing pass
// remains the only writer.
//
// Person lookups by full name and by name code go through two
// independent secondary indexes. Both are maintained because the two
// upstream feeds disagree on which identifier is primary; neither path
// falls back to the other.
package resolver
