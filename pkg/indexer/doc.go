// Package indexer populates the cache from the upstream data source.
//
// The Engine exposes one idempotent bulk operation per entity class:
//
//   - IndexMembership: member directory -> membership records + full-name
//     pointers.
//   - IndexInformation: paginated member list -> name-information records
//     + name-code pointers, with a tolerated per-member co-authorship
//     fetch.
//   - IndexCommittees: committee list -> committee records, skipping
//     records that cannot be keyed.
//   - IndexPersonDocuments / IndexCommitteeDocuments: per-congress author
//     or committee search -> inverted relationship entries, plus a
//     replace-by-partition merge of the person-centric document list.
//   - IndexDocumentInfo: one bill -> its cached title triple.
//   - IndexCongressDocuments / IndexCommitteeRelations: the chunked bulk
//     forms of the two above, one retryable work unit per person or
//     committee.
//
// # Batching and atomicity
//
// Full-population jobs group writes into fixed-size batches; each batch is
// one atomic commit, and a primary record is always on the same batch as
// its secondary-index pointers. A crash mid-job loses at most one batch,
// and a re-run rewrites everything in place.
//
// # Chunking
//
// The population jobs take Options{PersonID, StartIndex, ChunkSize}. The
// returned IndexReport carries Total and NextStart, so an external
// scheduler can walk the full population across many short invocations
// without re-deriving boundaries. Stopping between chunks is the
// cancellation mechanism; the engine itself runs each invocation to
// completion.
//
// # Failure semantics
//
// Fetching a population list is structural: it aborts the operation, with
// whatever batches already committed left in place. Per-unit upstream
// failures inside a chunk are retried with exponential backoff (Retrier),
// then collected into the report's failure list and filed with the
// configured report.Reporter, never thrown past the chunk boundary.
package indexer
