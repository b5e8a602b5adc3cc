// Package upstream talks to the third-party legislative-records web API.
//
// Client implements Source over HTTP with a proactive token-bucket rate
// limit; every fetch is a context-aware suspension point. Raw record
// shapes mirror the upstream payloads, inconsistencies included: congress
// numbers in these records are upstream API ids, and callers are expected
// to normalize them with pkg/congress before anything touches the cache.
//
// MemoSource adds short-lived in-process memoization (sturdyc) around the
// fetches that the read resolver performs live. It is a read-path
// convenience only: indexing jobs must use the plain Client so that a
// re-crawl always observes fresh upstream state.
package upstream
