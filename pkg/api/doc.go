// Package api exposes the HTTP surface of the service.
//
// Public read endpoints live under /api and are served entirely by the
// resolver. Indexing trigger endpoints live under /internal/index and
// require the shared secret in the X-Index-Secret header; an
// unauthorized trigger request is rejected before any indexing work
// starts. Triggers run synchronously and return the IndexReport of the
// chunk they processed, including the NextStart cursor for the caller's
// next invocation.
//
// /healthz and /metrics (Prometheus) are unauthenticated.
package api
