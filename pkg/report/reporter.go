package report

import "context"

// Incident describes one permanently failed work unit. Label must be
// unique per unit identity; it is the de-duplication key.
type Incident struct {
	Title string
	Body  string
	Label string
}

// Reporter records incidents for human follow-up. Implementations must be
// idempotent per label: repeated reports of the same unit append to one
// incident instead of creating new ones. Reporting failures must never
// fail the indexing job that raised them; callers log and continue.
type Reporter interface {
	Report(ctx context.Context, inc Incident) error
}

// Noop discards incidents. Used when no tracker is configured and in
// tests.
type Noop struct{}

func (Noop) Report(ctx context.Context, inc Incident) error {
	return nil
}
