package congress

import "time"

// The upstream API misnumbers one session: it serves the 20th congress
// under id 103. Everything else passes through unchanged. Both maps must
// stay exact inverses of each other.
var (
	toCanonical = map[int]int{103: 20}
	toUpstream  = map[int]int{20: 103}
)

// ToCanonical maps an upstream API id to the canonical congress number.
func ToCanonical(apiID int) int {
	if n, ok := toCanonical[apiID]; ok {
		return n
	}
	return apiID
}

// ToUpstream maps a canonical congress number to the id the upstream API
// expects.
func ToUpstream(congress int) int {
	if n, ok := toUpstream[congress]; ok {
		return n
	}
	return congress
}

// Normalize maps a list of upstream ids to canonical numbers in place
// order.
func Normalize(apiIDs []int) []int {
	if apiIDs == nil {
		return nil
	}
	out := make([]int, len(apiIDs))
	for i, id := range apiIDs {
		out[i] = ToCanonical(id)
	}
	return out
}

// TTLPolicy is the congress-dependent expiry for inverted relationship
// entries. Entries for the latest congress are refreshed by periodic
// re-crawls and expire; older congresses never change upstream and their
// entries live forever.
type TTLPolicy struct {
	// Latest is the canonical number of the congress currently in session.
	Latest int

	// LatestTTL is the expiry applied to relationship entries of the
	// latest congress.
	LatestTTL time.Duration
}

// RelationTTL returns the TTL for relationship entries of the given
// congress; zero means no expiry.
func (p TTLPolicy) RelationTTL(congress int) time.Duration {
	if congress == p.Latest {
		return p.LatestTTL
	}
	return 0
}
