package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/viccon/sturdyc"
)

// MemoConfig sizes the in-process memoization of live bill lookups.
type MemoConfig struct {
	Capacity int
	Shards   int
	TTL      time.Duration
}

// DefaultMemoConfig returns sizing suitable for the read path: a few
// minutes of reuse so concurrent page renders share one upstream call.
func DefaultMemoConfig() MemoConfig {
	return MemoConfig{
		Capacity: 2048,
		Shards:   64,
		TTL:      5 * time.Minute,
	}
}

// MemoSource wraps a Source with short-lived memoization of the two
// fetches the read resolver performs live (bill search pages and single
// bills). sturdyc also deduplicates concurrent fetches for the same key,
// so a burst of identical reads costs one upstream request. Indexing
// operations use the inner Source directly; only read paths should be
// handed a MemoSource.
type MemoSource struct {
	Source
	pages *sturdyc.Client[*BillPage]
	bills *sturdyc.Client[*BillRow]
}

// NewMemoSource wraps src with memoized bill fetches.
func NewMemoSource(src Source, cfg MemoConfig) *MemoSource {
	const evictionPercentage = 10
	return &MemoSource{
		Source: src,
		pages:  sturdyc.New[*BillPage](cfg.Capacity, cfg.Shards, cfg.TTL, evictionPercentage),
		bills:  sturdyc.New[*BillRow](cfg.Capacity, cfg.Shards, cfg.TTL, evictionPercentage),
	}
}

func (m *MemoSource) FetchBillSearch(ctx context.Context, q BillQuery) (*BillPage, error) {
	key := fmt.Sprintf("search/%d/%s/%s/%s/%s/%d/%d",
		q.Congress, q.AuthorID, q.AuthorType, q.CommitteeID, q.Filter, q.Page, q.Limit)
	return m.pages.GetOrFetch(ctx, key, func(ctx context.Context) (*BillPage, error) {
		return m.Source.FetchBillSearch(ctx, q)
	})
}

func (m *MemoSource) FetchBillByKey(ctx context.Context, apiCongress int, docKey string) (*BillRow, error) {
	key := fmt.Sprintf("bill/%d/%s", apiCongress, docKey)
	return m.bills.GetOrFetch(ctx, key, func(ctx context.Context) (*BillRow, error) {
		return m.Source.FetchBillByKey(ctx, apiCongress, docKey)
	})
}
