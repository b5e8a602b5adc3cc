package indexer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdata/lexcache/pkg/congress"
	"github.com/civicdata/lexcache/pkg/report"
	"github.com/civicdata/lexcache/pkg/storage"
	"github.com/civicdata/lexcache/pkg/types"
	"github.com/civicdata/lexcache/pkg/upstream"
)

// capturingReporter records incidents instead of filing them.
type capturingReporter struct {
	incidents []report.Incident
}

func (r *capturingReporter) Report(ctx context.Context, inc report.Incident) error {
	r.incidents = append(r.incidents, inc)
	return nil
}

func bills(keys ...string) []upstream.BillRow {
	rows := make([]upstream.BillRow, len(keys))
	for i, k := range keys {
		rows[i] = upstream.BillRow{DocKey: k, Title: "Title " + k}
	}
	return rows
}

// TestIndexPersonDocuments tests the paginate/dedup/invert loop for one
// person
func TestIndexPersonDocuments(t *testing.T) {
	src := &fakeSource{
		search: map[string][][]upstream.BillRow{
			"103/A1/authors": {bills("HB1", "HB2"), bills("HB3")},
		},
	}
	eng, store := newTestEngine(t, src)

	n, err := eng.IndexPersonDocuments(context.Background(), 20, "A1", types.RoleAuthors)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var marker bool
	for _, docKey := range []string{"HB1", "HB2", "HB3"} {
		found, err := store.Get(storage.RelationKey(20, docKey, "authors", "A1"), &marker)
		require.NoError(t, err)
		assert.True(t, found, "edge for %s", docKey)
		assert.True(t, marker)
	}

	var partition types.DocPartition
	found, err := store.Get(storage.PersonAuthoredKey("A1"), &partition)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, partition["20"], 3)
}

// TestIndexPersonDocumentsInvalidRole rejects the committee role on the
// person path
func TestIndexPersonDocumentsInvalidRole(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeSource{})
	_, err := eng.IndexPersonDocuments(context.Background(), 20, "A1", types.RoleCommittees)
	assert.Error(t, err)
}

// TestSearchDedupOnReplayedFinalPage verifies the loop terminates and
// counts distinct documents when the upstream replays its final page
// forever instead of returning empty.
func TestSearchDedupOnReplayedFinalPage(t *testing.T) {
	// 53 distinct documents across 6 pages of 10; the last page is short
	// and the fake replays it on every subsequent request.
	var pages [][]upstream.BillRow
	doc := 0
	for p := 0; p < 6; p++ {
		var page []upstream.BillRow
		for i := 0; i < 10 && doc < 53; i++ {
			page = append(page, upstream.BillRow{DocKey: fmt.Sprintf("HB%d", doc), Title: "T"})
			doc++
		}
		pages = append(pages, page)
	}
	src := &fakeSource{
		search:          map[string][][]upstream.BillRow{"103/committee/0543": pages},
		replayFinalPage: true,
	}
	eng, store := newTestEngine(t, src)

	n, err := eng.IndexCommitteeDocuments(context.Background(), 20, "0543")
	require.NoError(t, err)
	assert.Equal(t, 53, n)
	// Six real pages plus the one replayed page that yields nothing new.
	assert.Equal(t, 7, src.searchCalls)

	count := 0
	err = store.Scan(storage.RelationCongressPrefix(20), func(key storage.Key, value []byte) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 53, count)
}

// TestRelationTTLByCongress verifies latest-congress edges expire and
// older ones do not
func TestRelationTTLByCongress(t *testing.T) {
	src := &fakeSource{
		search: map[string][][]upstream.BillRow{
			"103/A1/authors": {bills("HB1")},
			"19/A1/authors":  {bills("HB2")},
		},
	}
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng := New(store, src, nil, Config{
		TTL: congress.TTLPolicy{Latest: 20, LatestTTL: time.Second},
	})

	_, err = eng.IndexPersonDocuments(context.Background(), 20, "A1", types.RoleAuthors)
	require.NoError(t, err)
	_, err = eng.IndexPersonDocuments(context.Background(), 19, "A1", types.RoleAuthors)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	found, err := store.Get(storage.RelationKey(20, "HB1", "authors", "A1"), nil)
	require.NoError(t, err)
	assert.False(t, found, "latest-congress edge should expire")

	found, err = store.Get(storage.RelationKey(19, "HB2", "authors", "A1"), nil)
	require.NoError(t, err)
	assert.True(t, found, "older-congress edge should not expire")
}

// TestMergePartitionReplacesOneCongress verifies re-indexing one congress
// leaves the other partitions untouched
func TestMergePartitionReplacesOneCongress(t *testing.T) {
	src := &fakeSource{
		search: map[string][][]upstream.BillRow{
			"19/A1/authors":  {bills("HB1", "HB2")},
			"103/A1/authors": {bills("HB9")},
		},
	}
	eng, store := newTestEngine(t, src)

	_, err := eng.IndexPersonDocuments(context.Background(), 19, "A1", types.RoleAuthors)
	require.NoError(t, err)
	_, err = eng.IndexPersonDocuments(context.Background(), 20, "A1", types.RoleAuthors)
	require.NoError(t, err)

	// Upstream shrinks congress 20's result; a re-run must replace that
	// partition and keep congress 19 intact.
	src.search["103/A1/authors"] = [][]upstream.BillRow{}
	_, err = eng.IndexPersonDocuments(context.Background(), 20, "A1", types.RoleAuthors)
	require.NoError(t, err)

	var partition types.DocPartition
	found, err := store.Get(storage.PersonAuthoredKey("A1"), &partition)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, partition["19"], 2)
	assert.Empty(t, partition["20"])
}

// TestIndexDocumentInfo tests the single-document pass
func TestIndexDocumentInfo(t *testing.T) {
	src := &fakeSource{
		bills: map[string]*upstream.BillRow{
			"103/HB5": {DocKey: "HB5", Title: "Fifth Act", ShortTitle: "Fifth", DateFiled: "2024-07-01"},
		},
	}
	eng, store := newTestEngine(t, src)

	found, err := eng.IndexDocumentInfo(context.Background(), 20, "HB5")
	require.NoError(t, err)
	assert.True(t, found)

	var info types.DocumentInfo
	ok, err := store.Get(storage.DocInfoKey(20, "HB5"), &info)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Fifth Act", info.Title)
	assert.Equal(t, "Fifth", info.ShortTitle)
	assert.Equal(t, "2024-07-01", info.FiledAt)

	found, err = eng.IndexDocumentInfo(context.Background(), 20, "HB404")
	require.NoError(t, err)
	assert.False(t, found)
}

// TestIndexCongressDocumentsPartialFailure verifies one failing person
// does not abort the rest of the chunk and the failure is reported once
func TestIndexCongressDocumentsPartialFailure(t *testing.T) {
	var directory []upstream.DirectoryRow
	search := map[string][][]upstream.BillRow{}
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("A%d", i)
		directory = append(directory, upstream.DirectoryRow{
			ID: i, PersonID: id, FullName: "Person " + id, Membership: []int{103},
		})
		search[fmt.Sprintf("103/%s/authors", id)] = [][]upstream.BillRow{bills("HB" + id)}
		search[fmt.Sprintf("103/%s/coAuthors", id)] = [][]upstream.BillRow{}
	}
	src := &fakeSource{
		directory:     directory,
		search:        search,
		failSearchFor: "A3",
	}

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rep := &capturingReporter{}
	eng := New(store, src, rep, Config{
		Retry: Retrier{MaxRetries: 1, BaseDelay: time.Millisecond},
		TTL:   congress.TTLPolicy{Latest: 20, LatestTTL: time.Hour},
	})

	out, err := eng.IndexCongressDocuments(context.Background(), 20, Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, out.Total)
	assert.Equal(t, 4, out.Indexed)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "A3", out.Failures[0].UnitID)
	assert.True(t, out.Failed())

	// The four healthy units landed.
	for _, id := range []string{"A1", "A2", "A4", "A5"} {
		found, err := store.Get(storage.RelationKey(20, "HB"+id, "authors", id), nil)
		require.NoError(t, err)
		assert.True(t, found, "edge for %s", id)
	}

	require.Len(t, rep.incidents, 1)
	assert.Equal(t, "person-A3-congress-20", rep.incidents[0].Label)
}

// TestIndexCongressDocumentsSinglePerson verifies PersonID scoping
func TestIndexCongressDocumentsSinglePerson(t *testing.T) {
	src := &fakeSource{
		directory: []upstream.DirectoryRow{
			{ID: 1, PersonID: "A1", FullName: "P One", Membership: []int{103}},
			{ID: 2, PersonID: "A2", FullName: "P Two", Membership: []int{103}},
		},
		search: map[string][][]upstream.BillRow{
			"103/A1/authors": {bills("HB1")},
		},
	}
	eng, store := newTestEngine(t, src)

	out, err := eng.IndexCongressDocuments(context.Background(), 20, Options{PersonID: "A1"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, 1, out.Indexed)

	found, err := store.Get(storage.RelationKey(20, "HB1", "authors", "A1"), nil)
	require.NoError(t, err)
	assert.True(t, found)
}

// TestIndexCommitteeRelations tests the bulk committee job with a
// codeless record in the population
func TestIndexCommitteeRelations(t *testing.T) {
	src := &fakeSource{
		committees: []upstream.CommitteeRow{
			{Code: "0543", Name: "Ways"},
			{Name: "No Code"},
		},
		search: map[string][][]upstream.BillRow{
			"103/committee/0543": {bills("HB1", "HB2")},
		},
	}
	eng, store := newTestEngine(t, src)

	out, err := eng.IndexCommitteeRelations(context.Background(), 20, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, 1, out.Indexed)
	assert.Equal(t, 1, out.Skipped)

	found, err := store.Get(storage.RelationKey(20, "HB2", "committees", "0543"), nil)
	require.NoError(t, err)
	assert.True(t, found)
}

// TestRetrierSucceedsAfterFailures tests bounded backoff retry
func TestRetrierSucceedsAfterFailures(t *testing.T) {
	r := Retrier{MaxRetries: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient %d", calls)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

// TestRetrierExhaustion verifies the last error surfaces after all
// attempts
func TestRetrierExhaustion(t *testing.T) {
	r := Retrier{MaxRetries: 2, BaseDelay: time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("attempt %d", calls)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "attempt 3")
}

// TestRetrierContextCancel verifies cancellation wins over the backoff
// wait
func TestRetrierContextCancel(t *testing.T) {
	r := Retrier{MaxRetries: 5, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := r.Do(ctx, func(ctx context.Context) error {
		return fmt.Errorf("always failing")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestRetrierZeroValueNeverRetries tests the zero-value policy
func TestRetrierZeroValueNeverRetries(t *testing.T) {
	var r Retrier

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
