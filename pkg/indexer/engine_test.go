package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdata/lexcache/pkg/congress"
	"github.com/civicdata/lexcache/pkg/storage"
	"github.com/civicdata/lexcache/pkg/types"
	"github.com/civicdata/lexcache/pkg/upstream"
)

// fakeSource is an in-memory upstream.Source. Search results are keyed by
// "<congress>/<authorID>/<authorType>" or "<congress>/committee/<id>" and
// returned one page per call; the final page is replayed forever when
// replayFinalPage is set, mimicking the upstream pagination bug.
type fakeSource struct {
	directory  []upstream.DirectoryRow
	members    []upstream.MemberRow
	committees []upstream.CommitteeRow
	coAuthored map[string][]upstream.BillRow
	search     map[string][][]upstream.BillRow
	bills      map[string]*upstream.BillRow

	replayFinalPage bool
	failSearchFor   string
	coAuthoredErr   error
	directoryErr    error

	searchCalls int
}

func searchKey(q upstream.BillQuery) string {
	if q.CommitteeID != "" {
		return fmt.Sprintf("%d/committee/%s", q.Congress, q.CommitteeID)
	}
	return fmt.Sprintf("%d/%s/%s", q.Congress, q.AuthorID, q.AuthorType)
}

func (f *fakeSource) FetchMemberList(ctx context.Context, page, limit int, filter string) (*upstream.MemberListPage, error) {
	lo := page * limit
	hi := lo + limit
	if lo > len(f.members) {
		lo = len(f.members)
	}
	if hi > len(f.members) {
		hi = len(f.members)
	}
	return &upstream.MemberListPage{Count: len(f.members), Rows: f.members[lo:hi]}, nil
}

func (f *fakeSource) FetchMemberDirectory(ctx context.Context) ([]upstream.DirectoryRow, error) {
	if f.directoryErr != nil {
		return nil, f.directoryErr
	}
	return f.directory, nil
}

func (f *fakeSource) FetchCommitteeList(ctx context.Context, page, limit int) (*upstream.CommitteeListPage, error) {
	lo := page * limit
	hi := lo + limit
	if lo > len(f.committees) {
		lo = len(f.committees)
	}
	if hi > len(f.committees) {
		hi = len(f.committees)
	}
	return &upstream.CommitteeListPage{Count: len(f.committees), Rows: f.committees[lo:hi]}, nil
}

func (f *fakeSource) FetchBillSearch(ctx context.Context, q upstream.BillQuery) (*upstream.BillPage, error) {
	f.searchCalls++
	key := searchKey(q)
	if f.failSearchFor != "" && (q.AuthorID == f.failSearchFor || q.CommitteeID == f.failSearchFor) {
		return nil, errors.New("upstream search unavailable")
	}
	pages := f.search[key]
	if q.Page < len(pages) {
		return &upstream.BillPage{Rows: pages[q.Page]}, nil
	}
	if f.replayFinalPage && len(pages) > 0 {
		return &upstream.BillPage{Rows: pages[len(pages)-1]}, nil
	}
	return &upstream.BillPage{}, nil
}

func (f *fakeSource) FetchBillByKey(ctx context.Context, apiCongress int, docKey string) (*upstream.BillRow, error) {
	return f.bills[fmt.Sprintf("%d/%s", apiCongress, docKey)], nil
}

func (f *fakeSource) FetchCoAuthored(ctx context.Context, personID string) ([]upstream.BillRow, error) {
	if f.coAuthoredErr != nil {
		return nil, f.coAuthoredErr
	}
	return f.coAuthored[personID], nil
}

func newTestEngine(t *testing.T, src upstream.Source) (*Engine, *storage.BoltStore) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng := New(store, src, nil, Config{
		BatchSize: 2,
		PageLimit: 10,
		Retry:     Retrier{MaxRetries: 1, BaseDelay: time.Millisecond},
		TTL:       congress.TTLPolicy{Latest: 20, LatestTTL: time.Hour},
	})
	return eng, store
}

// TestIndexMembership tests directory indexing with the full-name pointer
func TestIndexMembership(t *testing.T) {
	src := &fakeSource{
		directory: []upstream.DirectoryRow{
			{ID: 1, PersonID: "A1", FullName: "Ada Alpha", Membership: []int{18, 103}},
			{ID: 2, PersonID: "A2", FullName: "Ben Beta", Nickname: "Ben", Membership: []int{103}},
			{ID: 3, FullName: "No Person Id"},
		},
	}
	eng, store := newTestEngine(t, src)

	rep, err := eng.IndexMembership(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.Indexed)
	assert.Equal(t, 1, rep.Skipped)
	assert.False(t, rep.Failed())

	var rec types.MembershipRecord
	found, err := store.Get(storage.PersonMembershipKey("A1"), &rec)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []int{18, 20}, rec.Congresses)

	var pointer storage.Key
	found, err = store.Get(storage.FullNameKey("Ada Alpha"), &pointer)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, storage.PersonMembershipKey("A1"), pointer)
}

// TestIndexMembershipIdempotent verifies a re-run rewrites in place
func TestIndexMembershipIdempotent(t *testing.T) {
	src := &fakeSource{
		directory: []upstream.DirectoryRow{
			{ID: 1, PersonID: "A1", FullName: "Ada Alpha", Membership: []int{103}},
		},
	}
	eng, store := newTestEngine(t, src)

	_, err := eng.IndexMembership(context.Background(), Options{})
	require.NoError(t, err)
	rep, err := eng.IndexMembership(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Indexed)

	count := 0
	err = store.Scan(storage.PeoplePrefix(), func(key storage.Key, value []byte) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestIndexMembershipChunked verifies the resumable cursor walks the
// whole directory across invocations
func TestIndexMembershipChunked(t *testing.T) {
	src := &fakeSource{
		directory: []upstream.DirectoryRow{
			{ID: 1, PersonID: "A1", FullName: "P One", Membership: []int{103}},
			{ID: 2, PersonID: "A2", FullName: "P Two", Membership: []int{103}},
			{ID: 3, PersonID: "A3", FullName: "P Three", Membership: []int{103}},
		},
	}
	eng, store := newTestEngine(t, src)

	rep, err := eng.IndexMembership(context.Background(), Options{ChunkSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Indexed)
	assert.Equal(t, 2, rep.NextStart)

	rep, err = eng.IndexMembership(context.Background(), Options{StartIndex: rep.NextStart, ChunkSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Indexed)
	assert.Equal(t, 3, rep.NextStart)

	for _, id := range []string{"A1", "A2", "A3"} {
		found, err := store.Get(storage.PersonMembershipKey(id), nil)
		require.NoError(t, err)
		assert.True(t, found, "person %s", id)
	}
}

// TestIndexMembershipStructuralFailure verifies a directory fetch failure
// aborts the operation
func TestIndexMembershipStructuralFailure(t *testing.T) {
	src := &fakeSource{directoryErr: errors.New("upstream down")}
	eng, _ := newTestEngine(t, src)

	_, err := eng.IndexMembership(context.Background(), Options{})
	assert.Error(t, err)
}

// TestIndexInformation tests the member list pass with co-authored lists
func TestIndexInformation(t *testing.T) {
	src := &fakeSource{
		members: []upstream.MemberRow{
			{ID: 1, PersonID: "A1", FullName: "Ada Alpha", NameCode: "ALPHA"},
			{ID: 2, PersonID: "A2", FullName: "Ben Beta"},
		},
		coAuthored: map[string][]upstream.BillRow{
			"A1": {{Congress: 103, DocKey: "HB7", Title: "Seventh"}},
		},
	}
	eng, store := newTestEngine(t, src)

	rep, err := eng.IndexInformation(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Indexed)

	var rec types.InfoRecord
	found, err := store.Get(storage.PersonInfoKey("A1"), &rec)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ALPHA", rec.NameCode)
	require.Len(t, rec.CoAuthored, 1)
	assert.Equal(t, types.DocRef{Congress: 20, DocKey: "HB7", Title: "Seventh"}, rec.CoAuthored[0])

	var pointer storage.Key
	found, err = store.Get(storage.NameCodeKey("ALPHA"), &pointer)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, storage.PersonInfoKey("A1"), pointer)

	// No name code, no pointer.
	found, err = store.Get(storage.NameCodeKey(""), nil)
	require.NoError(t, err)
	assert.False(t, found)
}

// TestIndexInformationToleratesCoAuthoredFailure verifies the record is
// still written when the co-authored endpoint fails
func TestIndexInformationToleratesCoAuthoredFailure(t *testing.T) {
	src := &fakeSource{
		members:       []upstream.MemberRow{{ID: 1, PersonID: "A1", FullName: "Ada Alpha"}},
		coAuthoredErr: errors.New("endpoint broken"),
	}
	eng, store := newTestEngine(t, src)

	rep, err := eng.IndexInformation(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Indexed)

	var rec types.InfoRecord
	found, err := store.Get(storage.PersonInfoKey("A1"), &rec)
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, rec.CoAuthored)
}

// TestIndexCommittees tests the committee pass including the
// skip-without-abort rule for codeless records
func TestIndexCommittees(t *testing.T) {
	committees := make([]upstream.CommitteeRow, 0, 10)
	for i := 0; i < 9; i++ {
		committees = append(committees, upstream.CommitteeRow{
			Code: fmt.Sprintf("%04d", 500+i),
			Name: fmt.Sprintf("Committee %d", i),
		})
	}
	committees = append(committees, upstream.CommitteeRow{Name: "No Code"})

	src := &fakeSource{committees: committees}
	eng, store := newTestEngine(t, src)

	rep, err := eng.IndexCommittees(context.Background(), Options{ChunkSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Total)
	assert.Equal(t, 9, rep.Indexed)
	assert.Equal(t, 1, rep.Skipped)
	assert.False(t, rep.Failed())

	var c types.Committee
	found, err := store.Get(storage.CommitteeKey("0500"), &c)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Committee 0", c.Name)
}

// TestFetchAllMembersPaginates verifies the list walk uses the reported
// page count
func TestFetchAllMembersPaginates(t *testing.T) {
	members := make([]upstream.MemberRow, 25)
	for i := range members {
		members[i] = upstream.MemberRow{ID: i, PersonID: fmt.Sprintf("A%d", i), FullName: fmt.Sprintf("Person %d", i)}
	}
	src := &fakeSource{members: members}
	eng, _ := newTestEngine(t, src)

	rows, err := eng.fetchAllMembers(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 25)
}

// TestChunkBounds tests the resumable cursor arithmetic
func TestChunkBounds(t *testing.T) {
	tests := []struct {
		name                     string
		total, start, size       int
		wantLo, wantHi, wantNext int
	}{
		{name: "first chunk", total: 10, start: 0, size: 4, wantLo: 0, wantHi: 4, wantNext: 4},
		{name: "middle chunk", total: 10, start: 4, size: 4, wantLo: 4, wantHi: 8, wantNext: 8},
		{name: "short final chunk", total: 10, start: 8, size: 4, wantLo: 8, wantHi: 10, wantNext: 10},
		{name: "cursor past end", total: 10, start: 12, size: 4, wantLo: 10, wantHi: 10, wantNext: 10},
		{name: "whole remainder", total: 10, start: 3, size: 0, wantLo: 3, wantHi: 10, wantNext: 10},
		{name: "negative cursor", total: 10, start: -1, size: 4, wantLo: 0, wantHi: 4, wantNext: 4},
		{name: "empty population", total: 0, start: 0, size: 4, wantLo: 0, wantHi: 0, wantNext: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, next := chunkBounds(tt.total, tt.start, tt.size)
			assert.Equal(t, tt.wantLo, lo)
			assert.Equal(t, tt.wantHi, hi)
			assert.Equal(t, tt.wantNext, next)
		})
	}
}
