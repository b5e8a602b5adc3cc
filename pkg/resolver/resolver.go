package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/civicdata/lexcache/pkg/congress"
	"github.com/civicdata/lexcache/pkg/log"
	"github.com/civicdata/lexcache/pkg/metrics"
	"github.com/civicdata/lexcache/pkg/storage"
	"github.com/civicdata/lexcache/pkg/types"
	"github.com/civicdata/lexcache/pkg/upstream"
)

// ErrNotFound reports that an entity has no cached record at all. A
// partially populated entity is not an error; missing pieces read as
// empty.
var ErrNotFound = errors.New("not found")

// fallbackPageLimit is the page size for read-time live searches.
const fallbackPageLimit = 50

// Resolver answers read queries by stitching entity data together from
// cache entries. It performs no cache writes: the live fallback for
// partially indexed people is best-effort read-time enrichment only.
type Resolver struct {
	store  storage.Store
	source upstream.Source
	log    zerolog.Logger
}

// New creates a resolver. source is used only for the two live read
// paths (person fallback, per-congress bill listing) and is normally a
// memoizing upstream.MemoSource.
func New(store storage.Store, source upstream.Source) *Resolver {
	return &Resolver{
		store:  store,
		source: source,
		log:    log.WithComponent("resolver"),
	}
}

// Person assembles the read model for one person from the cache. When the
// membership record is present but the authored/co-authored lists are not
// (partial population), the missing lists are fetched live, scoped to the
// person's known congresses, and are not written back.
func (r *Resolver) Person(ctx context.Context, personID string) (*types.PersonView, error) {
	var membership types.MembershipRecord
	haveMembership, err := r.store.Get(storage.PersonMembershipKey(personID), &membership)
	if err != nil {
		return nil, err
	}
	var info types.InfoRecord
	haveInfo, err := r.store.Get(storage.PersonInfoKey(personID), &info)
	if err != nil {
		return nil, err
	}
	if !haveMembership && !haveInfo {
		metrics.CacheMissesTotal.WithLabelValues("person").Inc()
		return nil, ErrNotFound
	}
	metrics.CacheHitsTotal.WithLabelValues("person").Inc()

	view := &types.PersonView{
		PersonID:   personID,
		FullName:   membership.FullName,
		Nickname:   membership.Nickname,
		Congresses: membership.Congresses,
	}
	if view.FullName == "" {
		view.FullName = info.FullName
	}
	if view.Nickname == "" {
		view.Nickname = info.Nickname
	}
	view.NameCode = info.NameCode

	authored, haveAuthored, err := r.docList(storage.PersonAuthoredKey(personID))
	if err != nil {
		return nil, err
	}
	coAuthored, haveCoAuthored, err := r.docList(storage.PersonCoAuthoredKey(personID))
	if err != nil {
		return nil, err
	}
	if !haveCoAuthored && haveInfo && info.CoAuthored != nil {
		coAuthored, haveCoAuthored = info.CoAuthored, true
	}

	var committees []types.CommitteeRole
	if _, err := r.store.Get(storage.PersonCommitteesKey(personID), &committees); err != nil {
		return nil, err
	}
	view.Committees = committees

	// Partial population: enrich live, scoped to known congresses. The
	// result is intentionally not persisted.
	if haveMembership && (!haveAuthored || !haveCoAuthored) {
		metrics.LiveFallbacksTotal.Inc()
		r.log.Debug().Str("person_id", personID).Msg("document lists not cached, falling back to live search")
		for _, cong := range membership.Congresses {
			if !haveAuthored {
				refs, err := r.searchAll(ctx, cong, personID, types.RoleAuthors)
				if err != nil {
					r.log.Warn().Err(err).Str("person_id", personID).Int("congress", cong).Msg("live authored search failed")
				} else {
					authored = append(authored, refs...)
				}
			}
			if !haveCoAuthored {
				refs, err := r.searchAll(ctx, cong, personID, types.RoleCoAuthors)
				if err != nil {
					r.log.Warn().Err(err).Str("person_id", personID).Int("congress", cong).Msg("live co-authored search failed")
				} else {
					coAuthored = append(coAuthored, refs...)
				}
			}
		}
	}

	view.Authored = authored
	view.CoAuthored = coAuthored
	if view.Authored == nil {
		view.Authored = []types.DocRef{}
	}
	if view.CoAuthored == nil {
		view.CoAuthored = []types.DocRef{}
	}
	return view, nil
}

// People lists cached person summaries, paginated, ordered by person id.
func (r *Resolver) People(ctx context.Context, page, limit int) ([]types.PersonSummary, int, error) {
	var all []types.PersonSummary
	err := r.store.Scan(storage.PeoplePrefix(), func(key storage.Key, value []byte) error {
		// person/<id>/membership
		if len(key) != 3 || key[2] != "membership" {
			return nil
		}
		var rec types.MembershipRecord
		if err := decode(value, &rec); err != nil {
			return err
		}
		all = append(all, types.PersonSummary{
			PersonID: rec.PersonID,
			FullName: rec.FullName,
			Nickname: rec.Nickname,
		})
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	total := len(all)
	if limit <= 0 {
		limit = 50
	}
	if page < 0 {
		page = 0
	}
	lo := page * limit
	if lo > total {
		lo = total
	}
	hi := lo + limit
	if hi > total {
		hi = total
	}
	return all[lo:hi], total, nil
}

// ResolveByFullName follows the full-name secondary index to the
// membership record.
func (r *Resolver) ResolveByFullName(ctx context.Context, fullName string) (*types.MembershipRecord, error) {
	var primary storage.Key
	found, err := r.store.Get(storage.FullNameKey(fullName), &primary)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	var rec types.MembershipRecord
	found, err = r.store.Get(primary, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		// Pointer from an older indexing pass than the primary record;
		// tolerated across passes, reads as not-yet-indexed.
		return nil, ErrNotFound
	}
	return &rec, nil
}

// ResolveByNameCode follows the name-code secondary index to the
// information record. Both secondary indexes are maintained; neither
// path falls back to the other, because it is unresolved whether one is
// meant to supersede the other (see package doc).
func (r *Resolver) ResolveByNameCode(ctx context.Context, nameCode string) (*types.InfoRecord, error) {
	var primary storage.Key
	found, err := r.store.Get(storage.NameCodeKey(nameCode), &primary)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	var rec types.InfoRecord
	found, err = r.store.Get(primary, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// CongressDocuments lists the documents of one congress: the bill page
// itself comes live from upstream (the catalog is not mirrored), and
// author cross-references are resolved from the inverted relationship
// entries. Rows whose cross-references cannot be resolved to a cached
// person are dropped rather than surfaced as partial records.
func (r *Resolver) CongressDocuments(ctx context.Context, cong, page, limit int, filter string) ([]types.DocumentRow, error) {
	p, err := r.source.FetchBillSearch(ctx, upstream.BillQuery{
		Page:     page,
		Limit:    limit,
		Congress: congress.ToUpstream(cong),
		Filter:   filter,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch documents for congress %d: %w", cong, err)
	}

	rows := make([]types.DocumentRow, 0, len(p.Rows))
	for _, bill := range p.Rows {
		authors, ok, err := r.rolePeople(cong, bill.DocKey, types.RoleAuthors)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		coAuthors, ok, err := r.rolePeople(cong, bill.DocKey, types.RoleCoAuthors)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rows = append(rows, types.DocumentRow{
			Congress:     cong,
			DocKey:       bill.DocKey,
			Title:        bill.Title,
			FiledAt:      bill.DateFiled,
			Status:       bill.Status,
			Significance: bill.Significance,
			DownloadURL:  bill.DownloadURL,
			Authors:      authors,
			CoAuthors:    coAuthors,
		})
	}
	return rows, nil
}

// Document returns one document: the cached title triple when present,
// otherwise a live fetch, plus resolved author cross-references.
func (r *Resolver) Document(ctx context.Context, cong int, docKey string) (*types.DocumentRow, error) {
	row := types.DocumentRow{Congress: cong, DocKey: docKey}

	var info types.DocumentInfo
	cached, err := r.store.Get(storage.DocInfoKey(cong, docKey), &info)
	if err != nil {
		return nil, err
	}
	if cached {
		metrics.CacheHitsTotal.WithLabelValues("document").Inc()
		row.Title = info.Title
		row.FiledAt = info.FiledAt
	} else {
		metrics.CacheMissesTotal.WithLabelValues("document").Inc()
		bill, err := r.source.FetchBillByKey(ctx, congress.ToUpstream(cong), docKey)
		if err != nil {
			return nil, fmt.Errorf("fetch document %d/%s: %w", cong, docKey, err)
		}
		if bill == nil {
			return nil, ErrNotFound
		}
		row.Title = bill.Title
		row.FiledAt = bill.DateFiled
		row.Status = bill.Status
		row.Significance = bill.Significance
		row.DownloadURL = bill.DownloadURL
	}

	authors, _, err := r.rolePeople(cong, docKey, types.RoleAuthors)
	if err != nil {
		return nil, err
	}
	coAuthors, _, err := r.rolePeople(cong, docKey, types.RoleCoAuthors)
	if err != nil {
		return nil, err
	}
	row.Authors = authors
	row.CoAuthors = coAuthors
	return &row, nil
}

// Committees lists all cached committees in code order.
func (r *Resolver) Committees(ctx context.Context) ([]types.Committee, error) {
	var out []types.Committee
	err := r.store.Scan(storage.CommitteesPrefix(), func(key storage.Key, value []byte) error {
		var c types.Committee
		if err := decode(value, &c); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

// Committee returns one cached committee record.
func (r *Resolver) Committee(ctx context.Context, code string) (*types.Committee, error) {
	var c types.Committee
	found, err := r.store.Get(storage.CommitteeKey(code), &c)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &c, nil
}

// rolePeople scans the inverted relationship entries of one role on one
// document and resolves each person id to a cached summary. ok is false
// when an edge exists whose person has no cached record; callers drop
// such rows.
func (r *Resolver) rolePeople(cong int, docKey string, role types.Role) ([]types.PersonSummary, bool, error) {
	var ids []string
	err := r.store.Scan(storage.RelationRolePrefix(cong, docKey, string(role)), func(key storage.Key, value []byte) error {
		// rel/<congress>/<docKey>/<role>/<personID>
		ids = append(ids, key[len(key)-1])
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	people := make([]types.PersonSummary, 0, len(ids))
	for _, id := range ids {
		var rec types.MembershipRecord
		found, err := r.store.Get(storage.PersonMembershipKey(id), &rec)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return nil, false, nil
		}
		people = append(people, types.PersonSummary{
			PersonID: rec.PersonID,
			FullName: rec.FullName,
			Nickname: rec.Nickname,
		})
	}
	return people, true, nil
}

// docList reads a partitioned document list and flattens it in ascending
// congress order.
func (r *Resolver) docList(key storage.Key) ([]types.DocRef, bool, error) {
	partition := types.DocPartition{}
	found, err := r.store.Get(key, &partition)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	congresses := make([]int, 0, len(partition))
	for k := range partition {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		congresses = append(congresses, n)
	}
	sort.Ints(congresses)

	var refs []types.DocRef
	for _, n := range congresses {
		refs = append(refs, partition[strconv.Itoa(n)]...)
	}
	return refs, true, nil
}

// decode unmarshals a scanned entry value.
func decode(value []byte, out any) error {
	return json.Unmarshal(value, out)
}

// searchAll pages through a live author search with the same dedup stop
// condition the indexer uses, but without writing anything.
func (r *Resolver) searchAll(ctx context.Context, cong int, personID string, role types.Role) ([]types.DocRef, error) {
	const maxPages = 200
	seen := make(map[string]bool)
	var refs []types.DocRef
	for page := 0; page < maxPages; page++ {
		p, err := r.source.FetchBillSearch(ctx, upstream.BillQuery{
			Page:       page,
			Limit:      fallbackPageLimit,
			Congress:   congress.ToUpstream(cong),
			AuthorID:   personID,
			AuthorType: string(role),
		})
		if err != nil {
			return nil, err
		}
		if len(p.Rows) == 0 {
			return refs, nil
		}
		newKeys := 0
		for _, row := range p.Rows {
			if row.DocKey == "" || seen[row.DocKey] {
				continue
			}
			seen[row.DocKey] = true
			newKeys++
			refs = append(refs, types.DocRef{Congress: cong, DocKey: row.DocKey, Title: row.Title})
		}
		if newKeys == 0 {
			return refs, nil
		}
	}
	return refs, nil
}
