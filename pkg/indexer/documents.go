package indexer

import (
	"context"
	"fmt"

	"github.com/civicdata/lexcache/pkg/congress"
	"github.com/civicdata/lexcache/pkg/metrics"
	"github.com/civicdata/lexcache/pkg/report"
	"github.com/civicdata/lexcache/pkg/storage"
	"github.com/civicdata/lexcache/pkg/types"
	"github.com/civicdata/lexcache/pkg/upstream"
)

// maxSearchPages caps any single author/committee search. The largest
// observed result set is well under 40 pages; hitting the cap means the
// upstream pagination is broken.
const maxSearchPages = 200

// IndexPersonDocuments indexes the documents one person authored or
// co-authored in one congress. It pages through the author search,
// deduplicating by document key. The upstream search endpoint repeats its
// final page instead of returning empty, so a page that yields zero new
// keys terminates the loop. Every new document gets an inverted
// relationship entry, and the person-centric list is merged
// replace-by-partition for this congress only.
func (e *Engine) IndexPersonDocuments(ctx context.Context, cong int, personID string, role types.Role) (int, error) {
	if role != types.RoleAuthors && role != types.RoleCoAuthors {
		return 0, fmt.Errorf("invalid person document role %q", role)
	}

	refs, err := e.searchDocuments(ctx, cong, upstream.BillQuery{
		Congress:   congress.ToUpstream(cong),
		AuthorID:   personID,
		AuthorType: string(role),
	}, string(role), personID)
	if err != nil {
		return 0, err
	}

	listKey := storage.PersonAuthoredKey(personID)
	if role == types.RoleCoAuthors {
		listKey = storage.PersonCoAuthoredKey(personID)
	}
	if err := e.mergePartition(listKey, cong, refs); err != nil {
		return 0, err
	}
	return len(refs), nil
}

// IndexCommitteeDocuments indexes the documents referred to one committee
// in one congress, with the same pagination, dedup and inverted-key
// pattern as person documents.
func (e *Engine) IndexCommitteeDocuments(ctx context.Context, cong int, committeeID string) (int, error) {
	refs, err := e.searchDocuments(ctx, cong, upstream.BillQuery{
		Congress:    congress.ToUpstream(cong),
		CommitteeID: committeeID,
	}, string(types.RoleCommittees), committeeID)
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}

// searchDocuments runs the shared paginate/dedup/invert loop. Each page's
// relationship entries are committed as one batch.
func (e *Engine) searchDocuments(ctx context.Context, cong int, q upstream.BillQuery, role, entityID string) ([]types.DocRef, error) {
	q.Limit = e.cfg.PageLimit
	ttl := e.cfg.TTL.RelationTTL(cong)

	seen := make(map[string]bool)
	var refs []types.DocRef

	for page := 0; ; page++ {
		if page >= maxSearchPages {
			return nil, fmt.Errorf("document search for %s/%s in congress %d exceeded %d pages", role, entityID, cong, maxSearchPages)
		}
		q.Page = page
		p, err := e.source.FetchBillSearch(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("search documents page %d: %w", page, err)
		}
		if len(p.Rows) == 0 {
			break
		}

		batch := e.store.Batch()
		newKeys := 0
		for _, row := range p.Rows {
			if row.DocKey == "" || seen[row.DocKey] {
				continue
			}
			seen[row.DocKey] = true
			newKeys++
			batch.Set(storage.RelationKey(cong, row.DocKey, role, entityID), true, ttl)
			refs = append(refs, types.DocRef{Congress: cong, DocKey: row.DocKey, Title: row.Title})
		}
		// Zero new keys means the upstream is replaying an earlier page.
		if newKeys == 0 {
			break
		}
		if err := e.commit(batch); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

// mergePartition replaces the one congress slice of a partitioned
// person-centric document list, leaving other congresses untouched.
func (e *Engine) mergePartition(listKey storage.Key, cong int, refs []types.DocRef) error {
	partition := types.DocPartition{}
	if _, err := e.store.Get(listKey, &partition); err != nil {
		return fmt.Errorf("read document list %s: %w", listKey, err)
	}
	partition[partitionKey(cong)] = refs
	if err := e.store.Set(listKey, partition, 0); err != nil {
		return fmt.Errorf("write document list %s: %w", listKey, err)
	}
	return nil
}

// IndexDocumentInfo fetches one document and caches its title triple
// only. Returns false when the upstream knows no such document.
func (e *Engine) IndexDocumentInfo(ctx context.Context, cong int, docKey string) (bool, error) {
	bill, err := e.source.FetchBillByKey(ctx, congress.ToUpstream(cong), docKey)
	if err != nil {
		return false, fmt.Errorf("fetch document %d/%s: %w", cong, docKey, err)
	}
	if bill == nil {
		return false, nil
	}
	err = e.store.Set(storage.DocInfoKey(cong, docKey), types.DocumentInfo{
		Congress:   cong,
		DocKey:     docKey,
		Title:      bill.Title,
		ShortTitle: bill.ShortTitle,
		FiledAt:    bill.DateFiled,
	}, 0)
	if err != nil {
		return false, fmt.Errorf("write document info %d/%s: %w", cong, docKey, err)
	}
	return true, nil
}

// IndexCongressDocuments is the bulk per-person job for one congress: for
// every member of that congress (or one member, when opts.PersonID is
// set), it indexes authored and co-authored documents. Each person is one
// retryable work unit; a unit that exhausts its retries lands in the
// failure list and is reported after the chunk completes, without
// aborting the remaining units.
func (e *Engine) IndexCongressDocuments(ctx context.Context, cong int, opts Options) (*types.IndexReport, error) {
	rep := e.newReport("congress-documents")

	rows, err := e.source.FetchMemberDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch member directory: %w", err)
	}

	var population []upstream.DirectoryRow
	for _, row := range rows {
		if row.PersonID == "" {
			continue
		}
		if opts.PersonID != "" {
			if row.PersonID == opts.PersonID {
				population = append(population, row)
			}
			continue
		}
		for _, id := range row.Membership {
			if congress.ToCanonical(id) == cong {
				population = append(population, row)
				break
			}
		}
	}
	rep.Total = len(population)

	var chunk []upstream.DirectoryRow
	if opts.PersonID != "" {
		chunk = population
		rep.NextStart = rep.Total
	} else {
		size := opts.ChunkSize
		if size == 0 {
			size = e.cfg.ChunkSize
		}
		lo, hi, next := chunkBounds(len(population), opts.StartIndex, size)
		chunk = population[lo:hi]
		rep.NextStart = next
	}

	for _, row := range chunk {
		personID := row.PersonID
		err := e.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			if _, err := e.IndexPersonDocuments(ctx, cong, personID, types.RoleAuthors); err != nil {
				return err
			}
			_, err := e.IndexPersonDocuments(ctx, cong, personID, types.RoleCoAuthors)
			return err
		})
		if err != nil {
			e.log.Error().Err(err).Str("person_id", personID).Int("congress", cong).Msg("person document unit failed")
			metrics.UnitsFailedTotal.WithLabelValues(rep.Operation).Inc()
			rep.Failures = append(rep.Failures, types.UnitFailure{UnitID: personID, Error: err.Error()})
			continue
		}
		rep.Indexed++
		metrics.UnitsIndexedTotal.WithLabelValues(rep.Operation).Inc()
	}

	e.reportFailures(ctx, rep, cong, "person")
	return e.finishReport(rep), nil
}

// IndexCommitteeRelations is the bulk per-committee job for one congress:
// every committee with a usable code is one retryable work unit indexing
// its document relationships.
func (e *Engine) IndexCommitteeRelations(ctx context.Context, cong int, opts Options) (*types.IndexReport, error) {
	rep := e.newReport("committee-documents")

	rows, err := e.fetchAllCommittees(ctx)
	if err != nil {
		return nil, err
	}

	var population []upstream.CommitteeRow
	for _, row := range rows {
		if row.Code == "" {
			e.log.Warn().Str("name", row.Name).Msg("committee without code, skipping")
			metrics.UnitsSkippedTotal.WithLabelValues(rep.Operation).Inc()
			rep.Skipped++
			continue
		}
		population = append(population, row)
	}
	rep.Total = len(population)

	size := opts.ChunkSize
	if size == 0 {
		size = e.cfg.ChunkSize
	}
	lo, hi, next := chunkBounds(len(population), opts.StartIndex, size)
	rep.NextStart = next

	for _, row := range population[lo:hi] {
		code := row.Code
		err := e.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			_, err := e.IndexCommitteeDocuments(ctx, cong, code)
			return err
		})
		if err != nil {
			e.log.Error().Err(err).Str("committee", code).Int("congress", cong).Msg("committee document unit failed")
			metrics.UnitsFailedTotal.WithLabelValues(rep.Operation).Inc()
			rep.Failures = append(rep.Failures, types.UnitFailure{UnitID: code, Error: err.Error()})
			continue
		}
		rep.Indexed++
		metrics.UnitsIndexedTotal.WithLabelValues(rep.Operation).Inc()
	}

	e.reportFailures(ctx, rep, cong, "committee")
	return e.finishReport(rep), nil
}

// reportFailures files one incident per exhausted unit, after the chunk
// completes. Reporter errors are logged and swallowed; they never fail
// the job.
func (e *Engine) reportFailures(ctx context.Context, rep *types.IndexReport, cong int, kind string) {
	for _, f := range rep.Failures {
		inc := report.Incident{
			Title: fmt.Sprintf("Indexing failure: %s %s (congress %d)", kind, f.UnitID, cong),
			Body: fmt.Sprintf("Operation %s (job %s) exhausted retries for %s %s in congress %d.\n\nError:\n%s",
				rep.Operation, rep.JobID, kind, f.UnitID, cong, f.Error),
			Label: fmt.Sprintf("%s-%s-congress-%d", kind, f.UnitID, cong),
		}
		if err := e.reporter.Report(ctx, inc); err != nil {
			e.log.Warn().Err(err).Str("label", inc.Label).Msg("failed to report incident")
		}
	}
}
