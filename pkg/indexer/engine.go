package indexer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/civicdata/lexcache/pkg/congress"
	"github.com/civicdata/lexcache/pkg/log"
	"github.com/civicdata/lexcache/pkg/metrics"
	"github.com/civicdata/lexcache/pkg/report"
	"github.com/civicdata/lexcache/pkg/storage"
	"github.com/civicdata/lexcache/pkg/types"
	"github.com/civicdata/lexcache/pkg/upstream"
)

// Config holds the tunables of the indexing engine. Zero values fall back
// to defaults in New.
type Config struct {
	// BatchSize is the number of work units committed per atomic batch.
	BatchSize int

	// PageLimit is the page size requested from paginated upstream
	// endpoints.
	PageLimit int

	// ChunkSize is the default population slice per invocation when the
	// caller passes no explicit chunk size.
	ChunkSize int

	// Retry is the per-unit retry policy for chunked jobs.
	Retry Retrier

	// TTL is the congress-dependent expiry for relationship entries.
	TTL congress.TTLPolicy
}

const (
	defaultBatchSize = 100
	defaultPageLimit = 50
	defaultChunkSize = 50
)

// Engine populates the cache from the upstream data source. All
// operations are idempotent: re-running one against unchanged upstream
// data rewrites the same entries in place.
type Engine struct {
	store    storage.Store
	source   upstream.Source
	reporter report.Reporter
	cfg      Config
	log      zerolog.Logger
}

// New creates an indexing engine. The store handle is owned by the caller
// and must stay open for the engine's lifetime.
func New(store storage.Store, source upstream.Source, reporter report.Reporter, cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaultPageLimit
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Retry.BaseDelay == 0 && cfg.Retry.MaxRetries == 0 {
		cfg.Retry = DefaultRetrier()
	}
	if reporter == nil {
		reporter = report.Noop{}
	}
	return &Engine{
		store:    store,
		source:   source,
		reporter: reporter,
		cfg:      cfg,
		log:      log.WithComponent("indexer"),
	}
}

// Options selects the slice of a full-population job. If PersonID is set,
// only that unit is processed (targeted retry); otherwise the population
// is sliced [StartIndex, StartIndex+ChunkSize).
type Options struct {
	PersonID   string
	StartIndex int
	ChunkSize  int
}

func (e *Engine) newReport(operation string) *types.IndexReport {
	return &types.IndexReport{
		JobID:     uuid.New().String(),
		Operation: operation,
		StartedAt: time.Now(),
	}
}

func (e *Engine) finishReport(r *types.IndexReport) *types.IndexReport {
	r.FinishedAt = time.Now()
	metrics.IndexJobDuration.WithLabelValues(r.Operation).Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	e.log.Info().
		Str("job_id", r.JobID).
		Str("operation", r.Operation).
		Int("total", r.Total).
		Int("indexed", r.Indexed).
		Int("skipped", r.Skipped).
		Int("failed", len(r.Failures)).
		Int("next_start", r.NextStart).
		Msg("indexing job finished")
	return r
}

func (e *Engine) commit(batch storage.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	metrics.BatchesCommittedTotal.Inc()
	return nil
}

// IndexMembership walks the member directory and writes, per member, the
// primary membership record together with its full-name pointer. Writes
// are grouped into batches of cfg.BatchSize members, each committed as one
// atomic transaction, so a mid-job crash loses at most one batch.
func (e *Engine) IndexMembership(ctx context.Context, opts Options) (*types.IndexReport, error) {
	rep := e.newReport("membership")

	rows, err := e.source.FetchMemberDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch member directory: %w", err)
	}
	rep.Total = len(rows)

	var chunk []upstream.DirectoryRow
	if opts.PersonID != "" {
		for _, row := range rows {
			if row.PersonID == opts.PersonID {
				chunk = append(chunk, row)
			}
		}
		rep.NextStart = rep.Total
	} else {
		size := opts.ChunkSize
		if size == 0 {
			size = e.cfg.ChunkSize
		}
		lo, hi, next := chunkBounds(len(rows), opts.StartIndex, size)
		chunk = rows[lo:hi]
		rep.NextStart = next
	}

	batch := e.store.Batch()
	inBatch := 0
	for _, row := range chunk {
		if row.PersonID == "" {
			e.log.Warn().Int("id", row.ID).Str("full_name", row.FullName).Msg("directory row without person id, skipping")
			metrics.UnitsSkippedTotal.WithLabelValues(rep.Operation).Inc()
			rep.Skipped++
			continue
		}
		rec := types.MembershipRecord{
			PersonID:   row.PersonID,
			FullName:   row.FullName,
			Nickname:   row.Nickname,
			Congresses: congress.Normalize(row.Membership),
		}
		primary := storage.PersonMembershipKey(row.PersonID)
		batch.Set(primary, rec, 0)
		if row.FullName != "" {
			batch.Set(storage.FullNameKey(row.FullName), primary, 0)
		}
		rep.Indexed++
		metrics.UnitsIndexedTotal.WithLabelValues(rep.Operation).Inc()

		inBatch++
		if inBatch >= e.cfg.BatchSize {
			if err := e.commit(batch); err != nil {
				return nil, err
			}
			batch = e.store.Batch()
			inBatch = 0
		}
	}
	if err := e.commit(batch); err != nil {
		return nil, err
	}

	return e.finishReport(rep), nil
}

// IndexInformation walks the paginated member list and writes, per
// member, the name-information record and, when a name code is present,
// its name-code pointer. The member's co-authored documents are fetched
// from a separate endpoint; that fetch is allowed to fail (logged, field
// left absent) without aborting the batch.
func (e *Engine) IndexInformation(ctx context.Context, opts Options) (*types.IndexReport, error) {
	rep := e.newReport("information")

	rows, err := e.fetchAllMembers(ctx)
	if err != nil {
		return nil, err
	}
	rep.Total = len(rows)

	var chunk []upstream.MemberRow
	if opts.PersonID != "" {
		for _, row := range rows {
			if row.PersonID == opts.PersonID {
				chunk = append(chunk, row)
			}
		}
		rep.NextStart = rep.Total
	} else {
		size := opts.ChunkSize
		if size == 0 {
			size = e.cfg.ChunkSize
		}
		lo, hi, next := chunkBounds(len(rows), opts.StartIndex, size)
		chunk = rows[lo:hi]
		rep.NextStart = next
	}

	batch := e.store.Batch()
	inBatch := 0
	for _, row := range chunk {
		if row.PersonID == "" {
			e.log.Warn().Int("id", row.ID).Str("full_name", row.FullName).Msg("member row without person id, skipping")
			metrics.UnitsSkippedTotal.WithLabelValues(rep.Operation).Inc()
			rep.Skipped++
			continue
		}
		rec := types.InfoRecord{
			PersonID:   row.PersonID,
			NameCode:   row.NameCode,
			FullName:   row.FullName,
			FirstName:  row.FirstName,
			MiddleName: row.MiddleName,
			LastName:   row.LastName,
			Nickname:   row.Nickname,
		}

		coAuthored, err := e.source.FetchCoAuthored(ctx, row.PersonID)
		if err != nil {
			// Tolerated: the record is still written, just without the
			// co-authored list.
			e.log.Warn().Err(err).Str("person_id", row.PersonID).Msg("co-authored fetch failed, storing without list")
		} else {
			rec.CoAuthored = docRefs(coAuthored)
		}

		primary := storage.PersonInfoKey(row.PersonID)
		batch.Set(primary, rec, 0)
		if row.NameCode != "" {
			batch.Set(storage.NameCodeKey(row.NameCode), primary, 0)
		}
		rep.Indexed++
		metrics.UnitsIndexedTotal.WithLabelValues(rep.Operation).Inc()

		inBatch++
		if inBatch >= e.cfg.BatchSize {
			if err := e.commit(batch); err != nil {
				return nil, err
			}
			batch = e.store.Batch()
			inBatch = 0
		}
	}
	if err := e.commit(batch); err != nil {
		return nil, err
	}

	return e.finishReport(rep), nil
}

// IndexCommittees walks the paginated committee list and writes one
// primary record per committee. Records without a usable code cannot be
// keyed; they are logged and skipped, never aborting the batch.
func (e *Engine) IndexCommittees(ctx context.Context, opts Options) (*types.IndexReport, error) {
	rep := e.newReport("committees")

	rows, err := e.fetchAllCommittees(ctx)
	if err != nil {
		return nil, err
	}
	rep.Total = len(rows)

	size := opts.ChunkSize
	if size == 0 {
		size = e.cfg.ChunkSize
	}
	lo, hi, next := chunkBounds(len(rows), opts.StartIndex, size)
	rep.NextStart = next

	batch := e.store.Batch()
	inBatch := 0
	for _, row := range rows[lo:hi] {
		if row.Code == "" {
			e.log.Warn().Str("name", row.Name).Msg("committee without code, skipping")
			metrics.UnitsSkippedTotal.WithLabelValues(rep.Operation).Inc()
			rep.Skipped++
			continue
		}
		batch.Set(storage.CommitteeKey(row.Code), types.Committee{
			Code:         row.Code,
			Name:         row.Name,
			Phone:        row.Phone,
			Jurisdiction: row.Jurisdiction,
			Location:     row.Location,
			TypeDesc:     row.TypeDesc,
		}, 0)
		rep.Indexed++
		metrics.UnitsIndexedTotal.WithLabelValues(rep.Operation).Inc()

		inBatch++
		if inBatch >= e.cfg.BatchSize {
			if err := e.commit(batch); err != nil {
				return nil, err
			}
			batch = e.store.Batch()
			inBatch = 0
		}
	}
	if err := e.commit(batch); err != nil {
		return nil, err
	}

	return e.finishReport(rep), nil
}

// fetchAllMembers pages through the member list until the reported total
// page count is exhausted. A page fetch failure here is structural and
// aborts the whole operation.
func (e *Engine) fetchAllMembers(ctx context.Context) ([]upstream.MemberRow, error) {
	var rows []upstream.MemberRow
	page := 0
	for {
		p, err := e.source.FetchMemberList(ctx, page, e.cfg.PageLimit, "")
		if err != nil {
			return nil, fmt.Errorf("fetch member list page %d: %w", page, err)
		}
		pages := p.Pages(e.cfg.PageLimit)
		if page < pages && len(p.Rows) == 0 {
			return nil, fmt.Errorf("member list page %d empty but %d pages reported", page, pages)
		}
		rows = append(rows, p.Rows...)
		page++
		if page >= pages {
			return rows, nil
		}
	}
}

// fetchAllCommittees pages through the committee list; same structural
// failure semantics as fetchAllMembers.
func (e *Engine) fetchAllCommittees(ctx context.Context) ([]upstream.CommitteeRow, error) {
	var rows []upstream.CommitteeRow
	page := 0
	for {
		p, err := e.source.FetchCommitteeList(ctx, page, e.cfg.PageLimit)
		if err != nil {
			return nil, fmt.Errorf("fetch committee list page %d: %w", page, err)
		}
		pages := p.Pages(e.cfg.PageLimit)
		if page < pages && len(p.Rows) == 0 {
			return nil, fmt.Errorf("committee list page %d empty but %d pages reported", page, pages)
		}
		rows = append(rows, p.Rows...)
		page++
		if page >= pages {
			return rows, nil
		}
	}
}

func docRefs(rows []upstream.BillRow) []types.DocRef {
	refs := make([]types.DocRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, types.DocRef{
			Congress: congress.ToCanonical(row.Congress),
			DocKey:   row.DocKey,
			Title:    row.Title,
		})
	}
	return refs
}

func partitionKey(cong int) string {
	return strconv.Itoa(cong)
}
