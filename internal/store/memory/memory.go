// Package memory is an in-process store used by tests and dry runs. It keeps
// the same contracts as the Postgres store, including atomic merges, the
// versioned cursor and write-once run finishing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
)

type sourceKey struct {
	companyID  uuid.UUID
	sourceType types.SourceType
}

// Store implements store.Store in memory.
type Store struct {
	mu sync.RWMutex

	companies    []types.Company
	companyByID  map[uuid.UUID]int
	companyByKey map[string]int

	sources map[sourceKey]types.Source

	postings map[string]types.Posting

	cursor types.Cursor

	runs       []types.Run
	runByID    map[uuid.UUID]int
	sourceRuns []types.SourceRun
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		companyByID:  make(map[uuid.UUID]int),
		companyByKey: make(map[string]int),
		sources:      make(map[sourceKey]types.Source),
		postings:     make(map[string]types.Posting),
		runByID:      make(map[uuid.UUID]int),
	}
}

// Close is a no-op.
func (s *Store) Close() {}

// -----------------------------------------------------------------------------
// Companies
// -----------------------------------------------------------------------------

// FindOrCreateCompany returns the company with the same normalized name or appends c.
func (s *Store) FindOrCreateCompany(_ context.Context, c types.Company) (*types.Company, error) {
	normalized := types.NormalizeName(c.Name)
	if normalized == "" {
		return nil, fmt.Errorf("company name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.companyByKey[normalized]; ok {
		existing := s.companies[i]
		return &existing, nil
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.NameNormalized = normalized
	if c.Domain != nil {
		d := types.NormalizeDomain(*c.Domain)
		c.Domain = &d
	}
	c.Position = int64(len(s.companies) + 1)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	s.companies = append(s.companies, c)
	s.companyByID[c.ID] = len(s.companies) - 1
	s.companyByKey[normalized] = len(s.companies) - 1
	return &c, nil
}

// GetCompany returns nil when id is unknown.
func (s *Store) GetCompany(_ context.Context, id uuid.UUID) (*types.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.companyByID[id]
	if !ok {
		return nil, nil
	}
	c := s.companies[i]
	return &c, nil
}

// CountCompanies returns the registry size.
func (s *Store) CountCompanies(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.companies), nil
}

// ListCompaniesRange returns companies [offset, offset+limit) in registry order.
func (s *Store) ListCompaniesRange(_ context.Context, offset, limit int) ([]types.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset < 0 || offset >= len(s.companies) || limit <= 0 {
		return nil, nil
	}
	end := min(offset+limit, len(s.companies))
	out := make([]types.Company, end-offset)
	copy(out, s.companies[offset:end])
	return out, nil
}

// -----------------------------------------------------------------------------
// Sources
// -----------------------------------------------------------------------------

// UpsertSource inserts or replaces the source for (company, type).
func (s *Store) UpsertSource(_ context.Context, src types.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companyByID[src.CompanyID]; !ok {
		return fmt.Errorf("unknown company %s", src.CompanyID)
	}
	key := sourceKey{src.CompanyID, src.SourceType}
	if prev, ok := s.sources[key]; ok && src.LastCheckedAt == nil {
		src.LastCheckedAt = prev.LastCheckedAt
	}
	s.sources[key] = src
	return nil
}

// ListSources returns a company's sources ordered by type.
func (s *Store) ListSources(_ context.Context, companyID uuid.UUID) ([]types.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Source
	for k, src := range s.sources {
		if k.companyID == companyID {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceType < out[j].SourceType })
	return out, nil
}

// ListActiveSources returns active sources by company position then type.
func (s *Store) ListActiveSources(_ context.Context) ([]types.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Source
	for _, src := range s.sources {
		if src.IsActive {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := s.companyByID[out[i].CompanyID], s.companyByID[out[j].CompanyID]
		if pi != pj {
			return pi < pj
		}
		return out[i].SourceType < out[j].SourceType
	})
	return out, nil
}

// MarkSourceChecked stamps last_checked_at.
func (s *Store) MarkSourceChecked(_ context.Context, companyID uuid.UUID, st types.SourceType, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sourceKey{companyID, st}
	src, ok := s.sources[key]
	if !ok {
		return nil
	}
	src.LastCheckedAt = &at
	s.sources[key] = src
	return nil
}

// DeactivateSource clears is_active and stamps last_checked_at. Unknown
// sources are ignored.
func (s *Store) DeactivateSource(_ context.Context, companyID uuid.UUID, st types.SourceType, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sourceKey{companyID, st}
	src, ok := s.sources[key]
	if !ok {
		return nil
	}
	src.IsActive = false
	src.LastCheckedAt = &at
	s.sources[key] = src
	return nil
}

// -----------------------------------------------------------------------------
// Postings
// -----------------------------------------------------------------------------

// ListCompanyPostings returns copies of every posting for companyID.
func (s *Store) ListCompanyPostings(_ context.Context, companyID uuid.UUID) ([]types.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Posting
	for _, p := range s.postings {
		if p.CompanyID == companyID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ApplyMerge writes all changed postings under one lock.
func (s *Store) ApplyMerge(_ context.Context, companyID uuid.UUID, changed []types.Posting) error {
	for _, p := range changed {
		if p.CompanyID != companyID {
			return fmt.Errorf("posting %s belongs to company %s, not %s", p.Key, p.CompanyID, companyID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range changed {
		s.postings[p.Key] = p.Clone()
	}
	return nil
}

// QueryPostings returns projection rows ordered by first_seen desc, company, title.
func (s *Store) QueryPostings(_ context.Context, q store.PostingQuery) ([]types.ProjectionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []types.ProjectionRow
	for _, p := range s.postings {
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		if q.FirstSeenAt != nil && !p.FirstSeenAt.Equal(*q.FirstSeenAt) {
			continue
		}
		if q.CompanyID != nil && p.CompanyID != *q.CompanyID {
			continue
		}
		name := ""
		if i, ok := s.companyByID[p.CompanyID]; ok {
			name = s.companies[i].Name
		}
		rows = append(rows, types.ProjectionRow{
			Company:     name,
			Title:       p.Title,
			Location:    p.Location,
			ApplyURL:    p.ApplyURL,
			FirstSeenAt: p.FirstSeenAt,
			Status:      p.Status,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.FirstSeenAt.Equal(b.FirstSeenAt) {
			return a.FirstSeenAt.After(b.FirstSeenAt)
		}
		if a.Company != b.Company {
			return a.Company < b.Company
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ApplyURL < b.ApplyURL
	})

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

// -----------------------------------------------------------------------------
// Cursor
// -----------------------------------------------------------------------------

// LoadCursor returns the saved cursor, or the zero cursor.
func (s *Store) LoadCursor(_ context.Context) (types.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor, nil
}

// SaveCursor stores c when it is exactly one version ahead of the stored cursor.
func (s *Store) SaveCursor(_ context.Context, c types.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Version != s.cursor.Version+1 {
		return fmt.Errorf("%w: have %d, got %d", types.ErrCursorConflict, s.cursor.Version, c.Version)
	}
	s.cursor = c
	return nil
}

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

// CreateRun appends a run record.
func (s *Store) CreateRun(_ context.Context, run types.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runByID[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs = append(s.runs, run)
	s.runByID[run.ID] = len(s.runs) - 1
	return nil
}

// FinishRun sets the terminal fields of a running run once.
func (s *Store) FinishRun(_ context.Context, run types.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.runByID[run.ID]
	if !ok {
		return types.ErrRunNotFound
	}
	cur := s.runs[i]
	if cur.FinishedAt != nil {
		return types.ErrRunFinished
	}
	cur.FinishedAt = run.FinishedAt
	cur.Status = run.Status
	cur.Counters = run.Counters
	cur.Error = run.Error
	s.runs[i] = cur
	return nil
}

// GetRun returns nil when id is unknown.
func (s *Store) GetRun(_ context.Context, id uuid.UUID) (*types.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.runByID[id]
	if !ok {
		return nil, nil
	}
	r := s.runs[i]
	return &r, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(_ context.Context, limit int) ([]types.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Run, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		out = append(out, s.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// LatestFinishedRun returns the newest finished run of kind, or nil.
func (s *Store) LatestFinishedRun(_ context.Context, kind types.RunKind) (*types.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.runs) - 1; i >= 0; i-- {
		r := s.runs[i]
		if r.Kind == kind && r.FinishedAt != nil {
			return &r, nil
		}
	}
	return nil, nil
}

// InsertSourceRun appends a source run.
func (s *Store) InsertSourceRun(_ context.Context, sr types.SourceRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runByID[sr.RunID]; !ok {
		return types.ErrRunNotFound
	}
	s.sourceRuns = append(s.sourceRuns, sr)
	return nil
}

// ListSourceRuns returns a run's source runs in insertion order.
func (s *Store) ListSourceRuns(_ context.Context, runID uuid.UUID) ([]types.SourceRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.SourceRun
	for _, sr := range s.sourceRuns {
		if sr.RunID == runID {
			out = append(out, sr)
		}
	}
	return out, nil
}
