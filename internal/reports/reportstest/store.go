// Package reportstest provides an in-memory report store for tests.
package reportstest

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/internal/reports/repository"
	"civicfix_backend/platform/apperr"

	"github.com/google/uuid"
)

// Store mirrors repository.Repository in memory. Batch updates become visible
// to readers all at once.
type Store struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]domain.Report
	seq     map[uuid.UUID]int
	next    int
	version int

	// OnMarkReady runs after a batch is validated and before it is applied.
	// Reads issued from the hook observe the pre-batch state.
	OnMarkReady func(ids []uuid.UUID)

	// Injected failures, returned verbatim when set.
	MarkReadyErr     error
	MarkSubmittedErr error
	MarkFailedErr    error
	ListErr          error

	// MarkSubmittedFailures limits MarkSubmittedErr to the first n calls.
	// Zero fails every call.
	MarkSubmittedFailures int

	Calls struct {
		MarkReady     int
		MarkSubmitted int
		MarkFailed    int
	}
}

// New returns a store seeded with reports.
func New(reports ...domain.Report) *Store {
	s := &Store{
		reports: make(map[uuid.UUID]domain.Report),
		seq:     make(map[uuid.UUID]int),
	}
	for _, r := range reports {
		s.Put(r)
	}
	return s
}

// Put inserts or replaces a report without any validation.
func (s *Store) Put(r domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if _, ok := s.seq[r.ID]; !ok {
		s.seq[r.ID] = s.next
		s.next++
	}
	s.reports[r.ID] = r
	s.version++
}

// Get returns the stored report or the zero value.
func (s *Store) Get(id uuid.UUID) domain.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports[id]
}

// Snapshot returns every report in insertion order.
func (s *Store) Snapshot() []domain.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(func(domain.Report) bool { return true }, false)
}

func (s *Store) Create(_ context.Context, report *domain.Report) error {
	s.Put(*report)
	return nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, apperr.NotFound("report not found")
	}
	return &r, nil
}

func (s *Store) List(_ context.Context, filter repository.ListFilter) ([]domain.Report, int, error) {
	if s.ListErr != nil {
		return nil, 0, s.ListErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedLocked(func(r domain.Report) bool {
		if filter.Category != "" && r.Category != filter.Category {
			return false
		}
		if filter.Status != "" && r.Status != filter.Status {
			return false
		}
		if filter.District != "" && r.Contact.District != filter.District {
			return false
		}
		if filter.Priority != "" && r.Priority != filter.Priority {
			return false
		}
		return filter.IncludeAnonymous || !r.IsAnonymous
	}, true)
	sortReports(all, filter.SortBy, filter.Ascending)

	total := len(all)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return all[start:end], total, nil
}

func (s *Store) ListMapMarkers(_ context.Context, filter repository.MapFilter) ([]domain.Report, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.sortedLocked(func(r domain.Report) bool {
		switch {
		case r.Location == nil:
			return false
		case filter.Category != "" && r.Category != filter.Category:
			return false
		case filter.District != "" && r.Contact.District != filter.District:
			return false
		case filter.Status != "" && r.Status != filter.Status:
			return false
		}
		return filter.IncludeAnonymous || !r.IsAnonymous
	}, true)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// sortReports reorders a newest-first slice by key. Reports without a
// submission time sort last either way, as NULLS LAST does in Postgres.
func sortReports(reports []domain.Report, key string, ascending bool) {
	var cmp func(a, b domain.Report) int
	switch key {
	case repository.SortSubmittedAt:
		cmp = func(a, b domain.Report) int {
			switch {
			case a.SubmittedAt == nil && b.SubmittedAt == nil:
				return 0
			case a.SubmittedAt == nil:
				return 2
			case b.SubmittedAt == nil:
				return -2
			}
			return a.SubmittedAt.Compare(*b.SubmittedAt)
		}
	case repository.SortPriority:
		cmp = func(a, b domain.Report) int { return a.Priority.Rank() - b.Priority.Rank() }
	case repository.SortStatus:
		cmp = func(a, b domain.Report) int { return strings.Compare(string(a.Status), string(b.Status)) }
	default:
		if ascending {
			slices.Reverse(reports)
		}
		return
	}

	slices.SortStableFunc(reports, func(a, b domain.Report) int {
		c := cmp(a, b)
		if c == 2 || c == -2 {
			return c / 2
		}
		if ascending {
			return c
		}
		return -c
	})
}

func (s *Store) ListByStatus(_ context.Context, status domain.Status) ([]domain.Report, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(func(r domain.Report) bool { return r.Status == status }, false), nil
}

func (s *Store) ListReadyOldestFirst(ctx context.Context) ([]domain.Report, error) {
	return s.ListByStatus(ctx, domain.StatusReady)
}

func (s *Store) MarkReady(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	s.Calls.MarkReady++
	if s.MarkReadyErr != nil {
		s.mu.Unlock()
		return s.MarkReadyErr
	}

	staged := make(map[uuid.UUID]domain.Report, len(ids))
	for _, id := range ids {
		r, ok := s.reports[id]
		if !ok || r.Status != domain.StatusUnsubmitted {
			s.mu.Unlock()
			return repository.ErrStaleBatch
		}
		readyAt := at
		r.Status = domain.StatusReady
		r.ReadyAt = &readyAt
		r.UpdatedAt = at
		staged[id] = r
	}
	version := s.version
	s.mu.Unlock()

	if s.OnMarkReady != nil {
		s.OnMarkReady(ids)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		return repository.ErrStaleBatch
	}
	for id, r := range staged {
		s.reports[id] = r
	}
	s.version++
	return nil
}

func (s *Store) MarkSubmitted(_ context.Context, id uuid.UUID, update repository.SubmittedUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.MarkSubmitted++
	if s.MarkSubmittedErr != nil && (s.MarkSubmittedFailures == 0 || s.Calls.MarkSubmitted <= s.MarkSubmittedFailures) {
		return s.MarkSubmittedErr
	}

	r, ok := s.reports[id]
	if !ok || !r.Status.Submittable() {
		return repository.ErrStatusChanged
	}
	at := update.At
	method := update.Method
	r.Status = domain.StatusSubmitted
	r.SubmittedAt = &at
	r.SubmissionMethod = &method
	r.AnonymousSubmissionConfirmed = update.AnonymousConfirmed
	r.SubmissionError = nil
	r.LastAttempt = nil
	r.UpdatedAt = at
	s.reports[id] = r
	s.version++
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.MarkFailed++
	if s.MarkFailedErr != nil {
		return s.MarkFailedErr
	}

	r, ok := s.reports[id]
	if !ok || !r.Status.Submittable() {
		return repository.ErrStatusChanged
	}
	last := at
	msg := reason
	r.Status = domain.StatusFailed
	r.SubmissionError = &msg
	r.LastAttempt = &last
	r.UpdatedAt = at
	s.reports[id] = r
	s.version++
	return nil
}

func (s *Store) ReopenStaleFailures(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, r := range s.reports {
		if r.Status != domain.StatusFailed || r.LastAttempt == nil || !r.LastAttempt.Before(cutoff) {
			continue
		}
		r.Status = domain.StatusUnsubmitted
		r.SubmissionError = nil
		r.LastAttempt = nil
		r.ReadyAt = nil
		s.reports[id] = r
		n++
	}
	if n > 0 {
		s.version++
	}
	return n, nil
}

func (s *Store) CountByStatus(_ context.Context) (map[domain.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.Status]int)
	for _, r := range s.reports {
		counts[r.Status]++
	}
	return counts, nil
}

// sortedLocked returns matching reports ordered by creation time, ties
// broken by insertion order.
func (s *Store) sortedLocked(keep func(domain.Report) bool, newestFirst bool) []domain.Report {
	out := make([]domain.Report, 0, len(s.reports))
	for _, r := range s.reports {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if newestFirst {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if newestFirst {
			return s.seq[a.ID] > s.seq[b.ID]
		}
		return s.seq[a.ID] < s.seq[b.ID]
	})
	return out
}
