package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicfix_backend/internal/events"
	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/internal/reports/repository"
	"civicfix_backend/platform/logger"

	"github.com/google/uuid"
)

// staleBatchAttempts bounds how often a pass re-reads after a concurrent writer
// invalidated its batch.
const staleBatchAttempts = 3

// Store is the report persistence a clustering pass needs.
type Store interface {
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Report, error)
	MarkReady(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// PassResult summarises one clustering pass.
type PassResult struct {
	Scanned     int
	Clusters    []Cluster
	MarkedReady int
}

// Escalated reports whether the pass flagged any report ready.
func (r PassResult) Escalated() bool { return r.MarkedReady > 0 }

// Service runs clustering passes against the store.
type Service struct {
	store  Store
	engine *Engine
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
}

// NewService creates a clustering service. bus may be nil.
func NewService(store Store, engine *Engine, bus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		store:  store,
		engine: engine,
		bus:    bus,
		log:    log,
		now:    time.Now,
	}
}

// RunPass loads every unsubmitted report, finds clusters and flags all of
// their members ready in one atomic batch. When another writer changes one
// of the reports first, the pass starts over from fresh state.
func (s *Service) RunPass(ctx context.Context) (PassResult, error) {
	var lastErr error
	for attempt := 1; attempt <= staleBatchAttempts; attempt++ {
		result, err := s.runOnce(ctx)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, repository.ErrStaleBatch) {
			return PassResult{}, err
		}
		lastErr = err
		s.log.WithContext(ctx).Warn("clustering batch went stale, retrying", "attempt", attempt)
	}
	return PassResult{}, fmt.Errorf("clustering pass: %w", lastErr)
}

func (s *Service) runOnce(ctx context.Context) (PassResult, error) {
	reports, err := s.store.ListByStatus(ctx, domain.StatusUnsubmitted)
	if err != nil {
		return PassResult{}, fmt.Errorf("load unsubmitted reports: %w", err)
	}

	result := PassResult{Scanned: len(reports)}
	result.Clusters = s.engine.FindClusters(reports)
	if len(result.Clusters) == 0 {
		return result, nil
	}

	ids := MemberIDs(result.Clusters)
	if err := s.store.MarkReady(ctx, ids, s.now().UTC()); err != nil {
		return PassResult{}, err
	}
	result.MarkedReady = len(ids)

	s.log.WithContext(ctx).Info("clusters marked ready",
		"clusters", len(result.Clusters),
		"reports", result.MarkedReady,
		"scanned", result.Scanned,
	)

	if s.bus != nil {
		s.bus.Publish(ctx, events.ClustersMarkedReady{
			BaseEvent: events.NewBaseEvent(),
			Clusters:  len(result.Clusters),
			ReportIDs: ids,
		})
	}

	return result, nil
}
