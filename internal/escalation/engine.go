// Package escalation groups unsubmitted reports into clusters of the same
// category around a seed and flags qualifying clusters ready for submission.
package escalation

import (
	"fmt"

	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/platform/geo"

	"github.com/google/uuid"
)

const (
	DefaultMinCount     = 3
	DefaultRadiusMeters = 500.0
)

// Params are the clustering thresholds.
type Params struct {
	MinCount     int
	RadiusMeters float64
}

// DefaultParams returns the production thresholds.
func DefaultParams() Params {
	return Params{MinCount: DefaultMinCount, RadiusMeters: DefaultRadiusMeters}
}

// Validate rejects thresholds that would let a lone report escalate itself.
func (p Params) Validate() error {
	if p.MinCount < 2 {
		return fmt.Errorf("min count must be at least 2, got %d", p.MinCount)
	}
	if !(p.RadiusMeters > 0) {
		return fmt.Errorf("radius must be positive, got %v", p.RadiusMeters)
	}
	return nil
}

// Cluster is one emitted group. Members lists the seed first.
type Cluster struct {
	Category string
	Seed     uuid.UUID
	Members  []uuid.UUID
}

// Engine finds clusters. It is stateless and safe for concurrent use.
type Engine struct {
	params   Params
	newIndex IndexFunc
}

// Option customises an Engine.
type Option func(*Engine)

// WithIndex replaces the all-pairs neighbour scan.
func WithIndex(fn IndexFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newIndex = fn
		}
	}
}

// NewEngine validates params and builds an engine.
func NewEngine(params Params, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{params: params, newIndex: LinearIndex}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Params returns the engine's thresholds.
func (e *Engine) Params() Params { return e.params }

// FindClusters scans reports once. Each report is tried as a seed unless a
// previous group already claimed it; the seed's group holds every unclaimed
// report of the same category within the radius of the seed. Membership is
// measured from the seed only, so two members may be farther apart than the
// radius. A group of at least MinCount is emitted and its members claimed.
// A report without coordinates never joins a group and never gains
// neighbours as a seed.
func (e *Engine) FindClusters(reports []domain.Report) []Cluster {
	if len(reports) == 0 {
		return nil
	}

	index := e.newIndex(reports)
	assigned := make([]bool, len(reports))
	var clusters []Cluster

	for i := range reports {
		if assigned[i] {
			continue
		}
		seed := &reports[i]
		group := []int{i}

		if seed.HasLocation() {
			for _, j := range index.Near(i, e.params.RadiusMeters) {
				if j == i || assigned[j] {
					continue
				}
				if e.joins(seed, &reports[j]) {
					group = append(group, j)
				}
			}
		}

		if len(group) < e.params.MinCount {
			continue
		}

		cluster := Cluster{
			Category: seed.Category,
			Seed:     seed.ID,
			Members:  make([]uuid.UUID, 0, len(group)),
		}
		for _, j := range group {
			assigned[j] = true
			cluster.Members = append(cluster.Members, reports[j].ID)
		}
		clusters = append(clusters, cluster)
	}

	return clusters
}

// FindSubmissionCandidates returns every report in an emitted cluster,
// grouped by cluster.
func (e *Engine) FindSubmissionCandidates(reports []domain.Report) []domain.Report {
	byID := make(map[uuid.UUID]domain.Report, len(reports))
	for _, r := range reports {
		if _, ok := byID[r.ID]; !ok {
			byID[r.ID] = r
		}
	}

	var out []domain.Report
	for _, c := range e.FindClusters(reports) {
		for _, id := range c.Members {
			out = append(out, byID[id])
		}
	}
	return out
}

func (e *Engine) joins(seed, other *domain.Report) bool {
	if other.ID == seed.ID || other.Category != seed.Category {
		return false
	}
	if !seed.HasLocation() || !other.HasLocation() {
		return false
	}
	d := geo.Distance(seed.Location.Latitude, seed.Location.Longitude, other.Location.Latitude, other.Location.Longitude)
	return d <= e.params.RadiusMeters
}

// MemberIDs flattens clusters into one id list.
func MemberIDs(clusters []Cluster) []uuid.UUID {
	var ids []uuid.UUID
	for _, c := range clusters {
		ids = append(ids, c.Members...)
	}
	return ids
}
