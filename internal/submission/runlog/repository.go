// Package runlog persists submission run summaries.
package runlog

import (
	"context"
	"fmt"

	"civicfix_backend/internal/submission"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores run summaries in submission_runs.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a run log repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ submission.RunRecorder = (*Repository)(nil)

// Record inserts one run summary.
func (r *Repository) Record(ctx context.Context, s submission.RunStats) error {
	var errText *string
	if s.Error != "" {
		errText = &s.Error
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO submission_runs (
			id, trigger, status, started_at, finished_at, reopened, attempted, succeeded,
			failed, skipped, unrecorded, anonymous, authenticated, success_rate, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.RunID, s.Trigger, s.Status, s.StartedAt, s.FinishedAt, s.Reopened, s.Attempted,
		s.Succeeded, s.Failed, s.Skipped, s.Unrecorded, s.Anonymous, s.Authenticated, s.SuccessRate, errText,
	)
	if err != nil {
		return fmt.Errorf("failed to record submission run: %w", err)
	}
	return nil
}

// List returns run summaries newest first with the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]submission.RunStats, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM submission_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count submission runs: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, trigger, status, started_at, finished_at, reopened, attempted, succeeded,
			failed, skipped, unrecorded, anonymous, authenticated, success_rate, error
		FROM submission_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submission runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (submission.RunStats, error) {
		var (
			s       submission.RunStats
			errText *string
		)
		err := row.Scan(&s.RunID, &s.Trigger, &s.Status, &s.StartedAt, &s.FinishedAt, &s.Reopened,
			&s.Attempted, &s.Succeeded, &s.Failed, &s.Skipped, &s.Unrecorded, &s.Anonymous, &s.Authenticated,
			&s.SuccessRate, &errText)
		if errText != nil {
			s.Error = *errText
		}
		return s, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submission runs: %w", err)
	}
	return runs, total, nil
}
