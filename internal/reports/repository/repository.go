// Package repository persists reports in Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reportNotFoundMsg = "report not found"

var (
	// ErrStaleBatch is returned by MarkReady when at least one id was no longer
	// unsubmitted. Nothing from the batch is applied.
	ErrStaleBatch = errors.New("ready batch contains reports that are no longer unsubmitted")

	// ErrStatusChanged is returned by the per-report submission updates when
	// the report left a submittable status before the write.
	ErrStatusChanged = errors.New("report status changed concurrently")
)

const reportColumns = `id, user_id, category, ml_predicted_category, ml_confidence, department, priority,
	latitude, longitude, is_anonymous, name, surname, email, mobile, gender, district, block_name,
	address, area_type, description, image_key, status, ready_at, submitted_at, submission_method,
	anonymous_submission_confirmed, submission_error, last_attempt, created_at, updated_at`

// Repository provides database operations for reports
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new reports repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Sort keys accepted by List.
const (
	SortCreatedAt   = "createdAt"
	SortSubmittedAt = "submittedAt"
	SortPriority    = "priority"
	SortStatus      = "status"
)

// sortExpressions maps sort keys to SQL. Only these are ever interpolated.
var sortExpressions = map[string]string{
	SortCreatedAt:   "created_at",
	SortSubmittedAt: "submitted_at",
	SortPriority:    "CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END",
	SortStatus:      "status",
}

// ListFilter narrows List results. Empty fields match everything; an
// unknown SortBy falls back to creation time.
type ListFilter struct {
	Category         string
	District         string
	Status           domain.Status
	Priority         domain.Priority
	IncludeAnonymous bool
	SortBy           string
	Ascending        bool
	Limit            int
	Offset           int
}

// MapFilter narrows ListMapMarkers results.
type MapFilter struct {
	Category         string
	District         string
	Status           domain.Status
	IncludeAnonymous bool
	Limit            int
}

// SubmittedUpdate carries provenance for a successful external submission.
type SubmittedUpdate struct {
	At                 time.Time
	Method             string
	AnonymousConfirmed bool
}

// Create inserts a new report. ID, CreatedAt and UpdatedAt must be set by the caller.
func (r *Repository) Create(ctx context.Context, report *domain.Report) error {
	var lat, lon *float64
	if report.Location != nil {
		lat = &report.Location.Latitude
		lon = &report.Location.Longitude
	}

	query := `
		INSERT INTO reports (
			id, user_id, category, ml_predicted_category, ml_confidence, department, priority,
			latitude, longitude, is_anonymous, name, surname, email, mobile, gender, district,
			block_name, address, area_type, description, image_key, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24
		)`

	c := report.Contact
	_, err := r.pool.Exec(ctx, query,
		report.ID, report.UserID, report.Category, report.PredictedCategory, report.Confidence,
		report.Department, string(report.Priority), lat, lon, report.IsAnonymous,
		c.Name, c.Surname, c.Email, c.Mobile, c.Gender, c.District, c.BlockName, c.Address, c.AreaType,
		report.Description, report.ImageKey, string(report.Status), report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// GetByID retrieves a report by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	report, err := scanReport(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(reportNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return report, nil
}

// List returns reports matching filter in the requested order, newest first
// by default, with the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]domain.Report, int, error) {
	where := `WHERE ($1 = '' OR category = $1)
		AND ($2 = '' OR status = $2)
		AND ($3 OR is_anonymous = false)
		AND ($4 = '' OR district = $4)
		AND ($5 = '' OR priority = $5)`
	args := []any{filter.Category, string(filter.Status), filter.IncludeAnonymous, filter.District, string(filter.Priority)}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reports `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	query := `SELECT ` + reportColumns + ` FROM reports ` + where + `
		` + orderBy(filter) + `
		LIMIT $6 OFFSET $7`

	rows, err := r.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}

	items, err := collectReports(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	return items, total, nil
}

func orderBy(filter ListFilter) string {
	expr, ok := sortExpressions[filter.SortBy]
	if !ok {
		expr = sortExpressions[SortCreatedAt]
	}
	dir := "DESC"
	if filter.Ascending {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s NULLS LAST, created_at DESC, id", expr, dir)
}

// ListMapMarkers returns located reports for the map, newest first.
func (r *Repository) ListMapMarkers(ctx context.Context, filter MapFilter) ([]domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
			AND ($1 = '' OR category = $1)
			AND ($2 = '' OR district = $2)
			AND ($3 = '' OR status = $3)
			AND ($4 OR is_anonymous = false)
		ORDER BY created_at DESC
		LIMIT $5`

	rows, err := r.pool.Query(ctx, query,
		filter.Category, filter.District, string(filter.Status), filter.IncludeAnonymous, filter.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list map markers: %w", err)
	}

	items, err := collectReports(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list map markers: %w", err)
	}
	return items, nil
}

// ListByStatus returns every report in status, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE status = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s reports: %w", status, err)
	}

	items, err := collectReports(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s reports: %w", status, err)
	}
	return items, nil
}

// ListReadyOldestFirst returns reports flagged ready, oldest created first.
func (r *Repository) ListReadyOldestFirst(ctx context.Context) ([]domain.Report, error) {
	return r.ListByStatus(ctx, domain.StatusReady)
}

// MarkReady flips every id from unsubmitted to ready in one transaction.
// If any id is missing or no longer unsubmitted the whole batch is rolled
// back and ErrStaleBatch is returned, so readers never see part of a cluster.
func (r *Repository) MarkReady(ctx context.Context, ids []uuid.UUID, at time.Time) (err error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin mark ready tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	result, err := tx.Exec(ctx, `
		UPDATE reports
		SET status = 'ready', ready_at = $2, updated_at = $2
		WHERE id = ANY($1::uuid[]) AND status = 'unsubmitted'`,
		unique, at,
	)
	if err != nil {
		return fmt.Errorf("mark reports ready: %w", err)
	}

	if result.RowsAffected() != int64(len(unique)) {
		return ErrStaleBatch
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit mark ready tx: %w", err)
	}
	return nil
}

// MarkSubmitted records a successful external submission and clears any
// previous failure bookkeeping.
func (r *Repository) MarkSubmitted(ctx context.Context, id uuid.UUID, update SubmittedUpdate) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET status = 'submitted',
			submitted_at = $2,
			submission_method = $3,
			anonymous_submission_confirmed = $4,
			submission_error = NULL,
			last_attempt = NULL,
			updated_at = $2
		WHERE id = $1 AND status IN ('ready', 'failed')`,
		id, update.At, update.Method, update.AnonymousConfirmed,
	)
	if err != nil {
		return fmt.Errorf("mark report submitted: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

// MarkFailed records a failed submission attempt.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET status = 'failed',
			submission_error = $2,
			last_attempt = $3,
			updated_at = $3
		WHERE id = $1 AND status IN ('ready', 'failed')`,
		id, reason, at,
	)
	if err != nil {
		return fmt.Errorf("mark report failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

// ReopenStaleFailures resets failed reports whose last attempt is before
// cutoff to unsubmitted and clears their error fields.
func (r *Repository) ReopenStaleFailures(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET status = 'unsubmitted',
			submission_error = NULL,
			last_attempt = NULL,
			ready_at = NULL,
			updated_at = now()
		WHERE status = 'failed' AND last_attempt < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("reopen stale failures: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountByStatus returns how many reports sit in each status.
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM reports GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count reports by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

func collectReports(rows pgx.Rows) ([]domain.Report, error) {
	defer rows.Close()

	items := make([]domain.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var (
		report   domain.Report
		lat, lon *float64
		priority string
		status   string
	)

	err := row.Scan(
		&report.ID, &report.UserID, &report.Category, &report.PredictedCategory, &report.Confidence,
		&report.Department, &priority, &lat, &lon, &report.IsAnonymous,
		&report.Contact.Name, &report.Contact.Surname, &report.Contact.Email, &report.Contact.Mobile,
		&report.Contact.Gender, &report.Contact.District, &report.Contact.BlockName,
		&report.Contact.Address, &report.Contact.AreaType, &report.Description, &report.ImageKey,
		&status, &report.ReadyAt, &report.SubmittedAt, &report.SubmissionMethod,
		&report.AnonymousSubmissionConfirmed, &report.SubmissionError, &report.LastAttempt,
		&report.CreatedAt, &report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.Priority = domain.Priority(priority)
	report.Status = domain.Status(status)
	if lat != nil && lon != nil {
		report.Location = &domain.Location{Latitude: *lat, Longitude: *lon}
	}
	return &report, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
