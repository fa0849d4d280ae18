package submission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"civicfix_backend/internal/classifier"
	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/internal/reports/repository"
	"civicfix_backend/platform/logger"

	"github.com/google/uuid"
)

var (
	// ErrAlreadySubmitted is returned without touching the channel when the
	// report was filed before.
	ErrAlreadySubmitted = errors.New("report already submitted")
	// ErrNotReady is returned when the report is neither ready nor failed.
	ErrNotReady = errors.New("report is not ready for submission")
	// ErrSubmittedUnrecorded means the form was filed but the submitted
	// status could not be stored. The channel must not be driven again for
	// the report in the same run.
	ErrSubmittedUnrecorded = errors.New("report filed but submission not recorded")
)

// Writes of the submitted status are retried with a quadratic delay.
const (
	recordAttempts = 3
	recordBackoff  = 500 * time.Millisecond
)

// Store is the report persistence the driver needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, update repository.SubmittedUpdate) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
}

// ImageSource loads stored report images.
type ImageSource interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Outcome is the result of one submission attempt.
type Outcome struct {
	Success bool
	Reason  string
	Fields  []FieldResult
}

// Driver fills the external form for a single report and persists the result.
type Driver struct {
	store    Store
	images   ImageSource
	table    classifier.RoutingTable
	sentinel domain.SentinelIdentity
	policy   FieldPolicy
	clock    Clock
	settle   time.Duration
	tempDir  string
	log      *logger.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithFieldPolicy overrides the required-field set.
func WithFieldPolicy(p FieldPolicy) DriverOption {
	return func(d *Driver) { d.policy = p }
}

// WithDriverClock replaces the wall clock.
func WithDriverClock(c Clock) DriverOption {
	return func(d *Driver) { d.clock = c }
}

// WithSettleDelay sets how long to wait after clicking submit.
func WithSettleDelay(delay time.Duration) DriverOption {
	return func(d *Driver) { d.settle = delay }
}

// WithTempDir sets where attachments are staged.
func WithTempDir(dir string) DriverOption {
	return func(d *Driver) { d.tempDir = dir }
}

// NewDriver creates a submission driver. images may be nil, in which case
// attachments are skipped.
func NewDriver(store Store, images ImageSource, table classifier.RoutingTable, sentinel domain.SentinelIdentity, log *logger.Logger, opts ...DriverOption) *Driver {
	if log == nil {
		log = logger.Discard()
	}
	d := &Driver{
		store:    store,
		images:   images,
		table:    table,
		sentinel: sentinel,
		policy:   DefaultFieldPolicy(),
		clock:    RealClock(),
		log:      log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit files report through session. The report is re-read first; an
// already submitted report returns ErrAlreadySubmitted and the channel is
// left alone. A failed attempt is persisted as failed and returned as an
// unsuccessful Outcome with a nil error. Errors are reserved for broken
// preconditions, persistence and cancellation. A filed report whose status
// cannot be stored returns ErrSubmittedUnrecorded.
func (d *Driver) Submit(ctx context.Context, session Session, report domain.Report) (Outcome, error) {
	current, err := d.store.GetByID(ctx, report.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load report %s: %w", report.ID, err)
	}
	switch {
	case current.Status == domain.StatusSubmitted:
		return Outcome{}, ErrAlreadySubmitted
	case !current.Status.Submittable():
		return Outcome{}, fmt.Errorf("%w: status %s", ErrNotReady, current.Status)
	}

	outcome := d.attempt(ctx, session, *current)
	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	now := d.clock.Now()
	if outcome.Success {
		err = d.recordSubmitted(ctx, current.ID, repository.SubmittedUpdate{
			At:                 now,
			Method:             session.Method(),
			AnonymousConfirmed: current.IsAnonymous,
		})
		if err != nil {
			return outcome, fmt.Errorf("%w: %s: %w", ErrSubmittedUnrecorded, current.ID, err)
		}
		return outcome, nil
	}

	if err := d.store.MarkFailed(ctx, current.ID, outcome.Reason, now); err != nil {
		return outcome, fmt.Errorf("record failure of %s: %w", current.ID, err)
	}
	return outcome, nil
}

// recordSubmitted stores the submitted status, retrying transient store
// errors. A concurrent status change is final.
func (d *Driver) recordSubmitted(ctx context.Context, id uuid.UUID, update repository.SubmittedUpdate) error {
	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		err = d.store.MarkSubmitted(ctx, id, update)
		if err == nil || errors.Is(err, repository.ErrStatusChanged) {
			return err
		}
		d.log.WithContext(ctx).Warn("failed to record submission, retrying",
			"report_id", id.String(), "attempt", attempt, "error", err)
		if attempt < recordAttempts {
			if sleepErr := d.clock.Sleep(ctx, time.Duration(attempt*attempt)*recordBackoff); sleepErr != nil {
				return err
			}
		}
	}
	return err
}

func (d *Driver) attempt(ctx context.Context, session Session, report domain.Report) Outcome {
	log := d.log.WithContext(ctx).With("report_id", report.ID.String())
	var out Outcome

	if err := session.Reset(ctx); err != nil {
		return failed(out, fmt.Sprintf("reset form: %v", err))
	}

	view := NewDisplayView(report, d.sentinel)
	for _, step := range fieldPlan(report, view, d.table) {
		res := d.apply(ctx, session, step)
		out.Fields = append(out.Fields, res)
		if res.OK() {
			continue
		}
		if d.policy.Required(res.Field) {
			return failed(out, fmt.Sprintf("failed to fill %s field: %v", res.Field, res.Err))
		}
		log.Warn("optional form field failed, continuing", "field", res.Field, "error", res.Err)
	}

	if res, ok := d.attach(ctx, session, report); ok {
		out.Fields = append(out.Fields, res)
		if !res.OK() {
			if d.policy.Required(res.Field) {
				return failed(out, fmt.Sprintf("failed to attach image: %v", res.Err))
			}
			log.Warn("image attachment failed, continuing", "error", res.Err)
		}
	}

	if err := session.Submit(ctx); err != nil {
		return failed(out, fmt.Sprintf("submit form: %v", err))
	}
	if err := d.clock.Sleep(ctx, d.settle); err != nil {
		return failed(out, fmt.Sprintf("wait after submit: %v", err))
	}

	out.Success = true
	return out
}

func (d *Driver) apply(ctx context.Context, session Session, step fieldStep) FieldResult {
	var err error
	switch step.kind {
	case stepSelect:
		err = session.Select(ctx, step.field, step.value)
	default:
		err = session.Fill(ctx, step.field, step.value)
	}
	return FieldResult{Field: step.field, Err: err}
}

// attach stages the report image in a temp file for the upload control and
// removes it before returning. ok is false when the report has no image.
func (d *Driver) attach(ctx context.Context, session Session, report domain.Report) (FieldResult, bool) {
	if d.images == nil || report.ImageKey == nil || strings.TrimSpace(*report.ImageKey) == "" {
		return FieldResult{}, false
	}
	res := FieldResult{Field: FieldFile}

	data, err := d.images.Fetch(ctx, *report.ImageKey)
	if err != nil {
		res.Err = fmt.Errorf("fetch image: %w", err)
		return res, true
	}

	path, cleanup, err := stageTempFile(d.tempDir, data)
	if err != nil {
		res.Err = err
		return res, true
	}
	defer cleanup()

	res.Err = session.AttachFile(ctx, FieldFile, path)
	return res, true
}

func stageTempFile(dir string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp(dir, "report-*.jpg")
	if err != nil {
		return "", nil, fmt.Errorf("stage image: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("stage image: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("stage image: %w", err)
	}
	return f.Name(), cleanup, nil
}

func failed(out Outcome, reason string) Outcome {
	out.Success = false
	out.Reason = reason
	return out
}
