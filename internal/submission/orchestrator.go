package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"civicfix_backend/internal/events"
	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/platform/logger"
	"civicfix_backend/platform/redislock"

	"github.com/google/uuid"
)

// Run defaults.
const (
	DefaultMaxRetries      = 3
	DefaultRetryBackoff    = 5 * time.Second
	DefaultReportDelay     = 1 * time.Second
	DefaultFailureCooldown = time.Hour
	DefaultRunLockTTL      = 2 * time.Hour

	// RunLockKey serialises submission runs across processes.
	RunLockKey = "submission:run"
)

// Run statuses stored in the run log.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunAborted   = "aborted"
	RunSkipped   = "skipped"
)

// ErrRunInProgress is returned when another run, in this process or another,
// holds the channel.
var ErrRunInProgress = errors.New("submission run already in progress")

// RunStore is the report persistence a run needs.
type RunStore interface {
	Store
	ReopenStaleFailures(ctx context.Context, cutoff time.Time) (int64, error)
	ListReadyOldestFirst(ctx context.Context) ([]domain.Report, error)
}

// RunRecorder persists run summaries.
type RunRecorder interface {
	Record(ctx context.Context, stats RunStats) error
}

// Locker hands out the cross-process run lock.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (*redislock.Lock, error)
}

// RunOptions tunes retries and pacing.
type RunOptions struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	ReportDelay     time.Duration
	FailureCooldown time.Duration
	LockTTL         time.Duration
}

// DefaultRunOptions returns the production pacing.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		MaxRetries:      DefaultMaxRetries,
		RetryBackoff:    DefaultRetryBackoff,
		ReportDelay:     DefaultReportDelay,
		FailureCooldown: DefaultFailureCooldown,
		LockTTL:         DefaultRunLockTTL,
	}
}

func (o RunOptions) withDefaults() RunOptions {
	d := DefaultRunOptions()
	if o.MaxRetries < 1 {
		o.MaxRetries = d.MaxRetries
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = 0
	}
	if o.ReportDelay < 0 {
		o.ReportDelay = 0
	}
	if o.FailureCooldown <= 0 {
		o.FailureCooldown = d.FailureCooldown
	}
	if o.LockTTL <= 0 {
		o.LockTTL = d.LockTTL
	}
	return o
}

// RunStats is the aggregate result of one run.
type RunStats struct {
	RunID         uuid.UUID `json:"id"`
	Trigger       string    `json:"trigger"`
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	Reopened      int       `json:"reopened"`
	Attempted     int       `json:"attempted"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	Skipped       int       `json:"skipped"`
	Unrecorded    int       `json:"unrecorded"`
	Anonymous     int       `json:"anonymous"`
	Authenticated int       `json:"authenticated"`
	SuccessRate   float64   `json:"successRate"`
	Error         string    `json:"error,omitempty"`
}

func (s *RunStats) finish(status string, at time.Time, err error) {
	s.Status = status
	s.FinishedAt = at
	s.Attempted = s.Succeeded + s.Failed
	s.SuccessRate = float64(s.Succeeded) / float64(max(s.Attempted, 1))
	if err != nil {
		s.Error = err.Error()
	}
}

// Orchestrator runs submission batches over ready reports.
type Orchestrator struct {
	store    RunStore
	driver   *Driver
	opener   Opener
	recorder RunRecorder
	locker   Locker
	bus      events.Bus
	clock    Clock
	opts     RunOptions
	log      *logger.Logger

	// running admits one run per process whether or not a Locker is wired.
	running sync.Mutex
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRecorder persists run summaries.
func WithRecorder(r RunRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithRunLock makes runs exclusive across processes.
func WithRunLock(l Locker) OrchestratorOption {
	return func(o *Orchestrator) { o.locker = l }
}

// WithBus publishes SubmissionRunFinished after every run.
func WithBus(bus events.Bus) OrchestratorOption {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithClock replaces the wall clock used for backoff and timestamps.
func WithClock(c Clock) OrchestratorOption {
	return func(o *Orchestrator) { o.clock = c }
}

// NewOrchestrator creates a run orchestrator.
func NewOrchestrator(store RunStore, driver *Driver, opener Opener, runOpts RunOptions, log *logger.Logger, opts ...OrchestratorOption) *Orchestrator {
	if log == nil {
		log = logger.Discard()
	}
	o := &Orchestrator{
		store:  store,
		driver: driver,
		opener: opener,
		clock:  RealClock(),
		opts:   runOpts.withDefaults(),
		log:    log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SweepStaleFailures reopens failed reports whose last attempt is older than
// the cooldown so they can be clustered and filed again.
func (o *Orchestrator) SweepStaleFailures(ctx context.Context) (int64, error) {
	cutoff := o.clock.Now().Add(-o.opts.FailureCooldown)
	n, err := o.store.ReopenStaleFailures(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep stale failures: %w", err)
	}
	if n > 0 {
		o.log.WithContext(ctx).Info("reopened stale submission failures", "count", n)
	}
	return n, nil
}

// Run sweeps stale failures and files every ready report, oldest first, on
// one held channel session. Per-report failures are absorbed into the
// stats. Only failing to load work, failing to open the channel or
// cancellation return an error.
func (o *Orchestrator) Run(ctx context.Context, trigger string) (RunStats, error) {
	stats := RunStats{RunID: uuid.New(), Trigger: trigger, StartedAt: o.clock.Now()}
	ctx = context.WithValue(ctx, logger.RunIDKey, stats.RunID.String())
	log := o.log.WithContext(ctx)

	if !o.running.TryLock() {
		stats.finish(RunSkipped, o.clock.Now(), ErrRunInProgress)
		log.Info("submission run skipped, a run is already active in this process")
		o.report(ctx, stats)
		return stats, ErrRunInProgress
	}
	defer o.running.Unlock()

	var lock *redislock.Lock
	if o.locker != nil {
		var lockErr error
		lock, lockErr = o.locker.Obtain(ctx, RunLockKey, o.opts.LockTTL)
		if errors.Is(lockErr, redislock.ErrNotAcquired) {
			stats.finish(RunSkipped, o.clock.Now(), ErrRunInProgress)
			log.Info("submission run skipped, another run holds the lock")
			o.report(ctx, stats)
			return stats, ErrRunInProgress
		}
		if lockErr != nil {
			stats.finish(RunAborted, o.clock.Now(), lockErr)
			o.report(ctx, stats)
			return stats, fmt.Errorf("acquire run lock: %w", lockErr)
		}
		defer func() {
			if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
				log.Warn("failed to release submission run lock", "error", relErr)
			}
		}()
	}

	reopened, sweepErr := o.SweepStaleFailures(ctx)
	if sweepErr != nil {
		log.Warn("stale failure sweep failed, continuing", "error", sweepErr)
	}
	stats.Reopened = int(reopened)

	ready, err := o.store.ListReadyOldestFirst(ctx)
	if err != nil {
		err = fmt.Errorf("load ready reports: %w", err)
		stats.finish(RunFailed, o.clock.Now(), err)
		o.report(ctx, stats)
		return stats, err
	}
	if len(ready) == 0 {
		log.Info("no reports ready for submission")
		stats.finish(RunCompleted, o.clock.Now(), nil)
		o.report(ctx, stats)
		return stats, nil
	}

	session, err := o.opener.Open(ctx)
	if err != nil {
		err = fmt.Errorf("open form channel: %w", err)
		stats.finish(RunAborted, o.clock.Now(), err)
		o.report(ctx, stats)
		return stats, err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn("failed to close form channel", "error", closeErr)
		}
	}()

	log.Info("submission run started", "ready", len(ready), "reopened", stats.Reopened)

	for i, report := range ready {
		if ctxErr := ctx.Err(); ctxErr != nil {
			stats.finish(RunAborted, o.clock.Now(), ctxErr)
			o.report(ctx, stats)
			return stats, ctxErr
		}

		o.submitWithRetries(ctx, session, report, &stats)
		o.refreshLock(ctx, lock)

		if i < len(ready)-1 {
			if sleepErr := o.clock.Sleep(ctx, o.opts.ReportDelay); sleepErr != nil {
				stats.finish(RunAborted, o.clock.Now(), sleepErr)
				o.report(ctx, stats)
				return stats, sleepErr
			}
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		stats.finish(RunAborted, o.clock.Now(), ctxErr)
		o.report(ctx, stats)
		return stats, ctxErr
	}

	stats.finish(RunCompleted, o.clock.Now(), nil)
	o.report(ctx, stats)
	return stats, nil
}

func (o *Orchestrator) submitWithRetries(ctx context.Context, session Session, report domain.Report, stats *RunStats) {
	log := o.log.WithContext(ctx)
	id := report.ID.String()

	for attempt := 1; attempt <= o.opts.MaxRetries; attempt++ {
		outcome, err := o.driver.Submit(ctx, session, report)
		switch {
		case errors.Is(err, ErrAlreadySubmitted), errors.Is(err, ErrNotReady):
			log.Info("report skipped", "report_id", id, "reason", err.Error())
			stats.Skipped++
			return
		case errors.Is(err, ErrSubmittedUnrecorded):
			log.Error("report filed but its submitted status was not stored", "report_id", id, "error", err)
			o.countKind(report, stats)
			stats.Succeeded++
			stats.Unrecorded++
			return
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			log.SubmissionAttempt(id, attempt, o.opts.MaxRetries, report.IsAnonymous, err.Error())
		case outcome.Success:
			log.SubmissionAttempt(id, attempt, o.opts.MaxRetries, report.IsAnonymous, "")
			o.countKind(report, stats)
			stats.Succeeded++
			return
		default:
			log.SubmissionAttempt(id, attempt, o.opts.MaxRetries, report.IsAnonymous, outcome.Reason)
		}

		if attempt < o.opts.MaxRetries {
			if o.clock.Sleep(ctx, o.opts.RetryBackoff) != nil {
				return
			}
		}
	}

	log.Error("all submission attempts failed", "report_id", id, "attempts", o.opts.MaxRetries)
	o.countKind(report, stats)
	stats.Failed++
}

func (o *Orchestrator) countKind(report domain.Report, stats *RunStats) {
	if report.IsAnonymous {
		stats.Anonymous++
		return
	}
	stats.Authenticated++
}

// report logs and records the summary. Recording is best effort.
func (o *Orchestrator) report(ctx context.Context, stats RunStats) {
	log := o.log.WithContext(ctx)
	log.SubmissionRunSummary(stats.Status, stats.Attempted, stats.Succeeded, stats.Failed,
		stats.Anonymous, stats.Authenticated, stats.SuccessRate)

	detached := context.WithoutCancel(ctx)
	if o.recorder != nil {
		if err := o.recorder.Record(detached, stats); err != nil {
			log.Error("failed to record submission run summary", "error", err)
		}
	}
	if o.bus != nil {
		o.bus.Publish(detached, events.SubmissionRunFinished{
			BaseEvent:  events.NewBaseEvent(),
			RunID:      stats.RunID,
			Status:     stats.Status,
			Attempted:  stats.Attempted,
			Succeeded:  stats.Succeeded,
			Failed:     stats.Failed,
			FinishedAt: stats.FinishedAt,
		})
	}
}

// refreshLock keeps the run lock alive between reports.
func (o *Orchestrator) refreshLock(ctx context.Context, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	if err := lock.Refresh(ctx, o.opts.LockTTL); err != nil {
		o.log.WithContext(ctx).Warn("failed to refresh submission run lock", "error", err)
	}
}
