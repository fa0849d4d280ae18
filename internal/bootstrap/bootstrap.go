// Package bootstrap holds the wiring shared by the api, scheduler and
// submission-run binaries.
package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"civicfix_backend/internal/adapters/storage"
	"civicfix_backend/internal/classifier"
	"civicfix_backend/internal/escalation"
	"civicfix_backend/internal/events"
	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/internal/reports/repository"
	"civicfix_backend/internal/submission"
	"civicfix_backend/internal/submission/browser"
	"civicfix_backend/internal/submission/runlog"
	"civicfix_backend/platform/config"
	"civicfix_backend/platform/db"
	"civicfix_backend/platform/logger"
	"civicfix_backend/platform/redislock"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// WithRetry runs fn up to attempts times with a quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

// ConnectDatabase opens the pool, retrying while Postgres comes up.
func ConnectDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	if err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, err
	}
	log.Info("database connection established")
	return pool, nil
}

// MigrateDatabase applies pending migrations. Only the api process runs it.
func MigrateDatabase(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	if err := WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		return err
	}
	log.Info("database migrations complete")
	return nil
}

// NewRedisClient returns nil without error when no Redis URL is configured.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

// NewImageBucket connects to MinIO and makes sure the report bucket exists.
// It returns nil when MinIO is not configured.
func NewImageBucket(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage.ImageBucket, error) {
	if !cfg.IsMinIOEnabled() {
		log.Warn("minio not configured, report images will not be stored")
		return nil, nil
	}

	store, err := storage.NewMinIO(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize storage service: %w", err)
	}

	bucket := storage.NewImageBucket(store, cfg.GetMinioBucketReportImages(), cfg.GetMinIOMaxFileSize())
	if err := WithRetry(ctx, log, "ensure report-images bucket", 5, 2*time.Second, func() error {
		return bucket.Ensure(ctx)
	}); err != nil {
		return nil, err
	}
	return bucket, nil
}

// NewEscalationEngine builds the clustering engine with a grid index sized
// to the configured radius.
func NewEscalationEngine(cfg config.EscalationConfig) (*escalation.Engine, error) {
	params := escalation.Params{
		MinCount:     cfg.GetEscalationMinCount(),
		RadiusMeters: cfg.GetEscalationRadiusMeters(),
	}
	return escalation.NewEngine(params, escalation.WithIndex(escalation.GridIndex(params.RadiusMeters)))
}

// Sentinel converts the configured anonymous identity.
func Sentinel(cfg config.AnonymousIdentityConfig) domain.SentinelIdentity {
	return domain.SentinelIdentity(cfg.GetAnonymousIdentity())
}

// SubmissionDeps are the collaborators a submission orchestrator needs.
// Images and Redis may be nil.
type SubmissionDeps struct {
	Pool   *pgxpool.Pool
	Images *storage.ImageBucket
	Redis  *redis.Client
	Bus    events.Bus
}

// NewSubmissionOrchestrator wires the form driver, Chrome opener, run log
// and run lock.
func NewSubmissionOrchestrator(cfg *config.Config, deps SubmissionDeps, log *logger.Logger) *submission.Orchestrator {
	repo := repository.New(deps.Pool)

	var images submission.ImageSource
	if deps.Images != nil {
		images = deps.Images
	}

	driver := submission.NewDriver(repo, images, classifier.DefaultRoutingTable(), Sentinel(cfg), log,
		submission.WithSettleDelay(cfg.GetSubmissionSettleDelay()),
	)

	opener := browser.NewOpener(browser.Options{
		FormURL:      cfg.GetSubmissionFormURL(),
		Headless:     cfg.GetChromeHeadless(),
		ExecPath:     cfg.GetChromePath(),
		FieldTimeout: cfg.GetSubmissionFieldTimeout(),
	}, log)

	runOpts := submission.RunOptions{
		MaxRetries:      cfg.GetSubmissionMaxRetries(),
		RetryBackoff:    cfg.GetSubmissionRetryBackoff(),
		ReportDelay:     cfg.GetSubmissionReportDelay(),
		FailureCooldown: cfg.GetSubmissionFailureCooldown(),
		LockTTL:         cfg.GetSubmissionRunLockTTL(),
	}

	opts := []submission.OrchestratorOption{
		submission.WithRecorder(runlog.New(deps.Pool)),
		submission.WithBus(deps.Bus),
	}
	if deps.Redis != nil {
		opts = append(opts, submission.WithRunLock(redislock.New(deps.Redis)))
	}

	return submission.NewOrchestrator(repo, driver, opener, runOpts, log, opts...)
}
