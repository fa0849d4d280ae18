// Command submission-run sweeps stale failures and files every ready report
// once, in-process, then exits.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"civicfix_backend/internal/bootstrap"
	"civicfix_backend/internal/events"
	"civicfix_backend/internal/submission"
	"civicfix_backend/platform/config"
	"civicfix_backend/platform/logger"
)

func main() {
	trigger := flag.String("trigger", "manual", "trigger recorded on the run summary")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.ConnectDatabase(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	rdb, err := bootstrap.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	} else {
		log.Warn("redis not configured, run is not exclusive across processes")
	}

	images, err := bootstrap.NewImageBucket(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize report image storage", "error", err)
		panic("failed to initialize report image storage: " + err.Error())
	}

	orchestrator := bootstrap.NewSubmissionOrchestrator(cfg, bootstrap.SubmissionDeps{
		Pool:   pool,
		Images: images,
		Redis:  rdb,
		Bus:    events.NewInMemoryBus(log),
	}, log)

	stats, err := orchestrator.Run(ctx, *trigger)
	switch {
	case errors.Is(err, submission.ErrRunInProgress):
		log.Info("another submission run is in progress, nothing to do")
	case err != nil:
		log.Error("submission run failed", "error", err, "runId", stats.RunID)
		panic("submission run failed: " + err.Error())
	default:
		log.Info("submission run finished",
			"runId", stats.RunID,
			"attempted", stats.Attempted,
			"succeeded", stats.Succeeded,
			"failed", stats.Failed,
		)
	}
}
