package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"civicfix_backend/internal/bootstrap"
	"civicfix_backend/internal/escalation"
	"civicfix_backend/internal/events"
	reportsrepo "civicfix_backend/internal/reports/repository"
	"civicfix_backend/internal/scheduler"
	"civicfix_backend/platform/config"
	"civicfix_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if cfg.GetRedisURL() == "" {
		panic("scheduler requires REDIS_URL")
	}
	if cfg.GetSubmissionFormURL() == "" {
		log.Warn("SUBMISSION_FORM_URL not set, submission runs will abort when reports are ready")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.ConnectDatabase(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	rdb, err := bootstrap.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	taskClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		panic("failed to initialize task client: " + err.Error())
	}
	defer func() { _ = taskClient.Close() }()

	images, err := bootstrap.NewImageBucket(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize report image storage", "error", err)
		panic("failed to initialize report image storage: " + err.Error())
	}

	clusterEngine, err := bootstrap.NewEscalationEngine(cfg)
	if err != nil {
		log.Error("invalid escalation thresholds", "error", err)
		panic("invalid escalation thresholds: " + err.Error())
	}

	clustering := escalation.NewService(reportsrepo.New(pool), clusterEngine, eventBus, log)
	orchestrator := bootstrap.NewSubmissionOrchestrator(cfg, bootstrap.SubmissionDeps{
		Pool:   pool,
		Images: images,
		Redis:  rdb,
		Bus:    eventBus,
	}, log)

	// ready clusters queue a submission run on this process's bus
	scheduler.SubscribeReadyClusters(eventBus, taskClient, log)

	worker, err := scheduler.NewWorker(cfg, clustering, orchestrator, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	sweep := scheduler.NewStaleFailureSweep(orchestrator, taskClient, log, cfg.GetStaleSweepInterval())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return periodic.Run(gctx) })
	g.Go(func() error {
		sweep.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("scheduler stopped", "error", err)
	}
	eventBus.Wait()
	log.Info("scheduler stopped")
}
