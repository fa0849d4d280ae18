package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicfix_backend/internal/bootstrap"
	"civicfix_backend/internal/classifier"
	"civicfix_backend/internal/escalation"
	"civicfix_backend/internal/events"
	apphttp "civicfix_backend/internal/http"
	"civicfix_backend/internal/http/router"
	"civicfix_backend/internal/reports"
	reportshandler "civicfix_backend/internal/reports/handler"
	reportsrepo "civicfix_backend/internal/reports/repository"
	reportsservice "civicfix_backend/internal/reports/service"
	"civicfix_backend/internal/scheduler"
	"civicfix_backend/internal/submission"
	"civicfix_backend/internal/submission/runlog"
	"civicfix_backend/platform/config"
	"civicfix_backend/platform/db"
	"civicfix_backend/platform/logger"
	"civicfix_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	pool, err := bootstrap.ConnectDatabase(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if err := bootstrap.MigrateDatabase(ctx, pool, log); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	rdb, err := bootstrap.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	taskClient, closeTaskClient := initTaskClient(cfg, log)
	if closeTaskClient != nil {
		defer closeTaskClient()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	images, err := bootstrap.NewImageBucket(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize report image storage", "error", err)
		panic("failed to initialize report image storage: " + err.Error())
	}

	routing := classifier.DefaultRoutingTable()
	cls, err := classifier.New(ctx, cfg, routing)
	if err != nil {
		log.Error("failed to initialize classifier", "error", err)
		panic("failed to initialize classifier: " + err.Error())
	}
	if cls == nil {
		log.Warn("image classification disabled, manual categories only")
	}

	clusterEngine, err := bootstrap.NewEscalationEngine(cfg)
	if err != nil {
		log.Error("invalid escalation thresholds", "error", err)
		panic("invalid escalation thresholds: " + err.Error())
	}

	// ========================================================================
	// Domain Modules
	// ========================================================================

	reportsRepo := reportsrepo.New(pool)

	var passQueue escalation.PassQueue
	var runQueue submission.RunQueue
	if taskClient != nil {
		passQueue = taskClient
		runQueue = taskClient
		scheduler.SubscribeReadyClusters(eventBus, taskClient, log)
	}

	escalationModule := escalation.NewModule(reportsRepo, clusterEngine, eventBus, passQueue, log)

	var imageStore reportsservice.ImageStore
	if images != nil {
		imageStore = images
	}
	reportsSvc := reportsservice.New(reportsRepo, imageStore, cls, routing,
		escalationModule.Trigger(), eventBus, reportsservice.Options{
			Sentinel:     bootstrap.Sentinel(cfg),
			EXIFLocation: cfg.GetIntakeEXIFLocation(),
		}, log)
	reportsModule := reports.NewModule(reportsSvc, reportshandler.New(reportsSvc, val, cfg.GetMinIOMaxFileSize()))

	orchestrator := bootstrap.NewSubmissionOrchestrator(cfg, bootstrap.SubmissionDeps{
		Pool:   pool,
		Images: images,
		Redis:  rdb,
		Bus:    eventBus,
	}, log)
	submissionModule := submission.NewModule(orchestrator, runQueue, runlog.New(pool), val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			reportsModule,
			escalationModule,
			submissionModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		waitForEvents(shutdownCtx, eventBus)
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initTaskClient returns nil when Redis is not configured; passes and runs
// then execute inline.
func initTaskClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("redis not configured, cluster passes run inline")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		panic("failed to initialize task client: " + err.Error())
	}

	return client, func() { _ = client.Close() }
}

// waitForEvents lets in-flight async handlers finish until ctx expires.
func waitForEvents(ctx context.Context, bus *events.InMemoryBus) {
	done := make(chan struct{})
	go func() {
		bus.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
