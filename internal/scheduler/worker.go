package scheduler

import (
	"context"
	"errors"
	"fmt"

	"civicfix_backend/internal/escalation"
	"civicfix_backend/internal/submission"
	"civicfix_backend/platform/config"
	"civicfix_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ClusterPasser runs one clustering pass.
type ClusterPasser interface {
	RunPass(ctx context.Context) (escalation.PassResult, error)
}

// SubmissionRunner runs one submission batch.
type SubmissionRunner interface {
	Run(ctx context.Context, trigger string) (submission.RunStats, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, passes ClusterPasser, runs SubmissionRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	return &Worker{
		server: server,
		mux:    newServeMux(passes, runs, log),
		log:    log,
	}, nil
}

func newServeMux(passes ClusterPasser, runs SubmissionRunner, log *logger.Logger) *asynq.ServeMux {
	h := &taskHandlers{passes: passes, runs: runs, log: log}
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskClusterPass, h.handleClusterPass)
	mux.HandleFunc(TaskSubmissionRun, h.handleSubmissionRun)
	return mux
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start scheduler worker: %w", err)
	}

	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

type taskHandlers struct {
	passes ClusterPasser
	runs   SubmissionRunner
	log    *logger.Logger
}

func (h *taskHandlers) handleClusterPass(ctx context.Context, task *asynq.Task) error {
	if h.passes == nil {
		return nil
	}

	payload, err := ParseClusterPassPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	result, err := h.passes.RunPass(ctx)
	if err != nil {
		return err
	}

	h.log.Info("clustering pass finished",
		"reason", payload.Reason,
		"scanned", result.Scanned,
		"clusters", len(result.Clusters),
		"markedReady", result.MarkedReady,
	)
	return nil
}

func (h *taskHandlers) handleSubmissionRun(ctx context.Context, task *asynq.Task) error {
	if h.runs == nil {
		return nil
	}

	payload, err := ParseSubmissionRunPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	_, err = h.runs.Run(ctx, payload.Trigger)
	if errors.Is(err, submission.ErrRunInProgress) {
		h.log.Info("submission run skipped, another run holds the lock", "trigger", payload.Trigger)
		return nil
	}
	return err
}
