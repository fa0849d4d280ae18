package scheduler

import (
	"context"
	"fmt"
	"time"

	"civicfix_backend/platform/config"
	"civicfix_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues clustering passes and submission runs on their cron
// schedules. An empty schedule disables that entry.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})
	queue := queueName(cfg)

	if spec := cfg.GetClusterPassSchedule(); spec != "" {
		task, err := NewClusterPassTask(ClusterPassPayload{Reason: "schedule"})
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(spec, task, asynq.Queue(queue), asynq.Unique(clusterPassUniqueFor)); err != nil {
			return nil, fmt.Errorf("register cluster pass schedule %q: %w", spec, err)
		}
		log.Info("cluster pass scheduled", "schedule", spec)
	}

	if spec := cfg.GetSubmissionRunSchedule(); spec != "" {
		task, err := NewSubmissionRunTask(SubmissionRunPayload{Trigger: "schedule"})
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(spec, task, asynq.Queue(queue), asynq.Unique(submissionRunUniqueFor), asynq.MaxRetry(0)); err != nil {
			return nil, fmt.Errorf("register submission run schedule %q: %w", spec, err)
		}
		log.Info("submission run scheduled", "schedule", spec)
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) error {
	if p == nil || p.scheduler == nil {
		return nil
	}

	if err := p.scheduler.Start(); err != nil {
		return fmt.Errorf("start periodic scheduler: %w", err)
	}

	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}
