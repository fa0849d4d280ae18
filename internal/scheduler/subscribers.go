package scheduler

import (
	"context"

	"civicfix_backend/internal/events"
	"civicfix_backend/platform/logger"
)

// RunEnqueuer queues a submission run.
type RunEnqueuer interface {
	EnqueueSubmissionRun(ctx context.Context, trigger string) error
}

// SubscribeReadyClusters queues a submission run whenever a clustering pass
// flags reports ready.
func SubscribeReadyClusters(bus events.Bus, runs RunEnqueuer, log *logger.Logger) {
	if bus == nil || runs == nil {
		return
	}

	bus.Subscribe(events.ClustersMarkedReady{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.ClustersMarkedReady)
		if !ok {
			return nil
		}
		if err := runs.EnqueueSubmissionRun(ctx, "escalation"); err != nil {
			log.Warn("failed to enqueue submission run", "clusters", e.Clusters, "error", err)
			return err
		}
		log.Info("submission run enqueued", "clusters", e.Clusters, "reports", len(e.ReportIDs))
		return nil
	}))
}
