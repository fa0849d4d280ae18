package escalation

import (
	"context"

	"civicfix_backend/platform/logger"

	"github.com/google/uuid"
)

// PassQueue hands a clustering pass to background workers.
type PassQueue interface {
	EnqueueClusterPass(ctx context.Context, reason string) error
}

// TriggerResult tells the intake path what happened after a new report.
type TriggerResult struct {
	// Queued is set when a background pass was enqueued.
	Queued bool
	// Ran is set when the pass ran inline; Escalated then carries its outcome.
	Ran       bool
	Escalated bool
}

// PassTrigger schedules a clustering pass for each new report. Without a
// queue the pass runs inline.
type PassTrigger struct {
	svc   *Service
	queue PassQueue
	log   *logger.Logger
}

// NewPassTrigger creates a trigger. queue may be nil.
func NewPassTrigger(svc *Service, queue PassQueue, log *logger.Logger) *PassTrigger {
	if log == nil {
		log = logger.Discard()
	}
	return &PassTrigger{svc: svc, queue: queue, log: log}
}

// ReportCreated triggers a pass for a newly stored report.
func (t *PassTrigger) ReportCreated(ctx context.Context, reportID uuid.UUID, hasLocation bool) (TriggerResult, error) {
	// a report without coordinates cannot form or join a cluster
	if !hasLocation {
		return TriggerResult{}, nil
	}

	if t.queue != nil {
		if err := t.queue.EnqueueClusterPass(ctx, "report:"+reportID.String()); err != nil {
			return TriggerResult{}, err
		}
		return TriggerResult{Queued: true}, nil
	}

	result, err := t.svc.RunPass(ctx)
	if err != nil {
		return TriggerResult{}, err
	}
	return TriggerResult{Ran: true, Escalated: result.Escalated()}, nil
}
