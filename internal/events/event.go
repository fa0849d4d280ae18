// Package events defines the CivicFix domain events. The bus itself lives in
// platform/events and is re-exported here so modules import one package.
package events

import (
	"time"

	"civicfix_backend/platform/events"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Report Domain Events
// =============================================================================

// ReportCreated is published after a new report has been stored as unsubmitted.
type ReportCreated struct {
	BaseEvent
	ReportID    uuid.UUID `json:"reportId"`
	Category    string    `json:"category"`
	HasLocation bool      `json:"hasLocation"`
	Anonymous   bool      `json:"anonymous"`
}

func (e ReportCreated) EventName() string { return "reports.report.created" }

// =============================================================================
// Escalation Domain Events
// =============================================================================

// ClustersMarkedReady is published when a clustering pass flags reports ready.
type ClustersMarkedReady struct {
	BaseEvent
	Clusters  int         `json:"clusters"`
	ReportIDs []uuid.UUID `json:"reportIds"`
}

func (e ClustersMarkedReady) EventName() string { return "escalation.clusters.marked_ready" }

// =============================================================================
// Submission Domain Events
// =============================================================================

// SubmissionRunFinished is published once a submission run has a final summary.
type SubmissionRunFinished struct {
	BaseEvent
	RunID      uuid.UUID `json:"runId"`
	Status     string    `json:"status"`
	Attempted  int       `json:"attempted"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	FinishedAt time.Time `json:"finishedAt"`
}

func (e SubmissionRunFinished) EventName() string { return "submission.run.finished" }
