// Package domain holds the report entity and its lifecycle rules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the submission lifecycle state of a report.
type Status string

const (
	StatusUnsubmitted Status = "unsubmitted"
	StatusReady       Status = "ready"
	StatusSubmitted   Status = "submitted"
	StatusFailed      Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnsubmitted, StatusReady, StatusSubmitted, StatusFailed:
		return true
	}
	return false
}

// Submittable reports whether the external channel may be driven for a
// report in this status. Failed reports stay submittable so attempt-level
// retries within a run can proceed.
func (s Status) Submittable() bool {
	return s == StatusReady || s == StatusFailed
}

// Priority is the urgency derived from a report's category.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities from low (1) to urgent (4). Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

// Location is a WGS84 coordinate in decimal degrees.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Contact is the reporter's contact data as stored.
type Contact struct {
	Name      string
	Surname   string
	Email     string
	Mobile    string
	Gender    string
	District  string
	BlockName string
	Address   string
	AreaType  string
}

// Report is a citizen-submitted civic issue.
type Report struct {
	ID     uuid.UUID
	UserID *uuid.UUID

	Category          string
	PredictedCategory *string
	Confidence        *float64
	Department        string
	Priority          Priority

	// Location is nil when the reporter supplied no coordinates.
	Location    *Location
	IsAnonymous bool
	Contact     Contact
	Description string
	ImageKey    *string

	Status                       Status
	ReadyAt                      *time.Time
	SubmittedAt                  *time.Time
	SubmissionMethod             *string
	AnonymousSubmissionConfirmed bool
	SubmissionError              *string
	LastAttempt                  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasLocation reports whether the report can take part in spatial clustering.
func (r *Report) HasLocation() bool {
	return r.Location != nil
}
