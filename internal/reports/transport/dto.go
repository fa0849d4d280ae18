package transport

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Coordinate is a latitude or longitude as sent by clients. Form posts carry
// text and JSON bodies may carry a number, a string or null.
type Coordinate string

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Coordinate(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = Coordinate(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Request DTOs

// CreateReportRequest is the intake payload, posted as multipart form or JSON.
type CreateReportRequest struct {
	Name        string     `json:"name" form:"name" validate:"max=100"`
	Surname     string     `json:"surname" form:"surname" validate:"max=100"`
	Email       string     `json:"email" form:"email" validate:"max=254"`
	Mobile      string     `json:"mobile" form:"mobile" validate:"max=20"`
	Gender      string     `json:"gender" form:"gender" validate:"max=20"`
	District    string     `json:"district" form:"district" validate:"max=100"`
	BlockName   string     `json:"blockName" form:"blockName" validate:"max=100"`
	Address     string     `json:"address" form:"address" validate:"max=500"`
	AreaType    string     `json:"areaType" form:"areaType" validate:"max=20"`
	Category    string     `json:"category" form:"category" validate:"max=50"`
	Description string     `json:"description" form:"description" validate:"max=2000"`
	Latitude    Coordinate `json:"latitude" form:"latitude"`
	Longitude   Coordinate `json:"longitude" form:"longitude"`
	ImageBase64 string     `json:"imageBase64" form:"imageBase64"`
}

// ListReportsRequest filters the public report list. "all" matches
// everything, as an empty value does.
type ListReportsRequest struct {
	Category         string `form:"category" validate:"omitempty,max=50"`
	District         string `form:"district" validate:"omitempty,max=100"`
	Status           string `form:"status" validate:"omitempty,oneof=all unsubmitted ready submitted failed"`
	Priority         string `form:"priority" validate:"omitempty,oneof=all low medium high urgent"`
	IncludeAnonymous *bool  `form:"includeAnonymous"`
	SortBy           string `form:"sortBy" validate:"omitempty,oneof=createdAt submittedAt priority status"`
	SortOrder        string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Limit            int    `form:"limit" validate:"omitempty,min=1,max=100"`
	Offset           int    `form:"offset" validate:"omitempty,min=0"`
}

// MapDataRequest filters the map markers.
type MapDataRequest struct {
	Category         string `form:"category" validate:"omitempty,max=50"`
	District         string `form:"district" validate:"omitempty,max=100"`
	Status           string `form:"status" validate:"omitempty,oneof=all unsubmitted ready submitted failed"`
	IncludeAnonymous *bool  `form:"includeAnonymous"`
}

// Response DTOs

// EscalationResponse tells the reporter what happened after intake.
type EscalationResponse struct {
	Queued    bool `json:"queued"`
	Ran       bool `json:"ran"`
	Escalated bool `json:"escalated"`
}

type CreateReportResponse struct {
	ID                uuid.UUID          `json:"id"`
	Message           string             `json:"message"`
	IsAnonymous       bool               `json:"isAnonymous"`
	PredictedCategory *string            `json:"predictedCategory"`
	Confidence        *float64           `json:"confidence,omitempty"`
	Category          string             `json:"category"`
	Department        string             `json:"department"`
	Priority          string             `json:"priority"`
	Escalation        EscalationResponse `json:"escalation"`
}

type ContactResponse struct {
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Email     string `json:"email"`
	Mobile    string `json:"mobile"`
	Gender    string `json:"gender,omitempty"`
	District  string `json:"district,omitempty"`
	BlockName string `json:"blockName,omitempty"`
	Address   string `json:"address,omitempty"`
	AreaType  string `json:"areaType,omitempty"`
}

type ReportResponse struct {
	ID                uuid.UUID        `json:"id"`
	Category          string           `json:"category"`
	PredictedCategory *string          `json:"predictedCategory,omitempty"`
	Confidence        *float64         `json:"confidence,omitempty"`
	Department        string           `json:"department"`
	Priority          string           `json:"priority"`
	Status            string           `json:"status"`
	Description       string           `json:"description"`
	Latitude          *float64         `json:"latitude"`
	Longitude         *float64         `json:"longitude"`
	District          string           `json:"district,omitempty"`
	IsAnonymous       bool             `json:"isAnonymous"`
	Contact           *ContactResponse `json:"contact,omitempty"`
	ImageURL          string           `json:"imageUrl,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	ReadyAt           *time.Time       `json:"readyAt,omitempty"`
	SubmittedAt       *time.Time       `json:"submittedAt,omitempty"`
	SubmissionMethod  *string          `json:"submissionMethod,omitempty"`
}

type ListReportsResponse struct {
	Items   []ReportResponse `json:"items"`
	Count   int              `json:"count"`
	Total   int              `json:"total"`
	HasMore bool             `json:"hasMore"`
}

// MapMarker is one located report on the map.
type MapMarker struct {
	ID          uuid.UUID `json:"id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	Address     string    `json:"address,omitempty"`
	IsAnonymous bool      `json:"isAnonymous"`
	CreatedAt   time.Time `json:"createdAt"`
}

type MapDataResponse struct {
	Markers []MapMarker `json:"markers"`
	Count   int         `json:"count"`
}

type CategoryResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Priority   string `json:"priority"`
}
