// Package service implements report intake and reads.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"civicfix_backend/internal/classifier"
	"civicfix_backend/internal/escalation"
	"civicfix_backend/internal/events"
	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/internal/reports/imaging"
	"civicfix_backend/internal/reports/repository"
	"civicfix_backend/internal/reports/transport"
	"civicfix_backend/platform/apperr"
	"civicfix_backend/platform/logger"
	"civicfix_backend/platform/phone"
	"civicfix_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	defaultDescription = "Issue detected automatically from image"
	defaultAreaType    = "urban"
	listPreviewLength  = 50
	defaultListLimit   = 50
	mapMarkerLimit     = 1000
	mapPreviewLength   = 100
	anonymousPreview   = "... (Anonymous Report)"

	msgAnonymousCreated = "Anonymous report submitted successfully on behalf of CivicFix community"
	msgCreated          = "Report submitted successfully"
)

// Masked contact shown on anonymous report details.
const (
	maskedName    = "CivicFix Community"
	maskedSurname = "Report"
	maskedEmail   = "community@civicfix.org"
	maskedMobile  = "****-****-**"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Repository is the report persistence intake and reads need.
type Repository interface {
	Create(ctx context.Context, report *domain.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error)
	List(ctx context.Context, filter repository.ListFilter) ([]domain.Report, int, error)
	ListMapMarkers(ctx context.Context, filter repository.MapFilter) ([]domain.Report, error)
}

// ImageStore keeps processed report photos.
type ImageStore interface {
	Save(ctx context.Context, fileName, contentType string, data []byte) (string, error)
	URL(ctx context.Context, key string) (string, error)
}

// PassTrigger starts clustering after a report is stored.
type PassTrigger interface {
	ReportCreated(ctx context.Context, reportID uuid.UUID, hasLocation bool) (escalation.TriggerResult, error)
}

// Options are the intake settings.
type Options struct {
	Sentinel     domain.SentinelIdentity
	EXIFLocation bool
}

// Service handles report intake and reads.
type Service struct {
	repo       Repository
	images     ImageStore
	classifier classifier.Classifier
	table      classifier.RoutingTable
	trigger    PassTrigger
	bus        events.Bus
	opts       Options
	title      cases.Caser
	log        *logger.Logger
	now        func() time.Time
}

// New creates a report service. images, cls, trigger and bus may be nil.
func New(repo Repository, images ImageStore, cls classifier.Classifier, table classifier.RoutingTable,
	trigger PassTrigger, bus events.Bus, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		repo:       repo,
		images:     images,
		classifier: cls,
		table:      table,
		trigger:    trigger,
		bus:        bus,
		opts:       opts,
		title:      cases.Title(language.Und),
		log:        log,
		now:        time.Now,
	}
}

// Create validates, classifies and stores a new report, then hands it to
// clustering. upload holds the multipart image bytes; when empty the request's
// base64 image is used.
func (s *Service) Create(ctx context.Context, userID *uuid.UUID, req transport.CreateReportRequest, upload []byte) (transport.CreateReportResponse, error) {
	log := s.log.WithContext(ctx)

	if err := requireFields(req); err != nil {
		return transport.CreateReportResponse{}, err
	}

	anonymous := s.opts.Sentinel.Matches(req.Name, req.Surname, req.Email)
	mobile := strings.TrimSpace(req.Mobile)
	if !anonymous {
		if !emailPattern.MatchString(req.Email) {
			return transport.CreateReportResponse{}, apperr.Validation("invalid email format")
		}
		normalized, ok := phone.NormalizeMobile(req.Mobile)
		if !ok {
			return transport.CreateReportResponse{}, apperr.Validation("invalid mobile number format")
		}
		mobile = normalized
	}

	raw, err := imageBytes(upload, req.ImageBase64)
	if err != nil {
		return transport.CreateReportResponse{}, err
	}
	processed, err := imaging.Process(raw)
	if err != nil {
		log.Warn("report image rejected", "error", err)
		return transport.CreateReportResponse{}, apperr.Validation("invalid image file or image processing failed")
	}

	id := uuid.New()
	var imageKey *string
	if s.images != nil {
		key, err := s.images.Save(ctx, id.String()+".jpg", imaging.ContentType, processed.Data)
		if err != nil {
			return transport.CreateReportResponse{}, fmt.Errorf("store report image: %w", err)
		}
		imageKey = &key
	}

	var predicted *string
	var confidence *float64
	if s.classifier != nil {
		p := classifier.Predict(ctx, s.classifier, processed.Data, imaging.ContentType, s.log)
		predicted = &p.Label
		confidence = &p.Confidence
	}
	category := finalCategory(predicted, req.Category)
	route := s.table.Route(category)

	location := parseLocation(req.Latitude, req.Longitude)
	if location == nil && s.opts.EXIFLocation && processed.GPS != nil {
		location = &domain.Location{Latitude: processed.GPS.Latitude, Longitude: processed.GPS.Longitude}
	}

	now := s.now().UTC()
	report := &domain.Report{
		ID:                id,
		UserID:            userID,
		Category:          category,
		PredictedCategory: predicted,
		Confidence:        confidence,
		Department:        route.Department,
		Priority:          route.Priority,
		Location:          location,
		IsAnonymous:       anonymous,
		Contact:           s.normalizeContact(req, mobile),
		Description:       description(req.Description),
		ImageKey:          imageKey,
		Status:            domain.StatusUnsubmitted,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, report); err != nil {
		return transport.CreateReportResponse{}, err
	}
	log.Info("report created", "report_id", id.String(), "category", category, "anonymous", anonymous, "located", location != nil)

	if s.bus != nil {
		s.bus.Publish(ctx, events.ReportCreated{
			BaseEvent:   events.NewBaseEvent(),
			ReportID:    id,
			Category:    category,
			HasLocation: location != nil,
			Anonymous:   anonymous,
		})
	}

	resp := transport.CreateReportResponse{
		ID:                id,
		Message:           msgCreated,
		IsAnonymous:       anonymous,
		PredictedCategory: predicted,
		Confidence:        confidence,
		Category:          category,
		Department:        route.Department,
		Priority:          string(route.Priority),
	}
	if anonymous {
		resp.Message = msgAnonymousCreated
	}

	if s.trigger != nil {
		// The report is stored either way; a failed hand-off is retried by
		// the periodic pass.
		result, err := s.trigger.ReportCreated(ctx, id, location != nil)
		if err != nil {
			log.Error("failed to trigger clustering pass", "report_id", id.String(), "error", err)
		}
		resp.Escalation = transport.EscalationResponse{Queued: result.Queued, Ran: result.Ran, Escalated: result.Escalated}
	}

	return resp, nil
}

// Get returns one report. Anonymous reports show a masked contact.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.ReportResponse, error) {
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ReportResponse{}, err
	}

	resp := toReportResponse(*report)
	if report.IsAnonymous {
		resp.Contact = &transport.ContactResponse{
			Name:     maskedName,
			Surname:  maskedSurname,
			Email:    maskedEmail,
			Mobile:   maskedMobile,
			District: report.Contact.District,
		}
	} else {
		resp.Contact = toContactResponse(report.Contact)
	}

	if s.images != nil && report.ImageKey != nil {
		url, err := s.images.URL(ctx, *report.ImageKey)
		if err != nil {
			s.log.WithContext(ctx).Warn("failed to sign report image url", "report_id", id.String(), "error", err)
		} else {
			resp.ImageURL = url
		}
	}
	return resp, nil
}

// List returns reports newest first. List views never carry contact data and
// anonymous descriptions are shortened.
func (s *Service) List(ctx context.Context, req transport.ListReportsRequest) (transport.ListReportsResponse, error) {
	filter := repository.ListFilter{
		Category:         anyValue(req.Category),
		District:         anyValue(req.District),
		Status:           domain.Status(anyValue(req.Status)),
		Priority:         domain.Priority(anyValue(req.Priority)),
		IncludeAnonymous: req.IncludeAnonymous == nil || *req.IncludeAnonymous,
		SortBy:           req.SortBy,
		Ascending:        req.SortOrder == "asc",
		Limit:            req.Limit,
		Offset:           req.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}

	reports, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return transport.ListReportsResponse{}, err
	}

	items := make([]transport.ReportResponse, 0, len(reports))
	for _, r := range reports {
		item := toReportResponse(r)
		if r.IsAnonymous {
			item.Description = truncate(item.Description, listPreviewLength)
		}
		items = append(items, item)
	}

	return transport.ListReportsResponse{
		Items:   items,
		Count:   len(items),
		Total:   total,
		HasMore: filter.Offset+len(items) < total,
	}, nil
}

// MapData returns up to 1000 located reports as map markers, newest first.
// Marker descriptions are shortened; anonymous ones more so, and anonymous
// markers carry no address.
func (s *Service) MapData(ctx context.Context, req transport.MapDataRequest) (transport.MapDataResponse, error) {
	reports, err := s.repo.ListMapMarkers(ctx, repository.MapFilter{
		Category:         anyValue(req.Category),
		District:         anyValue(req.District),
		Status:           domain.Status(anyValue(req.Status)),
		IncludeAnonymous: req.IncludeAnonymous == nil || *req.IncludeAnonymous,
		Limit:            mapMarkerLimit,
	})
	if err != nil {
		return transport.MapDataResponse{}, err
	}

	markers := make([]transport.MapMarker, 0, len(reports))
	for _, r := range reports {
		if r.Location == nil {
			continue
		}
		m := transport.MapMarker{
			ID:          r.ID,
			Latitude:    r.Location.Latitude,
			Longitude:   r.Location.Longitude,
			Category:    r.Category,
			Description: markerDescription(r),
			Status:      string(r.Status),
			Priority:    string(r.Priority),
			IsAnonymous: r.IsAnonymous,
			CreatedAt:   r.CreatedAt,
		}
		if m.Priority == "" {
			m.Priority = string(domain.PriorityMedium)
		}
		if !r.IsAnonymous {
			m.Address = r.Contact.Address
		}
		markers = append(markers, m)
	}
	return transport.MapDataResponse{Markers: markers, Count: len(markers)}, nil
}

func markerDescription(r domain.Report) string {
	if r.IsAnonymous && utf8.RuneCountInString(r.Description) > listPreviewLength {
		return string([]rune(r.Description)[:listPreviewLength]) + anonymousPreview
	}
	return truncate(r.Description, mapPreviewLength)
}

// anyValue treats the "all" filter value as no filter.
func anyValue(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}

// Categories lists every routable category.
func (s *Service) Categories() []transport.CategoryResponse {
	cats := s.table.Categories()
	out := make([]transport.CategoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, transport.CategoryResponse{
			ID:         c.ID,
			Name:       c.Name,
			Department: c.Department,
			Priority:   string(c.Priority),
		})
	}
	return out
}

func requireFields(req transport.CreateReportRequest) error {
	fields := []struct{ name, value string }{
		{"name", req.Name},
		{"surname", req.Surname},
		{"email", req.Email},
		{"mobile", req.Mobile},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return apperr.Validation(f.name + " is required").WithDetails(map[string]string{f.name: "required"})
		}
	}
	return nil
}

// imageBytes picks the uploaded file, else decodes a base64 image with an
// optional data URL header.
func imageBytes(upload []byte, encoded string) ([]byte, error) {
	if len(upload) > 0 {
		return upload, nil
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, apperr.Validation("image is required for automatic issue detection")
	}
	if _, payload, ok := strings.Cut(encoded, ","); ok {
		encoded = payload
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperr.Validation("invalid image data or image processing failed")
	}
	return data, nil
}

func finalCategory(predicted *string, manual string) string {
	if predicted != nil && *predicted != "" {
		return *predicted
	}
	if manual = strings.TrimSpace(manual); manual != "" {
		return manual
	}
	return classifier.LabelOther
}

// parseLocation returns nil unless both coordinates are present. Empty, "0",
// "null" and unparsable values count as absent.
func parseLocation(lat, lon transport.Coordinate) *domain.Location {
	la, okLat := parseCoordinate(lat)
	lo, okLon := parseCoordinate(lon)
	if !okLat || !okLon {
		return nil
	}
	return &domain.Location{Latitude: la, Longitude: lo}
}

func parseCoordinate(c transport.Coordinate) (float64, bool) {
	v := strings.TrimSpace(string(c))
	switch v {
	case "", "0", "null":
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (s *Service) normalizeContact(req transport.CreateReportRequest, mobile string) domain.Contact {
	areaType := strings.ToLower(strings.TrimSpace(req.AreaType))
	if areaType == "" {
		areaType = defaultAreaType
	}
	return domain.Contact{
		Name:      s.title.String(strings.TrimSpace(req.Name)),
		Surname:   s.title.String(strings.TrimSpace(req.Surname)),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Mobile:    mobile,
		Gender:    strings.ToLower(strings.TrimSpace(req.Gender)),
		District:  s.title.String(strings.TrimSpace(req.District)),
		BlockName: sanitize.Line(req.BlockName),
		Address:   sanitize.Line(req.Address),
		AreaType:  areaType,
	}
}

func description(in string) string {
	if d := sanitize.Text(in); d != "" {
		return d
	}
	return defaultDescription
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func toReportResponse(r domain.Report) transport.ReportResponse {
	resp := transport.ReportResponse{
		ID:                r.ID,
		Category:          r.Category,
		PredictedCategory: r.PredictedCategory,
		Confidence:        r.Confidence,
		Department:        r.Department,
		Priority:          string(r.Priority),
		Status:            string(r.Status),
		Description:       r.Description,
		District:          r.Contact.District,
		IsAnonymous:       r.IsAnonymous,
		CreatedAt:         r.CreatedAt,
		ReadyAt:           r.ReadyAt,
		SubmittedAt:       r.SubmittedAt,
		SubmissionMethod:  r.SubmissionMethod,
	}
	if r.Location != nil {
		lat, lon := r.Location.Latitude, r.Location.Longitude
		resp.Latitude = &lat
		resp.Longitude = &lon
	}
	return resp
}

func toContactResponse(c domain.Contact) *transport.ContactResponse {
	return &transport.ContactResponse{
		Name:      c.Name,
		Surname:   c.Surname,
		Email:     c.Email,
		Mobile:    c.Mobile,
		Gender:    c.Gender,
		District:  c.District,
		BlockName: c.BlockName,
		Address:   c.Address,
		AreaType:  c.AreaType,
	}
}
