package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicfix_backend/internal/classifier"
	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/internal/reports/reportstest"
	"civicfix_backend/internal/reports/service"
	"civicfix_backend/internal/reports/transport"
	"civicfix_backend/platform/logger"
	"civicfix_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newTestEngine(t *testing.T, maxUpload int64) (*gin.Engine, *reportstest.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := reportstest.New()
	svc := service.New(store, nil, nil, classifier.DefaultRoutingTable(), nil, nil,
		service.Options{Sentinel: domain.SentinelIdentity{Name: "CivicFix", Surname: "Support", Email: "support@civicfix.org"}},
		logger.Discard())
	h := New(svc, validator.New(), maxUpload)

	engine := gin.New()
	engine.POST("/reports", h.Create)
	engine.GET("/reports", h.List)
	engine.GET("/reports/:id", h.Get)
	engine.GET("/map-data", h.MapData)
	engine.GET("/categories", h.Categories)
	return engine, store
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func contactFields() map[string]string {
	return map[string]string{
		"name":        "Ravi",
		"surname":     "Kumar",
		"email":       "ravi@example.com",
		"mobile":      "9123456789",
		"category":    "sewer",
		"description": "Overflowing drain",
	}
}

func TestCreateMultipart(t *testing.T) {
	engine, store := newTestEngine(t, 1<<20)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range contactFields() {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(pngBytes(t))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/reports", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp transport.CreateReportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Category != "sewer" || store.Get(resp.ID).Description != "Overflowing drain" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreateJSONWithNumericCoordinates(t *testing.T) {
	engine, store := newTestEngine(t, 1<<20)

	payload := map[string]any{
		"latitude":    23.2599,
		"longitude":   "77.4126",
		"imageBase64": base64.StdEncoding.EncodeToString(pngBytes(t)),
		"blockName":   "Ward 12",
		"areaType":    "Rural",
	}
	for k, v := range contactFields() {
		payload[k] = v
	}
	raw, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/reports", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp transport.CreateReportResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	loc := store.Get(resp.ID).Location
	if loc == nil || loc.Latitude != 23.2599 || loc.Longitude != 77.4126 {
		t.Fatalf("expected parsed location, got %+v", loc)
	}
	if c := store.Get(resp.ID).Contact; c.BlockName != "Ward 12" || c.AreaType != "rural" {
		t.Fatalf("expected camelCase fields to bind, got %+v", c)
	}
}

func TestCreateMissingImage(t *testing.T) {
	engine, _ := newTestEngine(t, 1<<20)

	raw, _ := json.Marshal(contactFields())
	req := httptest.NewRequest(http.MethodPost, "/reports", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetInvalidID(t *testing.T) {
	engine, _ := newTestEngine(t, 0)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	engine, _ := newTestEngine(t, 0)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports?status=pending", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t, 0)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))

	var body struct {
		Categories []transport.CategoryResponse `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || len(body.Categories) != 10 {
		t.Fatalf("expected 10 categories, got %d (status %d)", len(body.Categories), rec.Code)
	}
}

func TestListFiltersAndSortParams(t *testing.T) {
	engine, store := newTestEngine(t, 0)
	older := domain.Report{
		ID: uuid.New(), Category: "pothole", Priority: domain.PriorityHigh, Status: domain.StatusReady,
		Contact: domain.Contact{District: "Indore"}, CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := older
	newer.ID = uuid.New()
	newer.Priority = domain.PriorityLow
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	store.Put(older)
	store.Put(newer)
	store.Put(domain.Report{ID: uuid.New(), Category: "pothole", Contact: domain.Contact{District: "Bhopal"}})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports?district=Indore&sortBy=createdAt&sortOrder=asc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp transport.ListReportsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || resp.Items[0].ID != older.ID || resp.Items[1].ID != newer.ID {
		t.Fatalf("expected Indore reports oldest first, got %+v", resp.Items)
	}

	for _, query := range []string{"sortBy=upvotes", "sortOrder=sideways", "priority=critical"} {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports?"+query, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rec.Code)
		}
	}
}

func TestMapDataEndpoint(t *testing.T) {
	engine, store := newTestEngine(t, 0)
	located := domain.Report{
		ID: uuid.New(), Category: "garbage", Status: domain.StatusReady, Description: "Overflowing bin",
		Location: &domain.Location{Latitude: 23.25, Longitude: 77.41},
	}
	store.Put(located)
	store.Put(domain.Report{ID: uuid.New(), Category: "garbage", Status: domain.StatusReady})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/map-data?category=all", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp transport.MapDataResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Markers[0].ID != located.ID || resp.Markers[0].Latitude != 23.25 {
		t.Fatalf("expected one located marker, got %+v", resp.Markers)
	}

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/map-data?status=pending", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}
