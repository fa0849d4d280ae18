// Package handler exposes report intake and reads over HTTP.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"civicfix_backend/internal/reports/service"
	"civicfix_backend/internal/reports/transport"
	"civicfix_backend/platform/httpkit"
	"civicfix_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid report id"
	msgImageTooLarge    = "image exceeds the maximum upload size"

	imageFormField = "image"
	// multipartOverhead leaves room for the text fields next to the image.
	multipartOverhead = 1 << 20
)

// Handler handles report HTTP requests
type Handler struct {
	svc       *service.Service
	val       *validator.Validator
	maxUpload int64
}

// New creates a new reports handler. maxUpload caps the image size in bytes.
func New(svc *service.Service, val *validator.Validator, maxUpload int64) *Handler {
	return &Handler{svc: svc, val: val, maxUpload: maxUpload}
}

// Create handles POST /api/v1/reports with a multipart form or a JSON body.
func (h *Handler) Create(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
	}

	var (
		req    transport.CreateReportRequest
		upload []byte
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			h.bindError(c, err)
			return
		}
		data, ok := h.readImage(c)
		if !ok {
			return
		}
		upload = data
	} else if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	resp, err := h.svc.Create(c.Request.Context(), httpkit.GetIdentity(c).Reporter(), req, upload)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, resp)
}

// Get handles GET /api/v1/reports/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	resp, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// List handles GET /api/v1/reports
func (h *Handler) List(c *gin.Context) {
	var req transport.ListReportsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	resp, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// MapData handles GET /api/v1/map-data
func (h *Handler) MapData(c *gin.Context) {
	var req transport.MapDataRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	resp, err := h.svc.MapData(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// Categories handles GET /api/v1/categories
func (h *Handler) Categories(c *gin.Context) {
	httpkit.OK(c, gin.H{"categories": h.svc.Categories()})
}

// readImage returns the multipart image if one was sent.
func (h *Handler) readImage(c *gin.Context) ([]byte, bool) {
	header, err := c.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		h.bindError(c, err)
		return nil, false
	}
	if h.maxUpload > 0 && header.Size > h.maxUpload {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, msgImageTooLarge, nil)
		return nil, false
	}

	f, err := header.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return nil, false
	}
	return data, true
}

func (h *Handler) bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, msgImageTooLarge, nil)
		return
	}
	httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
}
