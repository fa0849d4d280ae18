package submission

import (
	"context"
	"errors"
	"net/http"

	"civicfix_backend/platform/apperr"
	"civicfix_backend/platform/httpkit"
	"civicfix_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	defaultRunPageSize  = 20
)

// RunQueue hands a submission run to the background worker.
type RunQueue interface {
	EnqueueSubmissionRun(ctx context.Context, trigger string) error
}

// RunLister reads persisted run summaries.
type RunLister interface {
	List(ctx context.Context, limit, offset int) ([]RunStats, int, error)
}

// ListRunsRequest is the query for GET /submission-runs.
type ListRunsRequest struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ListRunsResponse is a page of run summaries.
type ListRunsResponse struct {
	Items    []RunStats `json:"items"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
}

// TriggerRunResponse is returned when a run is queued instead of run inline.
type TriggerRunResponse struct {
	Queued bool `json:"queued"`
}

// Handler exposes submission runs to operators.
type Handler struct {
	orch  *Orchestrator
	queue RunQueue
	runs  RunLister
	val   *validator.Validator
}

// NewHandler creates a submission handler. queue and runs may be nil.
func NewHandler(orch *Orchestrator, queue RunQueue, runs RunLister, val *validator.Validator) *Handler {
	return &Handler{orch: orch, queue: queue, runs: runs, val: val}
}

// RegisterRoutes registers the submission routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.TriggerRun)
	rg.GET("", h.ListRuns)
}

// TriggerRun handles POST /api/v1/admin/submission-runs. With a worker queue
// the run is enqueued; otherwise it runs in the request and returns its stats.
func (h *Handler) TriggerRun(c *gin.Context) {
	ctx := c.Request.Context()

	if h.queue != nil {
		if err := h.queue.EnqueueSubmissionRun(ctx, "admin"); err != nil {
			httpkit.HandleError(c, err)
			return
		}
		httpkit.JSON(c, http.StatusAccepted, TriggerRunResponse{Queued: true})
		return
	}

	if h.orch == nil {
		httpkit.HandleError(c, apperr.Unavailable("submission runs are not configured"))
		return
	}

	stats, err := h.orch.Run(ctx, "admin")
	if errors.Is(err, ErrRunInProgress) {
		httpkit.HandleError(c, apperr.Conflict("a submission run is already in progress"))
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

// ListRuns handles GET /api/v1/admin/submission-runs
func (h *Handler) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	if h.runs == nil {
		httpkit.HandleError(c, apperr.Unavailable("run log is not configured"))
		return
	}

	page := max(req.Page, 1)
	size := req.PageSize
	if size == 0 {
		size = defaultRunPageSize
	}

	items, total, err := h.runs.List(c.Request.Context(), size, (page-1)*size)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, ListRunsResponse{Items: items, Total: total, Page: page, PageSize: size})
}
