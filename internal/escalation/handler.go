package escalation

import (
	"net/http"

	"civicfix_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClusterResponse is one emitted cluster.
type ClusterResponse struct {
	Category string      `json:"category"`
	Seed     uuid.UUID   `json:"seed"`
	Members  []uuid.UUID `json:"members"`
}

// PassResponse is the response body for a manual clustering pass.
type PassResponse struct {
	Scanned     int               `json:"scanned"`
	MarkedReady int               `json:"markedReady"`
	Escalated   bool              `json:"escalated"`
	Clusters    []ClusterResponse `json:"clusters"`
}

// Handler exposes clustering to operators.
type Handler struct {
	svc *Service
}

// NewHandler creates a new escalation handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the escalation routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/passes", h.RunPass)
}

// RunPass handles POST /api/v1/admin/escalation/passes
func (h *Handler) RunPass(c *gin.Context) {
	result, err := h.svc.RunPass(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusOK, toPassResponse(result))
}

func toPassResponse(result PassResult) PassResponse {
	resp := PassResponse{
		Scanned:     result.Scanned,
		MarkedReady: result.MarkedReady,
		Escalated:   result.Escalated(),
		Clusters:    make([]ClusterResponse, 0, len(result.Clusters)),
	}
	for _, c := range result.Clusters {
		resp.Clusters = append(resp.Clusters, ClusterResponse{
			Category: c.Category,
			Seed:     c.Seed,
			Members:  c.Members,
		})
	}
	return resp
}
