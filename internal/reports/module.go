// Package reports provides the report intake bounded context module.
package reports

import (
	apphttp "civicfix_backend/internal/http"
	"civicfix_backend/internal/reports/handler"
	"civicfix_backend/internal/reports/service"
)

// Module is the reports bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wraps a report service with its HTTP handler.
func NewModule(svc *service.Service, h *handler.Handler) *Module {
	return &Module{handler: h, service: svc}
}

// Service returns the report service.
func (m *Module) Service() *service.Service { return m.service }

// Name returns the module identifier.
func (m *Module) Name() string {
	return "reports"
}

// RegisterRoutes mounts the public report routes under /api/v1.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	reports := ctx.V1.Group("/reports")
	reports.POST("", ctx.IntakeRateLimiter.RateLimit(), ctx.OptionalAuth, m.handler.Create)
	reports.GET("", m.handler.List)
	reports.GET("/:id", m.handler.Get)

	ctx.V1.GET("/map-data", m.handler.MapData)
	ctx.V1.GET("/categories", m.handler.Categories)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
