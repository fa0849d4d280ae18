package submission

import (
	apphttp "civicfix_backend/internal/http"
	"civicfix_backend/platform/validator"
)

// Module represents the submission domain module
type Module struct {
	handler *Handler
}

// NewModule wires the admin routes for submission runs.
func NewModule(orch *Orchestrator, queue RunQueue, runs RunLister, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(orch, queue, runs, val)}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "submission"
}

// RegisterRoutes registers the module's routes under /api/v1/admin/submission-runs
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/submission-runs"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
