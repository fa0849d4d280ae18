package escalation

import (
	"civicfix_backend/internal/events"
	apphttp "civicfix_backend/internal/http"
	"civicfix_backend/platform/logger"
)

// Module represents the escalation domain module
type Module struct {
	handler *Handler
	service *Service
	trigger *PassTrigger
}

// NewModule wires the clustering service, its intake trigger and admin handler.
// queue may be nil, in which case passes triggered by intake run inline.
func NewModule(store Store, engine *Engine, bus events.Bus, queue PassQueue, log *logger.Logger) *Module {
	svc := NewService(store, engine, bus, log)
	return &Module{
		handler: NewHandler(svc),
		service: svc,
		trigger: NewPassTrigger(svc, queue, log),
	}
}

// Service returns the clustering service.
func (m *Module) Service() *Service { return m.service }

// Trigger returns the intake trigger.
func (m *Module) Trigger() *PassTrigger { return m.trigger }

// Name returns the module name for logging
func (m *Module) Name() string {
	return "escalation"
}

// RegisterRoutes registers the module's routes under /api/v1/admin/escalation
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/escalation"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
