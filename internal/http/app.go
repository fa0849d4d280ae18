// Package http defines how domain modules plug into the gin router built by
// internal/http/router.
package http

import (
	"context"

	"civicfix_backend/platform/config"
	"civicfix_backend/platform/httpkit"
	"civicfix_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// RouterConfig is the configuration the router reads: listen/CORS settings
// and the secret used to verify bearer tokens.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs GET /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is what cmd/api hands to router.New once everything is wired.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health may be nil, in which case the health route always answers ok.
	Health  HealthChecker
	Modules []Module
}

// Module is a bounded context that mounts its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the groups and middleware modules mount routes on.
type RouterContext struct {
	// V1 is the public /api/v1 group. Reporters need no account.
	V1 *gin.RouterGroup
	// Admin is /api/v1/admin, already behind a valid token with the admin role.
	Admin *gin.RouterGroup
	// Config is the JWT configuration for auth middleware.
	Config config.JWTConfig
	// AuthMiddleware rejects requests without a valid access token.
	AuthMiddleware gin.HandlerFunc
	// OptionalAuth attaches the caller's identity when a valid token is sent.
	OptionalAuth gin.HandlerFunc
	// IntakeRateLimiter throttles report submission per client IP.
	IntakeRateLimiter *httpkit.IntakeRateLimiter
}
