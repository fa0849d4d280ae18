package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "civicfix_backend/internal/http"
	"civicfix_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type testConfig struct{}

func (testConfig) GetHTTPAddr() string        { return ":0" }
func (testConfig) GetCORSAllowAll() bool      { return false }
func (testConfig) GetCORSOrigins() []string   { return []string{"http://localhost:3000"} }
func (testConfig) GetCORSAllowCreds() bool    { return true }
func (testConfig) GetJWTAccessSecret() string { return "test-secret" }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type pingModule struct{ registered bool }

func (m *pingModule) Name() string { return "ping" }

func (m *pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.registered = true
	ctx.V1.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	ctx.Admin.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "admin pong") })
}

func newTestEngine(health apphttp.HealthChecker, modules ...apphttp.Module) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  testConfig{},
		Logger:  logger.Discard(),
		Health:  health,
		Modules: modules,
	})
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthReflectsDatabase(t *testing.T) {
	ok := newTestEngine(pingFunc(func(context.Context) error { return nil }))
	if rec := serve(ok, "/api/health"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	down := newTestEngine(pingFunc(func(context.Context) error { return errors.New("db down") }))
	if rec := serve(down, "/api/health"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestModulesRegisterOnSharedGroups(t *testing.T) {
	module := &pingModule{}
	engine := newTestEngine(nil, module)

	if !module.registered {
		t.Fatal("module routes were not registered")
	}
	if rec := serve(engine, "/api/v1/ping"); rec.Code != http.StatusOK {
		t.Fatalf("expected public route 200, got %d", rec.Code)
	}
	if rec := serve(engine, "/api/v1/admin/ping"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected admin route to require auth, got %d", rec.Code)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	rec := serve(newTestEngine(nil), "/api/health")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff header, got %q", got)
	}
}
