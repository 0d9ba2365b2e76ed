package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadgen_backend/internal/discovery/client"
	apphttp "leadgen_backend/internal/http"
	"leadgen_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type stubDiscovery struct {
	status client.HealthStatus
	err    error
}

func (s stubDiscovery) Health(context.Context) (client.HealthStatus, error) {
	return s.status, s.err
}

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func serve(t *testing.T, m *Module) (int, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	m.RegisterRoutes(&apphttp.RouterContext{Engine: engine, API: engine.Group("/api")})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var body Response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, body
}

func TestHealthAllUp(t *testing.T) {
	m := NewModule(PingFunc(ok), PingFunc(ok), stubDiscovery{status: client.HealthStatus{OK: true, Status: 200, Body: "ok"}}, logger.NewWithWriter("test", io.Discard))

	code, body := serve(t, m)
	if code != http.StatusOK || !body.OK || body.Database != "ok" || body.Redis != "ok" || !body.Discovery.OK {
		t.Fatalf("unexpected %d %+v", code, body)
	}
}

func TestHealthDiscoveryDownIsStillReady(t *testing.T) {
	m := NewModule(PingFunc(ok), nil, stubDiscovery{err: errors.New("timeout")}, logger.NewWithWriter("test", io.Discard))

	code, body := serve(t, m)
	if code != http.StatusOK || body.Redis != "disabled" || body.Discovery.OK {
		t.Fatalf("unexpected %d %+v", code, body)
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	m := NewModule(PingFunc(down), PingFunc(down), nil, logger.NewWithWriter("test", io.Discard))

	code, body := serve(t, m)
	if code != http.StatusServiceUnavailable || body.OK || body.Database != "down" || body.Redis != "down" {
		t.Fatalf("unexpected %d %+v", code, body)
	}
}
