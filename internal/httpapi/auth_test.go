package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentd/internal/adapters"
	"github.com/kandev/agentd/internal/config"
	"github.com/kandev/agentd/internal/installer"
	"github.com/kandev/agentd/internal/logging"
	"github.com/kandev/agentd/internal/session"
	"github.com/kandev/agentd/internal/supervisor"
	"github.com/kandev/agentd/internal/universal"
)

type noopSender struct{}

func (noopSender) Send(_ context.Context, _ universal.AgentID, _ []byte) error { return nil }

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	registry := adapters.NewRegistry()
	manager := session.NewManager(registry, noopSender{}, nil)
	inst := installer.NewStatic("")
	sup := supervisor.New(func(_ context.Context, agent universal.AgentID) (*supervisor.Transport, error) {
		return nil, universal.AgentErrorf("agent %q not started in tests", agent)
	}, nil)
	handlers := NewHandlers(manager, inst, sup, func(_ context.Context, _ universal.AgentID) error { return nil })
	return NewRouter(cfg, handlers, logging.Default())
}

func TestAuthRequiredOnNonHealthRoutes(t *testing.T) {
	cfg := &config.Config{Host: "127.0.0.1", Port: 0, Token: "T"}
	router := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, 401, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	req.Header.Set("Authorization", "Bearer T")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}

func TestNoTokenMeansPublic(t *testing.T) {
	cfg := &config.Config{Host: "127.0.0.1", Port: 0, NoToken: true}
	router := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}

func TestAcceptEditsNormalizationOverHTTP(t *testing.T) {
	cfg := &config.Config{Host: "127.0.0.1", Port: 0, NoToken: true}
	router := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/x", jsonBody(`{"agent":"mock","permission_mode":"acceptEdits"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"permissionMode":"default"`)
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}
