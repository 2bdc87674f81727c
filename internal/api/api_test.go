package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valu/keyrotation/internal/model"
	"github.com/valu/keyrotation/internal/repository"
	"github.com/valu/keyrotation/internal/service"
)

const tenant = "acme"

type fixedStatus repository.TierStatus

func (f fixedStatus) Status(context.Context) (repository.TierStatus, error) {
	return repository.TierStatus(f), nil
}

type testServer struct {
	t *testing.T
	h http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	log := zerolog.Nop()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := service.New(store, &log, service.WithClock(func() time.Time { return now }), service.WithSeed(11))
	return &testServer{t: t, h: SetupRoutes(svc, fixedStatus{Degraded: true, PendingSync: 3}, &log)}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(TenantHeader, tenant)
	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details"`
}

type addPlatformBody struct {
	Platform model.Platform `json:"platform"`
	Key      model.APIKey   `json:"key"`
}

type pageBody struct {
	Items     []model.APIKey `json:"items"`
	Total     int            `json:"total"`
	Filtered  bool           `json:"filtered"`
	Platforms []string       `json:"platforms"`
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	s.h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "keyrotation_request_total")
}

func TestTenantHeaderRequired(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/keys", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, TenantHeader, body.Details["field"])
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/v1/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"degraded":true,"pending_sync":3}`, w.Body.String())
}

func TestUnknownRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/v1/keys", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = s.do(http.MethodGet, "/v1/keys/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlatformAndKeys(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/platforms", map[string]string{"name": "Stripe"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decode[addPlatformBody](t, w)
	assert.Equal(t, "Stripe", added.Platform.Name)
	assert.Equal(t, 1, added.Platform.KeyCount)
	assert.Equal(t, "Stripe API Key", added.Key.Name)

	w = s.do(http.MethodPost, "/v1/platforms", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name", decode[errorBody](t, w).Details["field"])

	w = s.do(http.MethodPost, "/v1/platforms", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/keys", map[string]any{
		"name":        "webhook secret",
		"platform_id": added.Platform.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/keys?q=webhook", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[pageBody](t, w)
	assert.Equal(t, 1, page.Total)
	assert.True(t, page.Filtered)
	assert.Equal(t, []string{"Stripe"}, page.Platforms)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "webhook secret", page.Items[0].Name)

	w = s.do(http.MethodGet, "/v1/keys?status=Bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "status", decode[errorBody](t, w).Details["field"])

	w = s.do(http.MethodGet, "/v1/keys?q=nothing-matches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	empty := decode[pageBody](t, w)
	assert.Equal(t, 0, empty.Total)
	assert.NotNil(t, empty.Items)

	w = s.do(http.MethodDelete, "/v1/platforms/"+added.Platform.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, "/v1/keys", nil)
	assert.Equal(t, 0, decode[pageBody](t, w).Total)
}

func TestWorkflowEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/platforms", map[string]string{"name": "AWS"})
	require.Equal(t, http.StatusCreated, w.Code)
	key := decode[addPlatformBody](t, w).Key

	w = s.do(http.MethodPost, "/v1/workflows", map[string]any{"key_id": key.ID, "steps": []string{"Generate", "Deploy"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	wf := decode[model.Workflow](t, w)
	assert.Equal(t, 2, wf.TotalSteps)

	w = s.do(http.MethodPost, "/v1/workflows", map[string]any{"key_id": key.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	stepURL := func(n any) string { return fmt.Sprintf("/v1/workflows/%s/steps/%v", wf.ID, n) }

	w = s.do(http.MethodPost, stepURL(2), map[string]bool{"completed": true})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(http.MethodPost, stepURL("two"), map[string]bool{"completed": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, stepURL(7), map[string]bool{"completed": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, stepURL(1), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for n := 1; n <= 2; n++ {
		w = s.do(http.MethodPost, stepURL(n), map[string]bool{"completed": true})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.Equal(t, model.WorkflowCompleted, decode[model.Workflow](t, w).Status)

	w = s.do(http.MethodPost, "/v1/workflows/"+wf.ID+"/fail", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/v1/keys/"+key.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rotated := decode[model.APIKey](t, w)
	assert.Equal(t, model.RiskLow, rotated.Risk)
	assert.Equal(t, model.KeyStatusHealthy, rotated.Status)

	w = s.do(http.MethodGet, "/v1/workflows?status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Workflow](t, w), 1)

	w = s.do(http.MethodGet, "/v1/activities?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Activity](t, w), 2)

	w = s.do(http.MethodGet, "/v1/activities?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash struct {
		CompletedWorkflows int `json:"completed_workflows"`
		Platforms          int `json:"platforms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dash))
	assert.Equal(t, 1, dash.CompletedWorkflows)
	assert.Equal(t, 1, dash.Platforms)
}
