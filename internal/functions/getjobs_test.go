package functions

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-portal/internal/backend"
	"recruit-portal/internal/backend/backendtest"
	transport "recruit-portal/internal/common/http"
	"recruit-portal/internal/common/logger"
	"recruit-portal/pkg/registry"
)

func newTestFunction(t *testing.T) (*GetJobs, *backendtest.Server) {
	t.Helper()
	srv := backendtest.NewServer()
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger(t)
	tc, err := transport.NewClient(transport.Config{
		BaseURL:        srv.URL,
		DefaultTimeout: time.Second,
		UploadTimeout:  time.Second,
	}, log)
	require.NoError(t, err)
	api, err := backend.New(tc, registry.Default(), log)
	require.NoError(t, err)
	return NewGetJobs(api, log), srv
}

func assertCORS(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", h.Get("Access-Control-Allow-Headers"))
}

func TestGetJobs_Preflight(t *testing.T) {
	fn, srv := newTestFunction(t)

	rec := httptest.NewRecorder()
	fn.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/functions/get-jobs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assertCORS(t, rec.Header())
	assert.Zero(t, srv.Calls(registry.OpListJobs))
}

func TestGetJobs_ProxiesBackendList(t *testing.T) {
	fn, srv := newTestFunction(t)
	srv.AddJob("Engineer", "Build")

	rec := httptest.NewRecorder()
	fn.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/functions/get-jobs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec.Header())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"job_id":1,"title":"Engineer","description_text":"Build","created_at":"2025-01-01T09:00:00"}]`, rec.Body.String())
}

func TestGetJobs_BackendFailure(t *testing.T) {
	fn, srv := newTestFunction(t)
	srv.Fail(registry.OpListJobs, http.StatusBadGateway, `{}`)

	rec := httptest.NewRecorder()
	fn.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/functions/get-jobs", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertCORS(t, rec.Header())
	assert.JSONEq(t, `{"error":"Failed to fetch jobs"}`, rec.Body.String())
}
