package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsUseRoutePatterns(t *testing.T) {
	metrics := NewMetrics()
	router := chi.NewRouter()
	router.Use(metrics.Middleware())
	router.Get("/libraries/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/libraries/42", nil))

	body := scrape(t, metrics.Handler())
	assert.Contains(t, body, `http_requests_total{method="GET",path="/libraries/{id}",status="418"} 1`)
	assert.Contains(t, body, "http_request_duration_seconds_bucket")
	assert.NotContains(t, body, `path="/libraries/42"`)
}

func TestCatalogCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveLogin(true)
	metrics.ObserveLogin(false)
	metrics.ObserveLogin(false)
	metrics.ObserveMutation("library", "create")

	body := scrape(t, metrics.Handler())
	assert.Contains(t, body, `catalog_login_attempts_total{result="failure"} 2`)
	assert.Contains(t, body, `catalog_login_attempts_total{result="success"} 1`)
	assert.Contains(t, body, `catalog_record_mutations_total{kind="library",op="create"} 1`)
}

func TestMetricsRouteMounted(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodGet, "/health", "", nil)

	rr := do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `path="/health"`)

	cfg := testConfig()
	cfg.EnableMetrics = false
	off, err := NewServer(nil, nil, cfg, nil)
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	off.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
