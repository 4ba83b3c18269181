package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/platinummonkey/orgaccess/pkg/httputil"
	"github.com/platinummonkey/orgaccess/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_RequestID(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/roles", "")
	assert.NotEmpty(t, w.Header().Get(httputil.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	req.Header.Set(httputil.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(httputil.RequestIDHeader))
}

func TestHandler_RecoversPanics(t *testing.T) {
	ts := newTestServer(t)
	ts.Router().HandleFunc("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	w := ts.do(http.MethodGet, "/panic", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestHandler_MaxBodyBytes(t *testing.T) {
	log, _ := test.NewNullLogger()
	srv := NewServer(Deps{
		Memberships:  &mockMemberships{},
		Roles:        &mockRoles{},
		Menus:        &mockMenus{},
		Permissions:  &mockPermissions{},
		Log:          log,
		MaxBodyBytes: 16,
	})

	body := `{"code":"` + strings.Repeat("x", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/roles", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_MetricsAndHealth(t *testing.T) {
	log, _ := test.NewNullLogger()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	srv := NewServer(Deps{
		Memberships:    &mockMemberships{},
		Roles:          &mockRoles{},
		Menus:          &mockMenus{},
		Permissions:    &mockPermissions{},
		Health:         observability.NewHealthChecker(nil, nil),
		Metrics:        metrics,
		MetricsHandler: observability.MetricsHandler(registry),
		Log:            log,
	})
	handler := srv.Handler()

	for _, path := range []string{"/roles/1", "/roles/2", "/healthz"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/roles/{role_id}", "200")))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "orgaccess_http_requests_total")
}
