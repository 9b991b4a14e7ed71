package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `coopledger_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `coopledger_http_request_duration_seconds_bucket{route="/test"`)
}

func TestLedgerMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObservePosting("SAVINGS_DEPOSIT", "posted")
	metrics.ObservePosting("SAVINGS_DEPOSIT", "posted")
	metrics.ObservePosting("SAVINGS_DEPOSIT", "replayed")
	metrics.ObserveChainVerification(4, 0)
	metrics.ObserveChainVerification(9, 2)

	body := scrape(t, metrics)
	assert.Contains(t, body, `coopledger_postings_total{outcome="posted",tx_type="SAVINGS_DEPOSIT"} 2`)
	assert.Contains(t, body, `coopledger_postings_total{outcome="replayed",tx_type="SAVINGS_DEPOSIT"} 1`)
	assert.Contains(t, body, `coopledger_chain_verifications_total{result="violated"} 1`)
	assert.Contains(t, body, `coopledger_chain_violations{tenant="9"} 2`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObservePosting("X", "posted")
	metrics.ObserveChainVerification(1, 1)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, metrics.Middleware(next))
	assert.False(t, strings.Contains(rr.Body.String(), "coopledger"))
}

func TestMetricsExposeRuntimeCollectors(t *testing.T) {
	body := scrape(t, NewMetrics())
	assert.Contains(t, body, "go_goroutines")
}
