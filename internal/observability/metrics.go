package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics menyimpan registry ledger beserta kolektor HTTP, posting dan rantai hash.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	postings     *prometheus.CounterVec
	chainRuns    *prometheus.CounterVec
	chainBroken  *prometheus.GaugeVec
}

// NewMetrics membuat registry baru. Kolektor runtime Go dan proses ikut didaftarkan.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coopledger_http_requests_total",
			Help: "Permintaan HTTP per pola route dan kode status.",
		}, []string{"route", "code"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coopledger_http_request_duration_seconds",
			Help:    "Latensi permintaan HTTP per pola route.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"route"}),
		postings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coopledger_postings_total",
			Help: "Panggilan RecordTransaction per tipe transaksi dan hasil.",
		}, []string{"tx_type", "outcome"}),
		chainRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coopledger_chain_verifications_total",
			Help: "Verifikasi rantai hash per hasil (clean, violated).",
		}, []string{"result"}),
		chainBroken: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coopledger_chain_violations",
			Help: "Pelanggaran rantai pada verifikasi terakhir per tenant.",
		}, []string{"tenant"}),
	}
}

// Handler melayani /metrics; 503 bila metrik tidak dikonfigurasi.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware mencatat jumlah dan latensi permintaan per pola route chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		began := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.httpLatency.WithLabelValues(route).Observe(time.Since(began).Seconds())
	})
}

// ObservePosting mencatat hasil satu panggilan RecordTransaction.
func (m *Metrics) ObservePosting(txType, outcome string) {
	if m != nil {
		m.postings.WithLabelValues(txType, outcome).Inc()
	}
}

// ObserveChainVerification mencatat hasil verifikasi rantai satu tenant.
func (m *Metrics) ObserveChainVerification(tenantID int64, violations int) {
	if m == nil {
		return
	}
	result := "clean"
	if violations > 0 {
		result = "violated"
	}
	m.chainRuns.WithLabelValues(result).Inc()
	m.chainBroken.WithLabelValues(strconv.FormatInt(tenantID, 10)).Set(float64(violations))
}

// Registerer dipakai paket lain (metrik job) untuk mendaftar ke registry yang sama.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}
