package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of a job run.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	// OutcomeDropped is a failure asynq will not retry.
	OutcomeDropped = "dropped"
)

// Metrics holds the collectors shared by every ledger job.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	snapshots   prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or once on the default
// registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = register(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Run times one execution of a job.
type Run struct {
	m     *Metrics
	job   string
	start time.Time
}

// Track starts timing job. A nil Metrics yields a Run that records nothing.
func (m *Metrics) Track(job string) *Run {
	return &Run{m: m, job: job, start: time.Now()}
}

// End records the outcome of the run and hands err back to the caller.
func (r *Run) End(err error) error {
	if r == nil || r.m == nil || r.job == "" {
		return err
	}
	r.m.duration.WithLabelValues(r.job).Observe(time.Since(r.start).Seconds())
	r.m.runs.WithLabelValues(r.job, outcome(err)).Inc()
	if err == nil {
		r.m.lastSuccess.WithLabelValues(r.job).SetToCurrentTime()
	}
	return err
}

// AddSnapshots counts period snapshots written by a job.
func (m *Metrics) AddSnapshots(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.snapshots.Add(float64(count))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, asynq.SkipRetry):
		return OutcomeDropped
	default:
		return OutcomeFailure
	}
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coopledger_jobs_total",
			Help: "Ledger job runs by job and outcome (success, failure, dropped).",
		}, []string{"job", "outcome"}),
		// chain walks over large tenants take minutes
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coopledger_job_duration_seconds",
			Help:    "Ledger job run time.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 180, 600},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coopledger_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coopledger_period_snapshots_total",
			Help: "Closed-period balance snapshots written by jobs.",
		}),
	}
	registerer.MustRegister(m.runs, m.duration, m.lastSuccess, m.snapshots)
	return m
}
