// Package jobmetrics instruments background job runs.
package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus collectors for background jobs. A nil *Metrics is a no-op.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	processed   *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

// NewMetrics builds the job collectors and registers them with registerer. A nil registerer
// leaves them unregistered, which is handy in tests that read values through testutil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "richhabits_jobs_total",
			Help: "Job executions by job name and status.",
		}, []string{"job", "status"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "richhabits_jobs_failures_total",
			Help: "Failed job executions.",
		}, []string{"job"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "richhabits_job_duration_seconds",
			Help:    "Duration in seconds of background job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "richhabits_job_records_processed_total",
			Help: "Records changed by background jobs.",
		}, []string{"job"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "richhabits_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run. Alert when the quote sweep falls behind.",
		}, []string{"job"}),
		now: time.Now,
	}
}

// Tracker times a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job}
	}
	return &Tracker{metrics: m, job: job, start: m.now()}
}

// End records duration and outcome, returning err untouched so handlers can `return t.End(err)`.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	m := t.metrics
	finished := m.now()
	status := "success"
	if err != nil {
		status = "failure"
		m.failures.WithLabelValues(t.job).Inc()
	} else {
		m.lastSuccess.WithLabelValues(t.job).Set(float64(finished.Unix()))
	}
	m.runs.WithLabelValues(t.job, status).Inc()
	m.duration.WithLabelValues(t.job).Observe(finished.Sub(t.start).Seconds())
	return err
}

// AddProcessed counts records a job run touched, such as quotes expired by a sweep.
func (m *Metrics) AddProcessed(job string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.processed.WithLabelValues(job).Add(float64(count))
}
