// Package metrics holds the Prometheus collectors for the HTTP backend and the
// advisory service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Advisory outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeDisabled = "disabled"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AdvisoryRequests    *prometheus.CounterVec
	UploadBytesTotal    prometheus.Counter
}

// New registers every collector on reg. Pass a fresh prometheus.NewRegistry()
// in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarttask_http_requests_total",
				Help: "Total HTTP requests handled, by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smarttask_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AdvisoryRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarttask_advisory_requests_total",
				Help: "Advisory calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		UploadBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "smarttask_upload_bytes_total",
				Help: "Bytes accepted by the attachment store",
			},
		),
	}
}

// ObserveHTTP is safe on a nil receiver.
func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveAdvisory(operation, outcome string) {
	if m == nil {
		return
	}
	m.AdvisoryRequests.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveUpload(n int) {
	if m == nil {
		return
	}
	m.UploadBytesTotal.Add(float64(n))
}
