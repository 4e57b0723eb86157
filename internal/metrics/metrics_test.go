package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveHTTP("GET", "/rest/v1/tasks", 200, 5*time.Millisecond)
	m.ObserveHTTP("GET", "/rest/v1/tasks", 200, 5*time.Millisecond)
	m.ObserveAdvisory("task_advice", OutcomeFailed)
	m.ObserveUpload(128)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/rest/v1/tasks", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdvisoryRequests.WithLabelValues("task_advice", OutcomeFailed)))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.UploadBytesTotal))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.ObserveAdvisory("workload_summary", OutcomeOK)
		m.ObserveUpload(1)
	})
}
