package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerCountsOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	_ = m.Track("forecast:warmup").End(nil)
	err := m.Track("forecast:warmup").End(errors.New("redis down"))
	assert.EqualError(t, err, "redis down")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("forecast:warmup", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("forecast:warmup", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("forecast:warmup")))
}

func TestSetDocumentCountsReplacesKind(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetDocumentCounts("purchase_order", map[string]int{"active": 3, "expired": 1})
	m.SetDocumentCounts("purchase_order", map[string]int{"active": 2})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.documents.WithLabelValues("purchase_order", "active")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.documents))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.SetDocumentCounts("quotation", map[string]int{"draft": 1})
	m.CountIntake("quotation", "stored")
	assert.NoError(t, m.Track("x").End(nil))
}
