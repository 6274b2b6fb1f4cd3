package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_IsolatedRegistries(t *testing.T) {
	// Two collectors on separate registries must not collide.
	a := NewCollector("energy_test", prometheus.NewRegistry())
	b := NewCollector("energy_test", prometheus.NewRegistry())

	a.RecordPrediction(true)
	a.RecordPrediction(false)
	a.RecordPrediction(true)
	b.RecordPrediction(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.PredictionsTotal.WithLabelValues("present")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.PredictionsTotal.WithLabelValues("absent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.PredictionsTotal.WithLabelValues("present")))
}

func TestCollector_CacheLookup(t *testing.T) {
	c := NewCollector("energy_test", prometheus.NewRegistry())

	c.RecordCacheLookup("consumption", false)
	c.RecordCacheLookup("consumption", true)
	c.RecordCacheLookup("consumption", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.DatasetCacheRequests.WithLabelValues("consumption", "miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.DatasetCacheRequests.WithLabelValues("consumption", "hit")))
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollector("energy_test", prometheus.NewRegistry())

	timer := c.TimeAnalysis("weekly_consumption")
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
	assert.Equal(t, 1, testutil.CollectAndCount(c.AnalysisDuration))
}
