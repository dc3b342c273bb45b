package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/rain-features/internal/features"
)

var _ features.Recorder = (*Metrics)(nil)

func TestMetrics_Recorder(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveImputed("Temp9am", features.LevelGlobal, 3)
	m.ObserveImputed("Temp9am", features.LevelGlobal, 0)
	m.ObserveCapped("WindGustSpeed", "upper", 2)
	m.ObserveDomainRejection("WindGustSpeed")
	m.ObserveStage(features.StageCapper, 5*time.Millisecond)
	m.ObserveFit(time.Second)

	assert.InDelta(t, 3, testutil.ToFloat64(m.ImputedValues.WithLabelValues("Temp9am", features.LevelGlobal)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.CappedValues.WithLabelValues("WindGustSpeed", "upper")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DomainRejections.WithLabelValues("WindGustSpeed")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.TransformDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FitDuration))
}

func TestNewMetricsForTesting_Repeatable(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetricsForTesting()
		NewMetricsForTesting()
	})
}
