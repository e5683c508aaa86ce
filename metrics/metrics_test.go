package metrics

import (
	"testing"
	"time"

	"github.com/aouyang1/go-crashcast/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTrain(t *testing.T) {
	testData := map[string]struct {
		hist         *models.History
		expectedLoss int
		expectedEp   float64
		expectedVal  float64
	}{
		"no history": {
			hist:         nil,
			expectedLoss: 0,
		},
		"train only": {
			hist: &models.History{
				Epochs: 2,
				Loss:   []float64{2.0, 1.5},
			},
			expectedLoss: 1,
			expectedEp:   2,
		},
		"with validation": {
			hist: &models.History{
				Epochs:  3,
				Loss:    []float64{2.0, 1.5, 1.0},
				ValLoss: []float64{3.0, 2.5, 2.25},
			},
			expectedLoss: 2,
			expectedEp:   3,
			expectedVal:  2.25,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			r := New(reg)

			r.ObserveTrain(250*time.Millisecond, 12, td.hist)

			assert.Equal(t, 12.0, testutil.ToFloat64(r.pairs))
			assert.Equal(t, td.expectedEp, testutil.ToFloat64(r.epochsTotal))
			assert.Equal(t, td.expectedLoss, testutil.CollectAndCount(r.loss))
			if td.expectedVal > 0 {
				assert.Equal(t, td.expectedVal, testutil.ToFloat64(r.loss.WithLabelValues("validation")))
			}
			assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
		})
	}
}

func TestObservePredictAndError(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObservePredict(time.Millisecond)
	r.ObservePredict(time.Millisecond)
	r.ObserveError("train")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.predictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("train")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("predict")))

	families, err := reg.Gather()
	require.Nil(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "crashcast_predictions_total")
	assert.Contains(t, names, "crashcast_errors_total")
}
