package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreSensorScenario(t *testing.T) {
	scaled, _, err := FitTransform(sensorMatrix(15, NumFeatures))
	require.NoError(t, err)

	model := &persistencePredictor{dim: NumFeatures}
	result, err := Score(context.Background(), model, scaled, DefaultScoreConfig())
	require.NoError(t, err)

	assert.Equal(t, 6, model.calls)
	assert.Len(t, result.Losses, 6)
	assert.Len(t, result.Predictions, 6)
	assert.Len(t, result.Targets, 6)
	require.Len(t, result.Anomalies, 15)
	for i := 0; i < 9; i++ {
		assert.False(t, result.Anomalies[i], "row %d has no prediction", i)
	}
	for i, target := range result.Targets {
		assert.Equal(t, scaled[i+9], target)
	}
}

func TestScoreThreshold(t *testing.T) {
	// persistence losses: nine windows of 1 and one of 21; mean 3, std 6
	x := column(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 30)
	model := &persistencePredictor{dim: 1}

	tests := []struct {
		name       string
		multiplier float64
		history    int
		threshold  float64
		indices    []int
		exceeding  []float64
	}{
		{name: "strict comparison at equality", multiplier: 3, history: 50, threshold: 21, indices: []int{}, exceeding: []float64{}},
		{name: "lower multiplier flags spike", multiplier: 2, history: 50, threshold: 15, indices: []int{10}, exceeding: []float64{21}},
		{name: "short history window", multiplier: 1, history: 5, threshold: 13, indices: []int{10}, exceeding: []float64{21}},
		{name: "short history, high multiplier", multiplier: 3, history: 5, threshold: 29, indices: []int{}, exceeding: []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Score(context.Background(), model, x, ScoreConfig{
				SeqLength:           2,
				ThresholdMultiplier: tt.multiplier,
				HistoryWindow:       tt.history,
			})
			require.NoError(t, err)

			assert.InDelta(t, tt.threshold, result.Threshold, 1e-9)
			assert.Equal(t, tt.indices, result.Indices())
			assert.Equal(t, tt.exceeding, result.ExceedingLosses)
			assert.Len(t, result.Anomalies, len(x))
		})
	}
}

func TestScoreSingleWindow(t *testing.T) {
	x := sensorMatrix(10, 4)
	result, err := Score(context.Background(), &persistencePredictor{dim: 4}, x, DefaultScoreConfig())
	require.NoError(t, err)

	assert.Len(t, result.Losses, 1)
	assert.Len(t, result.Anomalies, 10)
	// one loss has zero spread, so it can never exceed its own threshold
	assert.InDelta(t, result.Losses[0], result.Threshold, 1e-12)
	assert.Empty(t, result.Indices())
}

func TestScoreDeterministic(t *testing.T) {
	scaled, _, err := FitTransform(sensorMatrix(80, NumFeatures))
	require.NoError(t, err)
	scaled[60][2] += 9

	cfg := DefaultScoreConfig()
	first, err := Score(context.Background(), &persistencePredictor{dim: NumFeatures}, scaled, cfg)
	require.NoError(t, err)
	second, err := Score(context.Background(), &persistencePredictor{dim: NumFeatures}, scaled, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Threshold, second.Threshold)
	assert.Equal(t, first.Anomalies, second.Anomalies)
	assert.Equal(t, first.ExceedingLosses, second.ExceedingLosses)
}

func TestScoreThresholdMonotonic(t *testing.T) {
	scaled, _, err := FitTransform(sensorMatrix(80, NumFeatures))
	require.NoError(t, err)
	scaled[30][1] += 6
	scaled[65][7] -= 4

	prevThreshold := -1e18
	prevCount := len(scaled) + 1
	for _, k := range []float64{0, 0.5, 1, 2, 3, 5} {
		cfg := DefaultScoreConfig()
		cfg.ThresholdMultiplier = k
		result, err := Score(context.Background(), &persistencePredictor{dim: NumFeatures}, scaled, cfg)
		require.NoError(t, err)

		count := len(result.Indices())
		assert.GreaterOrEqual(t, result.Threshold, prevThreshold, "multiplier %v", k)
		assert.LessOrEqual(t, count, prevCount, "multiplier %v", k)
		prevThreshold, prevCount = result.Threshold, count
	}
}

func TestScoreErrors(t *testing.T) {
	x := sensorMatrix(12, 3)

	_, err := Score(context.Background(), &persistencePredictor{dim: 5}, x, DefaultScoreConfig())
	assert.ErrorIs(t, err, ErrConfigMismatch)

	_, err = Score(context.Background(), &persistencePredictor{dim: 3}, x[:9], DefaultScoreConfig())
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Score(context.Background(), &persistencePredictor{dim: 3}, nil, DefaultScoreConfig())
	assert.ErrorIs(t, err, ErrData)

	cfg := DefaultScoreConfig()
	cfg.HistoryWindow = 0
	_, err = Score(context.Background(), &persistencePredictor{dim: 3}, x, cfg)
	assert.ErrorIs(t, err, ErrData)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Score(ctx, &persistencePredictor{dim: 3}, x, DefaultScoreConfig())
	assert.True(t, errors.Is(err, context.Canceled))
}

type shortPredictor struct{}

func (shortPredictor) InputDim() int                            { return 3 }
func (shortPredictor) Predict(_ [][]float64) ([]float64, error) { return []float64{0}, nil }

func TestScorePredictionWidthMismatch(t *testing.T) {
	_, err := Score(context.Background(), shortPredictor{}, sensorMatrix(12, 3), DefaultScoreConfig())
	assert.ErrorIs(t, err, ErrConfigMismatch)
}

func TestAdaptiveThreshold(t *testing.T) {
	assert.InDelta(t, 2.0, AdaptiveThreshold([]float64{2}, 3, 50), 1e-12)
	assert.InDelta(t, 3.0+3*6.0, AdaptiveThreshold([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 21}, 3, 50), 1e-12)
	// only the last two losses count
	assert.InDelta(t, 5.5+0.5, AdaptiveThreshold([]float64{100, 5, 6}, 1, 2), 1e-12)
}
