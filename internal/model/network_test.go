package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydroguard/internal/analytics"
	"hydroguard/internal/model"
	"hydroguard/internal/model/modeltest"
)

// tinyWeights LSTM с одним нейроном и нулевыми смещениями: все гейты 0.5
func tinyWeights(recurrentToCandidate float64) model.Weights {
	return model.Weights{
		InputDim: 1,
		Layers: []model.Layer{
			{
				Type:            model.LayerLSTM,
				Units:           1,
				Activation:      "linear",
				Kernel:          [][]float64{{0, 0, 1, 0}},
				RecurrentKernel: [][]float64{{0, 0, recurrentToCandidate, 0}},
				Bias:            []float64{0, 0, 0, 0},
			},
			{Type: model.LayerDense, Units: 1, Kernel: [][]float64{{2}}, Bias: []float64{1}},
		},
	}
}

func TestNetworkPredict(t *testing.T) {
	tests := []struct {
		name      string
		recurrent float64
		want      float64
	}{
		// c0 = 0.5, h0 = 0.25; c1 = 0.25 + 0.5*2 = 1.25, h1 = 0.625; 2*h1 + 1
		{name: "no recurrence", recurrent: 0, want: 2.25},
		// candidate at t1 = 2 + 0.25; c1 = 0.25 + 1.125 = 1.375, h1 = 0.6875
		{name: "recurrent candidate", recurrent: 1, want: 2.375},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := model.New(tinyWeights(tt.recurrent))
			require.NoError(t, err)

			got, err := n.Predict([][]float64{{1}, {2}})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.InDelta(t, tt.want, got[0], 1e-12)
		})
	}
}

func TestNetworkPersistence(t *testing.T) {
	n, err := model.New(modeltest.PersistenceWeights(analytics.NumFeatures))
	require.NoError(t, err)
	assert.Equal(t, analytics.NumFeatures, n.InputDim())
	assert.Equal(t, 9, n.Timesteps())

	context := make([][]float64, 9)
	for i := range context {
		context[i] = make([]float64, analytics.NumFeatures)
		for j := range context[i] {
			context[i][j] = float64(i) - float64(j)/4
		}
	}

	got, err := n.Predict(context)
	require.NoError(t, err)
	assert.InDeltaSlice(t, context[8], got, 1e-6)

	again, err := n.Predict(context)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestNetworkStacked(t *testing.T) {
	w := tinyWeights(0)
	first := w.Layers[0]
	first.ReturnSequences = true
	first.Activation = "relu"
	second := model.Layer{
		Type:            model.LayerLSTM,
		Units:           1,
		Activation:      "relu",
		Kernel:          [][]float64{{0, 0, 1, 0}},
		RecurrentKernel: [][]float64{{0, 0, 0, 0}},
		Bias:            []float64{0, 0, 0, 0},
	}
	w.Layers = []model.Layer{first, second, {Type: model.LayerDropout, Rate: 0.2}, w.Layers[1]}

	n, err := model.New(w)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"lstm(units=1, activation=relu, return_sequences=true)",
		"lstm(units=1, activation=relu, return_sequences=false)",
		"dropout(rate=0.20)",
		"dense(units=1, activation=linear)",
	}, n.Layers())

	// first layer states: 0.25, 0.625; second: c0 = 0.125, h0 = 0.0625;
	// c1 = 0.0625 + 0.3125 = 0.375, h1 = 0.1875
	got, err := n.Predict([][]float64{{1}, {2}})
	require.NoError(t, err)
	assert.InDelta(t, 2*0.1875+1, got[0], 1e-12)
}

func TestNetworkPredictErrors(t *testing.T) {
	n, err := model.New(tinyWeights(0))
	require.NoError(t, err)

	_, err = n.Predict(nil)
	assert.ErrorIs(t, err, analytics.ErrData)

	_, err = n.Predict([][]float64{{1, 2}})
	assert.ErrorIs(t, err, analytics.ErrConfigMismatch)
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(w *model.Weights)
		wantErr error
	}{
		{name: "valid", mutate: func(w *model.Weights) {}},
		{name: "no input dim", mutate: func(w *model.Weights) { w.InputDim = 0 }},
		{name: "no layers", mutate: func(w *model.Weights) { w.Layers = nil }},
		{name: "bad kernel", mutate: func(w *model.Weights) { w.Layers[0].Kernel = [][]float64{{1, 2}} }},
		{name: "bad bias", mutate: func(w *model.Weights) { w.Layers[0].Bias = []float64{0} }},
		{name: "unknown activation", mutate: func(w *model.Weights) { w.Layers[0].Activation = "swish" }},
		{name: "unknown layer", mutate: func(w *model.Weights) { w.Layers[1].Type = "conv1d" }},
		{name: "ends with sequence", mutate: func(w *model.Weights) { w.Layers = w.Layers[:1]; w.Layers[0].ReturnSequences = true }},
		{
			name: "output width differs from input",
			mutate: func(w *model.Weights) {
				w.Layers[1].Units = 2
				w.Layers[1].Kernel = [][]float64{{1, 1}}
				w.Layers[1].Bias = []float64{0, 0}
			},
			wantErr: analytics.ErrConfigMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tinyWeights(0)
			tt.mutate(&w)
			err := w.Validate()
			if tt.name == "valid" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestParse(t *testing.T) {
	_, err := model.Parse([]byte("{not json"))
	assert.Error(t, err)

	n, err := model.Parse([]byte(`{
		"input_dim": 1,
		"layers": [
			{"type": "lstm", "units": 1, "activation": "linear",
			 "kernel": [[0, 0, 1, 0]], "recurrent_kernel": [[0, 0, 0, 0]], "bias": [0, 0, 0, 0]},
			{"type": "dense", "units": 1, "kernel": [[2]], "bias": [1]}
		]
	}`))
	require.NoError(t, err)
	got, err := n.Predict([][]float64{{1}, {2}})
	require.NoError(t, err)
	assert.InDelta(t, 2.25, got[0], 1e-12)
}
