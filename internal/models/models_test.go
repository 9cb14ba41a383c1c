package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydroguard/internal/analytics"
)

func fullLatestData(rows int) LatestData {
	d := make(LatestData, analytics.NumFeatures)
	for j, name := range analytics.FeatureNames {
		samples := make([]Sample, rows)
		for i := range samples {
			samples[i] = Sample{Value: float64(10*j + i)}
		}
		d[name] = samples
	}
	return d
}

func TestSampleUnmarshal(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{input: `{"value": 25.5}`, want: 25.5},
		{input: `{"value": -3}`, want: -3},
		{input: `{"value": true}`, want: 1},
		{input: `{"value": false}`, want: 0},
		{input: `{"value": null}`, wantErr: true},
		{input: `{}`, wantErr: true},
		{input: `{"value": "7"}`, wantErr: true},
		{input: `7`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var s Sample
			err := json.Unmarshal([]byte(tt.input), &s)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, analytics.ErrData)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Value)
		})
	}
}

func TestLatestDataMatrix(t *testing.T) {
	x, err := fullLatestData(3).Matrix()
	require.NoError(t, err)
	require.Len(t, x, 3)
	for _, row := range x {
		assert.Len(t, row, analytics.NumFeatures)
	}
	assert.Equal(t, 0.0, x[0][0])
	assert.Equal(t, 2.0, x[2][0])
	assert.Equal(t, float64(10*analytics.FeatureIndex(analytics.FeatureTDS)+1), x[1][analytics.FeatureIndex(analytics.FeatureTDS)])
}

func TestLatestDataMatrixErrors(t *testing.T) {
	missing := fullLatestData(3)
	delete(missing, analytics.FeaturePH)

	uneven := fullLatestData(3)
	uneven[analytics.FeatureTDS] = uneven[analytics.FeatureTDS][:2]

	tests := []struct {
		name string
		data LatestData
	}{
		{name: "empty", data: LatestData{}},
		{name: "nil", data: nil},
		{name: "missing parameter", data: missing},
		{name: "unequal lengths", data: uneven},
		{name: "no readings", data: fullLatestData(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.data.Matrix()
			assert.ErrorIs(t, err, analytics.ErrData)
		})
	}
}

func TestLatestDataIgnoresExtraKeys(t *testing.T) {
	d := fullLatestData(2)
	d["co2"] = []Sample{{Value: 400}}

	x, err := d.Matrix()
	require.NoError(t, err)
	assert.Len(t, x[0], analytics.NumFeatures)
}

func TestParameterSettingsBounds(t *testing.T) {
	var req PredictTriggersRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"latestData": {},
		"parameterSettings": {"tds": [500, 900], "pH": [5.5, 6.5]}
	}`), &req))

	bounds, err := req.ParameterSettings.Bounds()
	require.NoError(t, err)
	assert.Equal(t, analytics.Bounds{Lower: 500, Upper: 900}, bounds[analytics.FeatureTDS])
	assert.Equal(t, analytics.Bounds{Lower: 5.5, Upper: 6.5}, bounds[analytics.FeaturePH])

	_, err = ParameterSettings{"tds": {500}}.Bounds()
	assert.ErrorIs(t, err, analytics.ErrData)
}

func TestSummaryNullLoss(t *testing.T) {
	data, err := json.Marshal(Summary{Indices: []int{}, ExceedingLosses: []float64{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"detected": false,
		"detected_list": 0,
		"threshold": 0,
		"loss": null,
		"indices": [],
		"exceeding_losses": []
	}`, string(data))
}
