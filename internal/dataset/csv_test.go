package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydroguard/internal/analytics"
)

const sample = `Time,Surrounding Temperature,Surrounding Humidity,Solution Temperature,Light Intensity,TDS,pH,Notes
2024-05-01 08:00,24.5,61,21.0,300,820,6.1,ok
2024-05-01 08:05,24.7,,21.1,310,825,6.0,
,,,,,,,
2024-05-01 08:10,24.9,63,sensor error,320,830,6.2,
`

func TestLoad(t *testing.T) {
	table, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{
		analytics.FeatureSurroundingTemperature,
		analytics.FeatureSurroundingHumidity,
		analytics.FeatureSolutionTemperature,
		analytics.FeaturePH,
		analytics.FeatureTDS,
		analytics.FeatureLightIntensity,
	}, table.Columns)
	assert.Equal(t, []string{"2024-05-01 08:00", "2024-05-01 08:05", "2024-05-01 08:10"}, table.Times)
	require.Len(t, table.Rows, 3)

	assert.Equal(t, []float64{24.5, 61, 21.0, 6.1, 820, 300}, table.Rows[0])
	assert.True(t, math.IsNaN(table.Rows[1][1]), "empty cell")
	assert.True(t, math.IsNaN(table.Rows[2][2]), "non-numeric cell")
}

func TestMatrixImputesColumnMean(t *testing.T) {
	table, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	x, err := table.Matrix()
	require.NoError(t, err)
	assert.InDelta(t, 62.0, x[1][1], 1e-12)
	assert.InDelta(t, 21.05, x[2][2], 1e-12)
	assert.Equal(t, 24.9, x[2][0])
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "no time column", input: "TDS,pH\n800,6\n"},
		{name: "no features", input: "Time,CO2\n08:00,400\n"},
		{name: "no rows", input: "Time,TDS\n,\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, analytics.ErrData)
		})
	}
}

func TestLoadFileSemicolon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.csv")
	require.NoError(t, os.WriteFile(path, []byte("time;tds;low_tds_trigger\n08:00;800;1\n08:05;790;0\n"), 0o644))

	table, err := LoadFile(path, WithComma(';'))
	require.NoError(t, err)
	assert.Equal(t, []string{analytics.FeatureTDS, analytics.FeatureLowTdsTrigger}, table.Columns)
	assert.Equal(t, [][]float64{{800, 1}, {790, 0}}, table.Rows)
}
