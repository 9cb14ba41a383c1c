// Package modeltest содержит вспомогательные функции для тестов с моделью
package modeltest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"hydroguard/internal/model"
)

// PersistenceWeights сеть из одного LSTM-слоя и единичного dense-слоя, которая
// почти точно повторяет последнюю строку контекста: входной и выходной гейты
// открыты, забывающий закрыт, активации линейные.
func PersistenceWeights(dim int) model.Weights {
	kernel := make([][]float64, dim)
	for i := range kernel {
		kernel[i] = make([]float64, 4*dim)
		kernel[i][2*dim+i] = 1
	}
	recurrent := make([][]float64, dim)
	for i := range recurrent {
		recurrent[i] = make([]float64, 4*dim)
	}
	bias := make([]float64, 4*dim)
	for u := 0; u < dim; u++ {
		bias[u] = 20
		bias[dim+u] = -20
		bias[3*dim+u] = 20
	}

	dense := make([][]float64, dim)
	for i := range dense {
		dense[i] = make([]float64, dim)
		dense[i][i] = 1
	}

	return model.Weights{
		Name:      "persistence",
		InputDim:  dim,
		Timesteps: 9,
		Layers: []model.Layer{
			{
				Type:            model.LayerLSTM,
				Units:           dim,
				Activation:      "linear",
				Kernel:          kernel,
				RecurrentKernel: recurrent,
				Bias:            bias,
			},
			{Type: model.LayerDropout, Rate: 0.2},
			{Type: model.LayerDense, Units: dim, Kernel: dense, Bias: make([]float64, dim)},
		},
	}
}

// WriteWeights сохраняет веса в JSON-файл во временном каталоге теста
func WriteWeights(t *testing.T, w model.Weights) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.json")
	Overwrite(t, path, w)
	return path
}

// Overwrite перезаписывает файл весов
func Overwrite(t *testing.T, path string, w model.Weights) {
	t.Helper()
	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal weights: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
}
