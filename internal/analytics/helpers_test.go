package analytics

import "math"

// persistencePredictor предсказывает последнюю строку контекста
type persistencePredictor struct {
	dim   int
	calls int
}

func (p *persistencePredictor) InputDim() int { return p.dim }

func (p *persistencePredictor) Predict(context [][]float64) ([]float64, error) {
	p.calls++
	last := context[len(context)-1]
	return append([]float64(nil), last...), nil
}

// sensorMatrix детерминированная матрица rows x cols с плавными колебаниями
func sensorMatrix(rows, cols int) [][]float64 {
	x := make([][]float64, rows)
	for i := range x {
		row := make([]float64, cols)
		for j := range row {
			row[j] = float64(10*(j+1)) + math.Sin(float64(i+j))*float64(j+1)
		}
		x[i] = row
	}
	return x
}

func column(values ...float64) [][]float64 {
	x := make([][]float64, len(values))
	for i, v := range values {
		x[i] = []float64{v}
	}
	return x
}
