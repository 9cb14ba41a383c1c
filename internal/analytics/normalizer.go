package analytics

import (
	"fmt"
	"math"
)

// Scaler параметры стандартизации, подобранные на одном батче.
// Один и тот же Scaler используется для прямого и обратного преобразования
// этого батча и никогда не применяется к другому.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler вычисляет среднее и стандартное отклонение каждого столбца.
// Столбец с нулевым разбросом получает масштаб 1.
func FitScaler(x [][]float64) (*Scaler, error) {
	width, err := checkMatrix(x)
	if err != nil {
		return nil, err
	}

	mean := make([]float64, width)
	scale := make([]float64, width)
	column := make([]float64, len(x))

	for j := 0; j < width; j++ {
		for i, row := range x {
			v := row[j]
			if !isFinite(v) {
				return nil, fmt.Errorf("%w: non-finite value at row %d, column %d", ErrData, i, j)
			}
			column[i] = v
		}
		mean[j] = calculateAverage(column)
		scale[j] = calculateStdDev(column, mean[j])
		if !isFinite(mean[j]) || !isFinite(scale[j]) {
			return nil, fmt.Errorf("%w: column %d is out of range, statistics overflow", ErrData, j)
		}
		if scale[j] == 0 {
			scale[j] = 1
		}
	}

	return &Scaler{Mean: mean, Scale: scale}, nil
}

// Width количество признаков, на которых подобран Scaler
func (s *Scaler) Width() int {
	return len(s.Mean)
}

// Transform стандартизует матрицу: (x - mean) / scale
func (s *Scaler) Transform(x [][]float64) ([][]float64, error) {
	return s.apply(x, func(v float64, j int) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
}

// InverseTransform возвращает стандартизованные значения в исходные единицы
func (s *Scaler) InverseTransform(x [][]float64) ([][]float64, error) {
	return s.apply(x, func(v float64, j int) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
}

// InverseRow обратное преобразование одной строки
func (s *Scaler) InverseRow(row []float64) ([]float64, error) {
	out, err := s.InverseTransform([][]float64{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *Scaler) apply(x [][]float64, fn func(v float64, j int) float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != s.Width() {
			return nil, fmt.Errorf("%w: row %d has %d features, scaler fitted on %d",
				ErrConfigMismatch, i, len(row), s.Width())
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = fn(v, j)
			if isFinite(v) && !isFinite(scaled[j]) {
				return nil, fmt.Errorf("%w: value at row %d, column %d overflows when scaled", ErrData, i, j)
			}
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform подбирает Scaler и сразу стандартизует ту же матрицу
func FitTransform(x [][]float64) ([][]float64, *Scaler, error) {
	scaler, err := FitScaler(x)
	if err != nil {
		return nil, nil, err
	}
	scaled, err := scaler.Transform(x)
	if err != nil {
		return nil, nil, err
	}
	return scaled, scaler, nil
}

// Impute заменяет пропуски (NaN) средним по столбцу. Только для офлайн-пути:
// живой путь оценки ожидает уже очищенные данные.
func Impute(x [][]float64) ([][]float64, error) {
	width, err := checkMatrix(x)
	if err != nil {
		return nil, err
	}

	means := make([]float64, width)
	for j := 0; j < width; j++ {
		present := make([]float64, 0, len(x))
		for _, row := range x {
			if !math.IsNaN(row[j]) {
				present = append(present, row[j])
			}
		}
		if len(present) == 0 {
			return nil, fmt.Errorf("%w: column %d has no numeric values", ErrData, j)
		}
		means[j] = calculateAverage(present)
	}

	out := make([][]float64, len(x))
	for i, row := range x {
		filled := make([]float64, width)
		for j, v := range row {
			if math.IsNaN(v) {
				v = means[j]
			}
			filled[j] = v
		}
		out[i] = filled
	}
	return out, nil
}

// checkMatrix проверяет, что матрица непустая и прямоугольная
func checkMatrix(x [][]float64) (int, error) {
	if len(x) == 0 {
		return 0, fmt.Errorf("%w: empty feature matrix", ErrData)
	}
	width := len(x[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: feature matrix has no columns", ErrData)
	}
	for i, row := range x {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d features, expected %d", ErrData, i, len(row), width)
		}
	}
	return width, nil
}
