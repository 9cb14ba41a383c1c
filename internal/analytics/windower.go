package analytics

import "fmt"

// Window непрерывный срез seqLength строк: все строки кроме последней - контекст,
// последняя - цель. Rows ссылается на исходную матрицу и не должен изменяться.
type Window struct {
	Start int
	Rows  [][]float64
}

// Context все строки окна, кроме последней
func (w Window) Context() [][]float64 {
	return w.Rows[:len(w.Rows)-1]
}

// Target последняя строка окна
func (w Window) Target() []float64 {
	return w.Rows[len(w.Rows)-1]
}

// Windows нарезает матрицу на окна длины seqLength с шагом 1.
// Для N строк получается N - seqLength + 1 окон.
func Windows(x [][]float64, seqLength int) ([]Window, error) {
	if seqLength < 2 {
		return nil, fmt.Errorf("%w: sequence length must be at least 2, got %d", ErrData, seqLength)
	}
	if len(x) < seqLength {
		return nil, fmt.Errorf("%w: not enough data points to form the required sequence length of %d (got %d)",
			ErrInsufficientData, seqLength, len(x))
	}

	count := len(x) - seqLength + 1
	windows := make([]Window, count)
	for i := 0; i < count; i++ {
		windows[i] = Window{Start: i, Rows: x[i : i+seqLength]}
	}
	return windows, nil
}

// ForecastContext контекст для прогноза следующего шага: последние
// seqLength-1 строк. Требования к длине те же, что у Windows.
func ForecastContext(x [][]float64, seqLength int) ([][]float64, error) {
	windows, err := Windows(x, seqLength)
	if err != nil {
		return nil, err
	}
	last := windows[len(windows)-1]
	return last.Rows[1:], nil
}
