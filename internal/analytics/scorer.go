package analytics

import (
	"context"
	"fmt"
)

const (
	DefaultSeqLength           = 10
	DefaultThresholdMultiplier = 3.0
	DefaultHistoryWindow       = 50
)

// Predictor модель реконструкции: по контексту окна предсказывает следующую строку
type Predictor interface {
	InputDim() int
	Predict(context [][]float64) ([]float64, error)
}

// ScoreConfig параметры оценки
type ScoreConfig struct {
	SeqLength           int
	ThresholdMultiplier float64
	HistoryWindow       int
}

// DefaultScoreConfig значения по умолчанию
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		SeqLength:           DefaultSeqLength,
		ThresholdMultiplier: DefaultThresholdMultiplier,
		HistoryWindow:       DefaultHistoryWindow,
	}
}

// ScoreResult результат оценки батча
type ScoreResult struct {
	// Anomalies выровнены по строкам исходной матрицы (длина N)
	Anomalies []bool
	// Predictions и Targets по одной строке на окно, в стандартизованной шкале
	Predictions [][]float64
	Targets     [][]float64
	// Losses история потерь в порядке окон
	Losses          []float64
	Threshold       float64
	ExceedingLosses []float64
}

// Indices индексы строк, помеченных как аномальные
func (r *ScoreResult) Indices() []int {
	indices := make([]int, 0)
	for i, flagged := range r.Anomalies {
		if flagged {
			indices = append(indices, i)
		}
	}
	return indices
}

// Score оценивает стандартизованную матрицу: потеря на каждом окне,
// адаптивный порог по последним HistoryWindow потерям и флаги аномалий.
func Score(ctx context.Context, model Predictor, x [][]float64, cfg ScoreConfig) (*ScoreResult, error) {
	if cfg.HistoryWindow <= 0 {
		return nil, fmt.Errorf("%w: history window must be positive, got %d", ErrData, cfg.HistoryWindow)
	}
	width, err := checkMatrix(x)
	if err != nil {
		return nil, err
	}
	if model.InputDim() != width {
		return nil, fmt.Errorf("%w: model expects %d features, data has %d",
			ErrConfigMismatch, model.InputDim(), width)
	}

	windows, err := Windows(x, cfg.SeqLength)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: no sequences produced", ErrEmptyResult)
	}

	result := &ScoreResult{
		Predictions: make([][]float64, 0, len(windows)),
		Targets:     make([][]float64, 0, len(windows)),
		Losses:      make([]float64, 0, len(windows)),
	}

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prediction, err := model.Predict(w.Context())
		if err != nil {
			return nil, fmt.Errorf("predict window %d: %w", w.Start, err)
		}
		if len(prediction) != width {
			return nil, fmt.Errorf("%w: model returned %d features, expected %d",
				ErrConfigMismatch, len(prediction), width)
		}
		for _, v := range prediction {
			if !isFinite(v) {
				return nil, fmt.Errorf("model produced non-finite output for window %d", w.Start)
			}
		}

		target := append([]float64(nil), w.Target()...)
		result.Predictions = append(result.Predictions, prediction)
		result.Targets = append(result.Targets, target)
		result.Losses = append(result.Losses, meanAbsoluteError(target, prediction))
	}

	result.Threshold = AdaptiveThreshold(result.Losses, cfg.ThresholdMultiplier, cfg.HistoryWindow)

	// первые SeqLength-1 строк не имеют предсказания и никогда не помечаются
	result.Anomalies = make([]bool, cfg.SeqLength-1, len(x))
	for _, loss := range result.Losses {
		anomalous := loss > result.Threshold
		result.Anomalies = append(result.Anomalies, anomalous)
		if anomalous {
			result.ExceedingLosses = append(result.ExceedingLosses, loss)
		}
	}
	if result.ExceedingLosses == nil {
		result.ExceedingLosses = []float64{}
	}

	return result, nil
}

// AdaptiveThreshold mean + multiplier*std по последним historyWindow потерям
// (или по всем, если их меньше)
func AdaptiveThreshold(losses []float64, multiplier float64, historyWindow int) float64 {
	recent := losses
	if historyWindow > 0 && len(losses) > historyWindow {
		recent = losses[len(losses)-historyWindow:]
	}

	mean := calculateAverage(recent)
	return mean + multiplier*calculateStdDev(recent, mean)
}
