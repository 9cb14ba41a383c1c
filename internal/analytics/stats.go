package analytics

import "math"

// calculateAverage вычисляет среднее значение
func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateStdDev вычисляет стандартное отклонение (по генеральной совокупности)
func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}

// meanAbsoluteError средняя абсолютная разница двух векторов одинаковой длины
func meanAbsoluteError(target, prediction []float64) float64 {
	if len(target) == 0 {
		return 0
	}

	sum := 0.0
	for i := range target {
		sum += math.Abs(target[i] - prediction[i])
	}
	return sum / float64(len(target))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
