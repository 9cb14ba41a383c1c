package analytics

import "errors"

var (
	// ErrData отсутствующие или некорректные входные данные
	ErrData = errors.New("invalid data")

	// ErrInsufficientData строк меньше, чем длина последовательности
	ErrInsufficientData = errors.New("insufficient data")

	// ErrEmptyResult после обработки не получено ни одного окна
	ErrEmptyResult = errors.New("empty result")

	// ErrConfigMismatch размерность признаков не совпадает с моделью
	ErrConfigMismatch = errors.New("feature dimension mismatch")
)
