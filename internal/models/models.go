package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"hydroguard/internal/analytics"
)

// Sample одно показание датчика: {"value": 25.3}. Флаги триггеров
// допускаются как true/false и переводятся в 1/0.
type Sample struct {
	Value float64 `json:"value"`
}

// UnmarshalJSON принимает число или bool, null и строки отклоняются
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: sample must be an object with a value: %v", analytics.ErrData, err)
	}

	value := bytes.TrimSpace(raw.Value)
	switch {
	case len(value) == 0 || bytes.Equal(value, []byte("null")):
		return fmt.Errorf("%w: sample value is missing", analytics.ErrData)
	case bytes.Equal(value, []byte("true")):
		s.Value = 1
		return nil
	case bytes.Equal(value, []byte("false")):
		s.Value = 0
		return nil
	}

	if err := json.Unmarshal(value, &s.Value); err != nil {
		return fmt.Errorf("%w: sample value %s is not a number", analytics.ErrData, value)
	}
	return nil
}

// LatestData последние показания: признак -> показания по времени
type LatestData map[string][]Sample

// Matrix собирает матрицу признаков в каноническом порядке столбцов.
// Все признаки схемы обязательны и должны иметь одинаковое число показаний,
// лишние ключи игнорируются.
func (d LatestData) Matrix() ([][]float64, error) {
	if len(d) == 0 {
		return nil, fmt.Errorf("%w: latestData is empty", analytics.ErrData)
	}

	rows := -1
	for _, name := range analytics.FeatureNames {
		samples, ok := d[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing parameter %q", analytics.ErrData, name)
		}
		if rows == -1 {
			rows = len(samples)
		} else if len(samples) != rows {
			return nil, fmt.Errorf("%w: parameter %q has %d readings, expected %d",
				analytics.ErrData, name, len(samples), rows)
		}
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: latestData has no readings", analytics.ErrData)
	}

	x := make([][]float64, rows)
	for i := range x {
		x[i] = make([]float64, analytics.NumFeatures)
		for j, name := range analytics.FeatureNames {
			x[i][j] = d[name][i].Value
		}
	}
	return x, nil
}

// ParameterSettings границы оператора: признак -> [нижняя, верхняя]
type ParameterSettings map[string][]float64

// Bounds проверяет, что каждая запись состоит ровно из двух чисел
func (p ParameterSettings) Bounds() (map[string]analytics.Bounds, error) {
	out := make(map[string]analytics.Bounds, len(p))
	for name, pair := range p {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: parameterSettings %q must be [lower, upper], got %d values",
				analytics.ErrData, name, len(pair))
		}
		out[name] = analytics.Bounds{Lower: pair[0], Upper: pair[1]}
	}
	return out, nil
}

// ReceiveDataRequest тело POST /receive-data
type ReceiveDataRequest struct {
	LatestData LatestData `json:"latestData"`
	SectorID   string     `json:"sectorId,omitempty"`
}

// PredictTriggersRequest тело POST /predict-triggers
type PredictTriggersRequest struct {
	LatestData        LatestData        `json:"latestData"`
	ParameterSettings ParameterSettings `json:"parameterSettings"`
	SectorID          string            `json:"sectorId,omitempty"`
}

// Summary итог обнаружения аномалий по пакету
type Summary struct {
	Detected        bool      `json:"detected"`
	DetectedList    int       `json:"detected_list"`
	Threshold       float64   `json:"threshold"`
	Loss            *float64  `json:"loss"`
	Indices         []int     `json:"indices"`
	ExceedingLosses []float64 `json:"exceeding_losses"`
}

// DetectionResponse ответ POST /receive-data.
// Ключи predictions и actual_values - индекс окна строкой.
type DetectionResponse struct {
	Summary      Summary              `json:"summary"`
	Predictions  map[string][]float64 `json:"predictions"`
	ActualValues map[string][]float64 `json:"actual_values"`
}

// TriggerResponse ответ POST /predict-triggers
type TriggerResponse struct {
	Predictions   map[string]float64 `json:"predictions"`
	TriggerStatus map[string]bool    `json:"trigger_status"`
}

// DetectionRecord запись истории обнаружения по сектору
type DetectionRecord struct {
	RunID     string    `json:"run_id"`
	SectorID  string    `json:"sector_id"`
	Timestamp time.Time `json:"timestamp"`
	Rows      int       `json:"rows"`
	Summary   Summary   `json:"summary"`
}

// TriggerRecord запись статуса триггеров по сектору
type TriggerRecord struct {
	RunID         string             `json:"run_id"`
	SectorID      string             `json:"sector_id"`
	Timestamp     time.Time          `json:"timestamp"`
	Forecast      map[string]float64 `json:"forecast"`
	TriggerStatus map[string]bool    `json:"trigger_status"`
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}
