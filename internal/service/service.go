// Package service связывает нормализацию, модель, оценку аномалий и
// триггеры в два конвейера: обнаружение аномалий и прогноз триггеров.
package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hydroguard/internal/analytics"
	"hydroguard/internal/metrics"
	"hydroguard/internal/models"
	"hydroguard/internal/recorder"
)

// unassignedSector метка метрик для запросов без sectorId
const unassignedSector = "unassigned"

// ModelSource выдает модель для одного пакета
type ModelSource interface {
	Predictor(ctx context.Context) (analytics.Predictor, error)
}

// Submitter принимает результаты для сохранения по сектору
type Submitter interface {
	Submit(ev recorder.Event) bool
}

// Service конвейеры обработки показаний. Состояние между запросами не хранится:
// нормализация подбирается заново на каждый пакет.
type Service struct {
	models   ModelSource
	cfg      analytics.ScoreConfig
	recorder Submitter
	logger   *zap.Logger
	now      func() time.Time
}

// New создает сервис. rec может быть nil, тогда история не сохраняется.
func New(models ModelSource, cfg analytics.ScoreConfig, rec Submitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		models:   models,
		cfg:      cfg,
		recorder: rec,
		logger:   logger,
		now:      time.Now,
	}
}

// Config параметры оценки
func (s *Service) Config() analytics.ScoreConfig {
	return s.cfg
}

// Detect ищет аномалии в пакете показаний. Предсказания и фактические значения
// возвращаются в исходных единицах с ключами по номеру окна.
func (s *Service) Detect(ctx context.Context, x [][]float64, sectorID string) (*models.DetectionResponse, error) {
	start := time.Now()
	runID := uuid.NewString()
	metrics.ReadingsReceived.Add(float64(len(x)))

	scaled, scaler, err := analytics.FitTransform(x)
	if err != nil {
		return nil, err
	}
	predictor, err := s.models.Predictor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	result, err := analytics.Score(ctx, predictor, scaled, s.cfg)
	if err != nil {
		return nil, err
	}

	predictions, err := scaler.InverseTransform(result.Predictions)
	if err != nil {
		return nil, err
	}
	actual, err := scaler.InverseTransform(result.Targets)
	if err != nil {
		return nil, err
	}

	resp := &models.DetectionResponse{
		Summary:      summarize(result),
		Predictions:  make(map[string][]float64, len(predictions)),
		ActualValues: make(map[string][]float64, len(actual)),
	}
	for i := range predictions {
		key := strconv.Itoa(i)
		resp.Predictions[key] = predictions[i]
		resp.ActualValues[key] = actual[i]
	}

	label := sectorID
	if label == "" {
		label = unassignedSector
	}
	metrics.WindowsScored.Add(float64(len(result.Losses)))
	metrics.AnomaliesDetected.WithLabelValues(label).Add(float64(resp.Summary.DetectedList))
	metrics.ScoringLatency.Observe(time.Since(start).Seconds())

	s.logger.Info("detection completed",
		zap.String("run_id", runID),
		zap.String("sector_id", sectorID),
		zap.Int("rows", len(x)),
		zap.Int("windows", len(result.Losses)),
		zap.Int("anomalies", resp.Summary.DetectedList),
		zap.Float64("threshold", result.Threshold),
		zap.Duration("took", time.Since(start)),
	)

	if sectorID != "" && s.recorder != nil {
		s.recorder.Submit(recorder.Event{Detection: &models.DetectionRecord{
			RunID:     runID,
			SectorID:  sectorID,
			Timestamp: s.now().UTC(),
			Rows:      len(x),
			Summary:   resp.Summary,
		}})
	}
	return resp, nil
}

// summarize итог по флагам; loss - потеря последнего помеченного окна
func summarize(result *analytics.ScoreResult) models.Summary {
	indices := result.Indices()
	summary := models.Summary{
		Detected:        len(indices) > 0,
		DetectedList:    len(indices),
		Threshold:       result.Threshold,
		Indices:         indices,
		ExceedingLosses: result.ExceedingLosses,
	}
	if n := len(result.ExceedingLosses); n > 0 {
		loss := result.ExceedingLosses[n-1]
		summary.Loss = &loss
	}
	return summary
}

// Forecast предсказывает следующий шаг по последним SeqLength-1 строкам
// и сравнивает прогноз с границами оператора.
func (s *Service) Forecast(ctx context.Context, x [][]float64, settings map[string]analytics.Bounds, sectorID string) (*models.TriggerResponse, error) {
	runID := uuid.NewString()
	metrics.ReadingsReceived.Add(float64(len(x)))

	scaled, scaler, err := analytics.FitTransform(x)
	if err != nil {
		return nil, err
	}
	// прогноз по самым свежим SeqLength-1 строкам батча, а не по последнему
	// окну, поэтому достаточно N >= SeqLength
	history, err := analytics.ForecastContext(scaled, s.cfg.SeqLength)
	if err != nil {
		return nil, err
	}

	predictor, err := s.models.Predictor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if predictor.InputDim() != scaler.Width() {
		return nil, fmt.Errorf("%w: model expects %d features, data has %d",
			analytics.ErrConfigMismatch, predictor.InputDim(), scaler.Width())
	}

	next, err := predictor.Predict(history)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	for _, v := range next {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: model produced non-finite forecast", analytics.ErrData)
		}
	}
	row, err := scaler.InverseRow(next)
	if err != nil {
		return nil, err
	}

	forecast := analytics.RowToFeatures(row)
	status := analytics.EvaluateTriggers(forecast, settings)

	s.logger.Info("forecast completed",
		zap.String("run_id", runID),
		zap.String("sector_id", sectorID),
		zap.Int("rows", len(x)),
		zap.Any("trigger_status", status),
	)

	if sectorID != "" && s.recorder != nil {
		s.recorder.Submit(recorder.Event{Triggers: &models.TriggerRecord{
			RunID:         runID,
			SectorID:      sectorID,
			Timestamp:     s.now().UTC(),
			Forecast:      forecast,
			TriggerStatus: status,
		}})
	}

	return &models.TriggerResponse{
		Predictions:   forecast,
		TriggerStatus: status,
	}, nil
}
