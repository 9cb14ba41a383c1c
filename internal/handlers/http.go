package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"hydroguard/internal/analytics"
	"hydroguard/internal/cache"
	"hydroguard/internal/models"
)

const defaultAnomalyLimit = 10

// Pipeline конвейеры обработки показаний
type Pipeline interface {
	Detect(ctx context.Context, x [][]float64, sectorID string) (*models.DetectionResponse, error)
	Forecast(ctx context.Context, x [][]float64, settings map[string]analytics.Bounds, sectorID string) (*models.TriggerResponse, error)
}

// ModelStatus состояние загруженной модели
type ModelStatus interface {
	Predictor(ctx context.Context) (analytics.Predictor, error)
	GetStats() map[string]interface{}
}

// StatsProvider компонент со статистикой для /stats
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Handler обработчик HTTP запросов
type Handler struct {
	pipeline     Pipeline
	store        cache.Store
	model        ModelStatus
	recorder     StatsProvider
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewHandler создает новый обработчик
func NewHandler(pipeline Pipeline, store cache.Store, model ModelStatus, recorder StatsProvider, logger *zap.Logger, maxBodyBytes int64) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pipeline:     pipeline,
		store:        store,
		model:        model,
		recorder:     recorder,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// ReceiveData обрабатывает POST /receive-data
func (h *Handler) ReceiveData(w http.ResponseWriter, r *http.Request) {
	var req models.ReceiveDataRequest
	if !h.decode(w, r, &req) {
		return
	}

	x, err := req.LatestData.Matrix()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := h.pipeline.Detect(r.Context(), x, req.SectorID)
	if err != nil {
		h.logger.Warn("detection failed", requestID(r), zap.Error(err))
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// PredictTriggers обрабатывает POST /predict-triggers
func (h *Handler) PredictTriggers(w http.ResponseWriter, r *http.Request) {
	var req models.PredictTriggersRequest
	if !h.decode(w, r, &req) {
		return
	}

	x, err := req.LatestData.Matrix()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bounds, err := req.ParameterSettings.Bounds()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := h.pipeline.Forecast(r.Context(), x, bounds, req.SectorID)
	if err != nil {
		h.logger.Warn("forecast failed", requestID(r), zap.Error(err))
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAnomalies обрабатывает GET /anomalies
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	sectorID := r.URL.Query().Get("sector_id")
	if sectorID == "" {
		writeError(w, http.StatusBadRequest, errors.New("sector_id parameter is required"))
		return
	}

	limit := defaultAnomalyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	anomalies, err := h.store.GetRecentAnomalies(r.Context(), sectorID, limit)
	if err != nil {
		h.logger.Error("failed to retrieve anomalies", requestID(r), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("failed to retrieve anomalies"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sector_id":     sectorID,
		"anomaly_count": len(anomalies),
		"anomalies":     anomalies,
	})
}

// GetTriggers обрабатывает GET /triggers
func (h *Handler) GetTriggers(w http.ResponseWriter, r *http.Request) {
	sectorID := r.URL.Query().Get("sector_id")
	if sectorID == "" {
		writeError(w, http.StatusBadRequest, errors.New("sector_id parameter is required"))
		return
	}

	rec, err := h.store.GetTriggerStatus(r.Context(), sectorID)
	if errors.Is(err, cache.ErrNotFound) {
		writeError(w, http.StatusNotFound, errors.New("no trigger status for sector "+sectorID))
		return
	}
	if err != nil {
		h.logger.Error("failed to retrieve trigger status", requestID(r), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("failed to retrieve trigger status"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HealthCheck обрабатывает GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	storeOK := h.store.Ping(ctx) == nil
	_, modelErr := h.model.Predictor(ctx)
	modelOK := modelErr == nil

	status := "healthy"
	httpStatus := http.StatusOK
	if !storeOK || !modelOK {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	body := map[string]interface{}{
		"status":    status,
		"store":     storeOK,
		"model":     modelOK,
		"timestamp": time.Now(),
	}
	if modelErr != nil {
		body["model_error"] = modelErr.Error()
	}
	writeJSON(w, httpStatus, body)
}

// GetStats обрабатывает GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recorder":  h.recorder.GetStats(),
		"store":     h.store.GetStats(),
		"model":     h.model.GetStats(),
		"timestamp": time.Now(),
	})
}

// Hello обрабатывает GET /hello
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Hello from hydroguard"))
}

// decode читает JSON тело с ограничением размера; при ошибке пишет 400
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, errors.New("request body too large"))
			return false
		}
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// writeJSON кодирует ответ до записи статуса; ошибка кодирования дает 500
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		json.NewEncoder(&buf).Encode(models.ErrorResponse{Error: "failed to encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, models.ErrorResponse{Error: err.Error()})
}
