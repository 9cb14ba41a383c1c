package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hydroguard/internal/metrics"
)

// NewRouter собирает маршруты сервиса. ws может быть nil.
func NewRouter(h *Handler, ws http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)

	r.Post("/receive-data", h.ReceiveData)
	r.Post("/predict-triggers", h.PredictTriggers)
	r.Get("/anomalies", h.GetAnomalies)
	r.Get("/triggers", h.GetTriggers)
	r.Get("/health", h.HealthCheck)
	r.Get("/stats", h.GetStats)
	r.Get("/hello", h.Hello)
	if ws != nil {
		r.Get("/ws", ws)
	}

	r.Handle("/prometheus", promhttp.Handler())

	return r
}

// instrument пишет метрики и журнал по каждому запросу
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(duration.Seconds())
		metrics.RequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()

		if endpoint == "/prometheus" || endpoint == "/health" {
			return
		}
		h.logger.Info("request",
			requestID(r),
			zap.String("method", r.Method),
			zap.String("endpoint", endpoint),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", duration),
		)
	})
}

func requestID(r *http.Request) zap.Field {
	return zap.String("request_id", middleware.GetReqID(r.Context()))
}
