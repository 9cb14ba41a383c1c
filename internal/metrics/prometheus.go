package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration продолжительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ReadingsReceived строки показаний, принятые в запросах
	ReadingsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readings_received_total",
			Help: "Total number of sensor reading rows received",
		},
	)

	// WindowsScored окна, прошедшие через модель
	WindowsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "windows_scored_total",
			Help: "Total number of sequence windows scored",
		},
	)

	// AnomaliesDetected обнаруженные аномалии
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Total number of anomalous windows detected",
		},
		[]string{"sector_id"},
	)

	// ScoringLatency задержка скоринга пакета
	ScoringLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_latency_seconds",
			Help:    "Batch scoring latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// AnomalyThreshold последний порог по сектору (gauge)
	AnomalyThreshold = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "anomaly_threshold",
			Help: "Last adaptive anomaly threshold per sector",
		},
		[]string{"sector_id"},
	)

	// TriggerState текущее состояние триггера, 1 включен
	TriggerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trigger_state",
			Help: "Current trigger state per sector",
		},
		[]string{"sector_id", "trigger"},
	)

	// TriggerChanges изменения статуса триггеров
	TriggerChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trigger_changes_total",
			Help: "Total number of trigger status changes",
		},
	)

	// ModelLoads загрузки весов модели
	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_loads_total",
			Help: "Total number of model weight loads",
		},
		[]string{"status"},
	)

	// RedisOperations операции с Redis
	RedisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)

	// QueueSize размер очереди записи
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recorder_queue_size",
			Help: "Current size of the recorder queue",
		},
	)

	// RecorderDropped события, отброшенные при переполненной очереди
	RecorderDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recorder_dropped_total",
			Help: "Total number of events dropped because the recorder queue was full",
		},
	)

	// WebsocketClients подключенные клиенты
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)
)
