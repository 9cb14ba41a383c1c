// Package recorder асинхронно сохраняет результаты обработки по секторам,
// обновляет метрики и рассылает оповещения подписчикам.
package recorder

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hydroguard/internal/cache"
	"hydroguard/internal/metrics"
	"hydroguard/internal/models"
)

// Типы оповещений
const (
	MessageAnomaly  = "anomaly"
	MessageTriggers = "triggers"
)

// storeTimeout на одну операцию с хранилищем
const storeTimeout = 5 * time.Second

// Broadcaster рассылает оповещения подключенным клиентам
type Broadcaster interface {
	Broadcast(kind string, payload interface{})
}

// Event результат одного запроса; заполнено ровно одно поле
type Event struct {
	Detection *models.DetectionRecord
	Triggers  *models.TriggerRecord
}

// Recorder пул обработчиков с очередью событий. События одного сектора
// всегда попадают к одному обработчику и сохраняются в порядке поступления.
type Recorder struct {
	store       cache.Store
	broadcaster Broadcaster
	logger      *zap.Logger

	events    chan Event
	shards    []chan Event
	queueSize int

	mu       sync.RWMutex
	stopped  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	workers  int

	processed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// New создает рекордер с очередью queueSize. broadcaster может быть nil.
func New(store cache.Store, broadcaster Broadcaster, logger *zap.Logger, queueSize int) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &Recorder{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		events:      make(chan Event, queueSize),
		queueSize:   queueSize,
		stopChan:    make(chan struct{}),
	}
}

// Start запускает распределитель и обработчики в goroutines
func (r *Recorder) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	shardSize := r.queueSize / workers
	if shardSize < 1 {
		shardSize = 1
	}

	r.workers = workers
	r.shards = make([]chan Event, workers)
	for i := range r.shards {
		r.shards[i] = make(chan Event, shardSize)
		r.wg.Add(1)
		go r.run(r.shards[i])
	}

	r.wg.Add(1)
	go r.dispatch()
}

// Stop останавливает прием событий и ждет обработки уже поставленных в очередь
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		close(r.stopChan)
		r.mu.Unlock()
	})
	r.wg.Wait()
}

// Submit ставит событие в очередь без блокировки.
// Возвращает false, если очередь заполнена или рекордер остановлен.
func (r *Recorder) Submit(ev Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		r.drop(ev, "recorder stopped")
		return false
	}
	select {
	case r.events <- ev:
		metrics.QueueSize.Set(float64(len(r.events)))
		return true
	default:
		r.drop(ev, "recorder queue is full")
		return false
	}
}

func (r *Recorder) drop(ev Event, reason string) {
	r.dropped.Add(1)
	metrics.RecorderDropped.Inc()
	r.logger.Warn("event dropped", zap.String("reason", reason), zap.String("sector_id", ev.sectorID()))
}

// dispatch раскладывает события по обработчикам по хешу сектора.
// После остановки дочитывает очередь и закрывает каналы обработчиков.
func (r *Recorder) dispatch() {
	defer r.wg.Done()
	defer func() {
		for _, shard := range r.shards {
			close(shard)
		}
	}()

	for {
		select {
		case ev := <-r.events:
			r.route(ev)
		case <-r.stopChan:
			for {
				select {
				case ev := <-r.events:
					r.route(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) route(ev Event) {
	h := fnv.New32a()
	h.Write([]byte(ev.sectorID()))
	r.shards[h.Sum32()%uint32(len(r.shards))] <- ev
}

func (r *Recorder) run(events <-chan Event) {
	defer r.wg.Done()

	for ev := range events {
		r.handle(ev)
	}
}

// pending событий в очередях
func (r *Recorder) pending() int {
	n := len(r.events)
	for _, shard := range r.shards {
		n += len(shard)
	}
	return n
}

func (r *Recorder) handle(ev Event) {
	defer func() { metrics.QueueSize.Set(float64(r.pending())) }()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var err error
	switch {
	case ev.Detection != nil:
		err = r.recordDetection(ctx, *ev.Detection)
	case ev.Triggers != nil:
		err = r.recordTriggers(ctx, *ev.Triggers)
	default:
		return
	}

	if err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to record event", zap.String("sector_id", ev.sectorID()), zap.Error(err))
		return
	}
	r.processed.Add(1)
}

func (r *Recorder) recordDetection(ctx context.Context, rec models.DetectionRecord) error {
	metrics.AnomalyThreshold.WithLabelValues(rec.SectorID).Set(rec.Summary.Threshold)

	if err := r.store.StoreDetection(ctx, rec); err != nil {
		return err
	}
	if !rec.Summary.Detected {
		return nil
	}

	if err := r.store.StoreAnomaly(ctx, rec); err != nil {
		return err
	}
	r.logger.Warn("anomaly detected",
		zap.String("sector_id", rec.SectorID),
		zap.String("run_id", rec.RunID),
		zap.Int("windows", rec.Summary.DetectedList),
		zap.Float64("threshold", rec.Summary.Threshold),
	)
	r.broadcast(MessageAnomaly, rec)
	return nil
}

func (r *Recorder) recordTriggers(ctx context.Context, rec models.TriggerRecord) error {
	changed, err := r.store.SwapTriggerStatus(ctx, rec)
	if err != nil {
		return err
	}

	for trigger, on := range rec.TriggerStatus {
		value := 0.0
		if on {
			value = 1
		}
		metrics.TriggerState.WithLabelValues(rec.SectorID, trigger).Set(value)
	}
	if !changed {
		return nil
	}

	metrics.TriggerChanges.Inc()
	r.logger.Info("trigger status changed",
		zap.String("sector_id", rec.SectorID),
		zap.String("run_id", rec.RunID),
		zap.Any("trigger_status", rec.TriggerStatus),
	)
	r.broadcast(MessageTriggers, rec)
	return nil
}

func (r *Recorder) broadcast(kind string, payload interface{}) {
	if r.broadcaster != nil {
		r.broadcaster.Broadcast(kind, payload)
	}
}

// GetStats возвращает статистику рекордера
func (r *Recorder) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"workers":    r.workers,
		"queue_size": r.pending(),
		"processed":  r.processed.Load(),
		"dropped":    r.dropped.Load(),
		"failed":     r.failed.Load(),
	}
}

func (ev Event) sectorID() string {
	switch {
	case ev.Detection != nil:
		return ev.Detection.SectorID
	case ev.Triggers != nil:
		return ev.Triggers.SectorID
	}
	return ""
}
