package cache

import (
	"context"
	"sync"
	"time"

	"hydroguard/internal/models"
)

// DefaultMemoryCapacity сколько записей каждого вида хранится на сектор
const DefaultMemoryCapacity = 100

// MemoryStore хранилище в памяти процесса, когда Redis выключен.
// На каждый сектор держится кольцо последних записей.
type MemoryStore struct {
	mu         sync.RWMutex
	capacity   int
	ttl        time.Duration
	detections map[string][]models.DetectionRecord
	anomalies  map[string][]models.DetectionRecord
	triggers   map[string]models.TriggerRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore создает хранилище; ttl 0 отключает устаревание аномалий
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{
		capacity:   capacity,
		ttl:        ttl,
		detections: make(map[string][]models.DetectionRecord),
		anomalies:  make(map[string][]models.DetectionRecord),
		triggers:   make(map[string]models.TriggerRecord),
	}
}

func (s *MemoryStore) push(buffer []models.DetectionRecord, rec models.DetectionRecord) []models.DetectionRecord {
	if len(buffer) >= s.capacity {
		// вытесняем самую старую запись
		buffer = buffer[1:]
	}
	return append(buffer, rec)
}

// StoreDetection сохраняет итог обнаружения
func (s *MemoryStore) StoreDetection(_ context.Context, rec models.DetectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detections[rec.SectorID] = s.push(s.detections[rec.SectorID], rec)
	return nil
}

// StoreAnomaly сохраняет аномальный итог
func (s *MemoryStore) StoreAnomaly(_ context.Context, rec models.DetectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies[rec.SectorID] = s.push(s.anomalies[rec.SectorID], rec)
	return nil
}

// GetRecentAnomalies возвращает последние аномалии сектора, новые первыми
func (s *MemoryStore) GetRecentAnomalies(_ context.Context, sectorID string, limit int) ([]models.DetectionRecord, error) {
	if limit <= 0 {
		return []models.DetectionRecord{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	buffer := s.anomalies[sectorID]
	result := make([]models.DetectionRecord, 0, min(limit, len(buffer)))
	for i := len(buffer) - 1; i >= 0 && len(result) < limit; i-- {
		if s.ttl > 0 && time.Since(buffer[i].Timestamp) > s.ttl*anomalyTTLFactor {
			break
		}
		result = append(result, buffer[i])
	}
	return result, nil
}

// SwapTriggerStatus записывает статус триггеров сектора
func (s *MemoryStore) SwapTriggerStatus(_ context.Context, rec models.TriggerRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var previous *models.TriggerRecord
	if prev, ok := s.triggers[rec.SectorID]; ok {
		previous = &prev
	}
	if outdated(previous, rec) {
		return false, nil
	}
	s.triggers[rec.SectorID] = rec
	return statusChanged(previous, rec), nil
}

// GetTriggerStatus возвращает последний статус триггеров сектора
func (s *MemoryStore) GetTriggerStatus(_ context.Context, sectorID string) (*models.TriggerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.triggers[sectorID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Ping всегда успешен
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// GetStats возвращает количество записей
func (s *MemoryStore) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	detections, anomalies := 0, 0
	for _, b := range s.detections {
		detections += len(b)
	}
	for _, b := range s.anomalies {
		anomalies += len(b)
	}
	return map[string]interface{}{
		"backend":         "memory",
		"trigger_sectors": len(s.triggers),
		"detections":      detections,
		"anomalies":       anomalies,
		"capacity":        s.capacity,
	}
}

// Close ничего не освобождает
func (s *MemoryStore) Close() error {
	return nil
}
