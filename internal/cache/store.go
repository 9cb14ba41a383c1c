package cache

import (
	"context"
	"errors"
	"maps"

	"hydroguard/internal/models"
)

// ErrNotFound для сектора нет сохраненного состояния
var ErrNotFound = errors.New("not found")

// anomalyTTLFactor аномалии и статус триггеров живут дольше обычных записей
const anomalyTTLFactor = 24

// Store история обнаружений и статусов триггеров по секторам
type Store interface {
	StoreDetection(ctx context.Context, rec models.DetectionRecord) error
	StoreAnomaly(ctx context.Context, rec models.DetectionRecord) error
	GetRecentAnomalies(ctx context.Context, sectorID string, limit int) ([]models.DetectionRecord, error)
	// SwapTriggerStatus атомарно сохраняет статус и сообщает, отличается ли он
	// от предыдущего. Запись старше сохраненной игнорируется.
	SwapTriggerStatus(ctx context.Context, rec models.TriggerRecord) (bool, error)
	GetTriggerStatus(ctx context.Context, sectorID string) (*models.TriggerRecord, error)
	Ping(ctx context.Context) error
	GetStats() map[string]interface{}
	Close() error
}

func statusChanged(previous *models.TriggerRecord, next models.TriggerRecord) bool {
	if previous == nil {
		return true
	}
	return !maps.Equal(previous.TriggerStatus, next.TriggerStatus)
}

// outdated запись старше уже сохраненной
func outdated(previous *models.TriggerRecord, next models.TriggerRecord) bool {
	return previous != nil && next.Timestamp.Before(previous.Timestamp)
}
