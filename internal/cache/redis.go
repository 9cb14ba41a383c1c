package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hydroguard/internal/metrics"
	"hydroguard/internal/models"
)

// swapRetries попытки транзакции при конкурентной записи статуса
const swapRetries = 10

// RedisCache хранилище истории в Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisCache)(nil)

// NewRedisCache подключается к Redis и проверяет соединение
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func detectionKey(sectorID, runID string) string {
	return fmt.Sprintf("detection:%s:%s", sectorID, runID)
}

func anomalyKey(sectorID, runID string) string {
	return fmt.Sprintf("anomaly:%s:%s", sectorID, runID)
}

func anomalyListKey(sectorID string) string {
	return fmt.Sprintf("anomaly_list:%s", sectorID)
}

func triggersKey(sectorID string) string {
	return fmt.Sprintf("triggers:%s", sectorID)
}

// observe считает операцию в метриках и пропускает ошибку дальше
func observe(operation string, err error) error {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RedisOperations.WithLabelValues(operation, status).Inc()
	return err
}

// StoreDetection сохраняет итог обнаружения
func (r *RedisCache) StoreDetection(ctx context.Context, rec models.DetectionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal detection: %w", err)
	}

	err = r.client.Set(ctx, detectionKey(rec.SectorID, rec.RunID), data, r.ttl).Err()
	return observe("store_detection", err)
}

// StoreAnomaly сохраняет аномальный итог и добавляет его в список сектора
func (r *RedisCache) StoreAnomaly(ctx context.Context, rec models.DetectionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal anomaly: %w", err)
	}

	anomalyTTL := r.ttl * anomalyTTLFactor
	key := anomalyKey(rec.SectorID, rec.RunID)
	listKey := anomalyListKey(rec.SectorID)

	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, data, anomalyTTL)
	pipe.ZAdd(ctx, listKey, redis.Z{Score: float64(rec.Timestamp.UnixMilli()), Member: key})
	pipe.Expire(ctx, listKey, anomalyTTL)

	_, err = pipe.Exec(ctx)
	return observe("store_anomaly", err)
}

// GetRecentAnomalies возвращает последние аномалии сектора, новые первыми.
// Записи с истекшим TTL пропускаются.
func (r *RedisCache) GetRecentAnomalies(ctx context.Context, sectorID string, limit int) ([]models.DetectionRecord, error) {
	if limit <= 0 {
		return []models.DetectionRecord{}, nil
	}

	keys, err := r.client.ZRevRange(ctx, anomalyListKey(sectorID), 0, int64(limit-1)).Result()
	if err := observe("get_anomalies", err); err != nil {
		return nil, fmt.Errorf("failed to get anomalies: %w", err)
	}
	records := make([]models.DetectionRecord, 0, len(keys))
	if len(keys) == 0 {
		return records, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err := observe("get_anomalies", err); err != nil {
		return nil, fmt.Errorf("failed to load anomalies: %w", err)
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec models.DetectionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal anomaly: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SwapTriggerStatus записывает статус триггеров сектора в транзакции WATCH/MULTI,
// чтобы параллельные записи не перетирали друг друга
func (r *RedisCache) SwapTriggerStatus(ctx context.Context, rec models.TriggerRecord) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to marshal trigger status: %w", err)
	}

	key := triggersKey(rec.SectorID)
	var changed bool
	swap := func(tx *redis.Tx) error {
		var previous *models.TriggerRecord
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			previous = &models.TriggerRecord{}
			if err := json.Unmarshal(raw, previous); err != nil {
				return fmt.Errorf("failed to unmarshal trigger status: %w", err)
			}
		}

		if outdated(previous, rec) {
			changed = false
			return nil
		}
		changed = statusChanged(previous, rec)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl*anomalyTTLFactor)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < swapRetries; attempt++ {
		err = r.client.Watch(ctx, swap, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err := observe("store_triggers", err); err != nil {
		return false, err
	}
	return changed, nil
}

// GetTriggerStatus возвращает последний статус триггеров сектора
func (r *RedisCache) GetTriggerStatus(ctx context.Context, sectorID string) (*models.TriggerRecord, error) {
	data, err := r.client.Get(ctx, triggersKey(sectorID)).Bytes()
	if err == redis.Nil {
		observe("get_triggers", nil)
		return nil, ErrNotFound
	}
	if err := observe("get_triggers", err); err != nil {
		return nil, fmt.Errorf("failed to get trigger status: %w", err)
	}

	var rec models.TriggerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger status: %w", err)
	}
	return &rec, nil
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GetStats возвращает статистику пула соединений
func (r *RedisCache) GetStats() map[string]interface{} {
	stats := r.client.PoolStats()

	return map[string]interface{}{
		"backend":     "redis",
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}
