package model

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"hydroguard/internal/analytics"
	"hydroguard/internal/metrics"
)

// Store владеет загруженной моделью. Веса после загрузки только читаются:
// запросы берут модель под RLock, перезагрузка подменяет ее под Lock.
// Без кэширования веса читаются заново на каждый запрос.
type Store struct {
	source Source
	cache  bool
	logger *zap.Logger

	mu       sync.RWMutex
	network  *Network
	loadedAt time.Time
	loads    int
}

// NewStore создает хранилище модели
func NewStore(source Source, cache bool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		source: source,
		cache:  cache,
		logger: logger.With(zap.String("weights", source.String())),
	}
}

// Get возвращает модель, загружая ее при первом обращении
func (s *Store) Get(ctx context.Context) (*Network, error) {
	if !s.cache {
		network, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.loads++
		s.loadedAt = time.Now()
		s.mu.Unlock()
		return network, nil
	}

	s.mu.RLock()
	network := s.network
	s.mu.RUnlock()
	if network != nil {
		return network, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.network != nil {
		return s.network, nil
	}
	network, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.swap(network)
	return network, nil
}

// Predictor то же, что Get, в виде интерфейса для оценки
func (s *Store) Predictor(ctx context.Context) (analytics.Predictor, error) {
	network, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return network, nil
}

// Reload перечитывает веса и подменяет модель. При ошибке остается старая.
func (s *Store) Reload(ctx context.Context) error {
	network, err := s.load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.swap(network)
	s.mu.Unlock()
	return nil
}

// swap вызывается под s.mu.Lock
func (s *Store) swap(network *Network) {
	s.network = network
	s.loadedAt = time.Now()
	s.loads++
	s.logger.Info("model loaded",
		zap.Int("input_dim", network.InputDim()),
		zap.Strings("layers", network.Layers()),
	)
}

func (s *Store) load(ctx context.Context) (*Network, error) {
	data, err := s.source.Fetch(ctx)
	if err != nil {
		metrics.ModelLoads.WithLabelValues("error").Inc()
		return nil, err
	}
	network, err := Parse(data)
	if err != nil {
		metrics.ModelLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load model from %s: %w", s.source, err)
	}
	metrics.ModelLoads.WithLabelValues("success").Inc()
	return network, nil
}

// Watch перезагружает модель при изменении файла весов.
// Блокируется до отмены ctx; для не-файловых источников сразу возвращает nil.
func (s *Store) Watch(ctx context.Context) error {
	file, ok := s.source.(FileSource)
	if !ok || !s.cache {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// следим за каталогом: файл весов обычно заменяется переименованием
	target := filepath.Clean(file.Path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.Reload(ctx); err != nil {
				s.logger.Warn("model reload failed, keeping previous weights", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("weights watcher error", zap.Error(err))
		}
	}
}

// GetStats возвращает состояние хранилища
func (s *Store) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"source": s.source.String(),
		"cached": s.cache,
		"loads":  s.loads,
		"loaded": s.network != nil,
	}
	if !s.loadedAt.IsZero() {
		stats["loaded_at"] = s.loadedAt
	}
	if s.network != nil {
		stats["input_dim"] = s.network.InputDim()
		stats["layers"] = s.network.Layers()
	}
	return stats
}
