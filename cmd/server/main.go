package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hydroguard/internal/cache"
	"hydroguard/internal/config"
	"hydroguard/internal/handlers"
	"hydroguard/internal/logging"
	"hydroguard/internal/model"
	"hydroguard/internal/recorder"
	"hydroguard/internal/service"
	"hydroguard/internal/websocket"
)

func main() {
	configPath := flag.String("config", os.Getenv("HYDROGUARD_CONFIG"), "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting hydroguard",
		zap.Int("port", cfg.Server.Port),
		zap.String("weights", cfg.Model.Weights),
		zap.Int("seq_length", cfg.Model.SeqLength),
		zap.Float64("threshold_multiplier", cfg.Scoring.ThresholdMultiplier),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Модель
	source, err := model.ParseSource(cfg.Model.Weights, cfg.Model.AWSRegion)
	if err != nil {
		return err
	}
	models := model.NewStore(source, cfg.Model.CacheWeights, logger.Named("model"))
	if _, err := models.Get(ctx); err != nil {
		// сервис стартует, /health покажет degraded до появления весов
		logger.Warn("model not loaded at startup", zap.Error(err))
	}
	if cfg.Model.Watch {
		go func() {
			if err := models.Watch(ctx); err != nil {
				logger.Error("weights watcher stopped", zap.Error(err))
			}
		}()
	}

	// Хранилище истории
	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Оповещения и запись результатов
	hub := websocket.NewHub(logger.Named("websocket"))
	go hub.Run(ctx)

	rec := recorder.New(store, hub, logger.Named("recorder"), cfg.Recorder.QueueSize)
	rec.Start(cfg.Recorder.Workers)
	defer rec.Stop()
	logger.Info("recorder started", zap.Int("workers", cfg.Recorder.Workers))

	svc := service.New(models, cfg.ScoreConfig(), rec, logger.Named("service"))
	handler := handlers.NewHandler(svc, store, models, rec, logger.Named("http"), cfg.Server.MaxBodyBytes)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handlers.NewRouter(handler, hub.ServeWS),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// newStore Redis, если включен, иначе память процесса
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
	if !cfg.Redis.Enabled {
		logger.Info("redis disabled, keeping history in memory",
			zap.Int("capacity", cfg.Recorder.MemoryCapacity))
		return cache.NewMemoryStore(cfg.Recorder.MemoryCapacity, cfg.Redis.Retention), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	redisCache, err := cache.NewRedisCache(connectCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Retention)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	return redisCache, nil
}
