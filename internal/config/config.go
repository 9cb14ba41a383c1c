package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"hydroguard/internal/analytics"
	"hydroguard/internal/logging"
)

// EnvPrefix префикс переменных окружения: HYDROGUARD_SERVER_PORT и т.д.
const EnvPrefix = "HYDROGUARD"

// Config конфигурация приложения
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Model    ModelConfig    `mapstructure:"model"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Logging  logging.Config `mapstructure:"logging"`
}

// ServerConfig HTTP сервер
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// ModelConfig веса модели
type ModelConfig struct {
	// Weights путь к файлу или s3://bucket/key
	Weights      string `mapstructure:"weights"`
	AWSRegion    string `mapstructure:"aws_region"`
	CacheWeights bool   `mapstructure:"cache_weights"`
	// Watch перезагружать веса при изменении файла
	Watch     bool `mapstructure:"watch"`
	SeqLength int  `mapstructure:"seq_length"`
}

// ScoringConfig адаптивный порог
type ScoringConfig struct {
	ThresholdMultiplier float64 `mapstructure:"threshold_multiplier"`
	HistoryWindow       int     `mapstructure:"history_window"`
}

// RedisConfig хранилище истории. Выключенный Redis заменяется памятью процесса.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Retention time.Duration `mapstructure:"retention"`
}

// RecorderConfig пул записи результатов
type RecorderConfig struct {
	Workers        int `mapstructure:"workers"`
	QueueSize      int `mapstructure:"queue_size"`
	MemoryCapacity int `mapstructure:"memory_capacity"`
}

// DefaultConfig значения по умолчанию
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    10 << 20,
		},
		Model: ModelConfig{
			Weights:      "models/weights.json",
			AWSRegion:    "us-east-1",
			CacheWeights: true,
			Watch:        true,
			SeqLength:    analytics.DefaultSeqLength,
		},
		Scoring: ScoringConfig{
			ThresholdMultiplier: analytics.DefaultThresholdMultiplier,
			HistoryWindow:       analytics.DefaultHistoryWindow,
		},
		Redis: RedisConfig{
			Enabled:   false,
			Addr:      "localhost:6379",
			Retention: time.Hour,
		},
		Recorder: RecorderConfig{
			Workers:        4,
			QueueSize:      1000,
			MemoryCapacity: 100,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load читает конфигурацию: значения по умолчанию, затем файл (если есть),
// затем переменные окружения. Пустой path - поиск hydroguard.yaml
// в текущем каталоге и /etc/hydroguard.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hydroguard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hydroguard/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults регистрирует каждый ключ, чтобы AutomaticEnv работал для вложенных полей
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)

	v.SetDefault("model.weights", d.Model.Weights)
	v.SetDefault("model.aws_region", d.Model.AWSRegion)
	v.SetDefault("model.cache_weights", d.Model.CacheWeights)
	v.SetDefault("model.watch", d.Model.Watch)
	v.SetDefault("model.seq_length", d.Model.SeqLength)

	v.SetDefault("scoring.threshold_multiplier", d.Scoring.ThresholdMultiplier)
	v.SetDefault("scoring.history_window", d.Scoring.HistoryWindow)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.retention", d.Redis.Retention)

	v.SetDefault("recorder.workers", d.Recorder.Workers)
	v.SetDefault("recorder.queue_size", d.Recorder.QueueSize)
	v.SetDefault("recorder.memory_capacity", d.Recorder.MemoryCapacity)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// Validate возвращает все найденные ошибки разом
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if c.Model.Weights == "" {
		errs = append(errs, errors.New("model.weights is required"))
	}
	if c.Model.SeqLength < 2 {
		errs = append(errs, fmt.Errorf("model.seq_length must be at least 2, got %d", c.Model.SeqLength))
	}
	if c.Scoring.ThresholdMultiplier < 0 {
		errs = append(errs, errors.New("scoring.threshold_multiplier must not be negative"))
	}
	if c.Scoring.HistoryWindow <= 0 {
		errs = append(errs, errors.New("scoring.history_window must be positive"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if c.Redis.Retention <= 0 {
		errs = append(errs, errors.New("redis.retention must be positive"))
	}
	if c.Recorder.Workers <= 0 {
		errs = append(errs, errors.New("recorder.workers must be positive"))
	}
	if c.Recorder.QueueSize <= 0 {
		errs = append(errs, errors.New("recorder.queue_size must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ScoreConfig параметры оценки аномалий
func (c *Config) ScoreConfig() analytics.ScoreConfig {
	return analytics.ScoreConfig{
		SeqLength:           c.Model.SeqLength,
		ThresholdMultiplier: c.Scoring.ThresholdMultiplier,
		HistoryWindow:       c.Scoring.HistoryWindow,
	}
}
