package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/brightfish/bluecanary/pkg/config"
	"github.com/brightfish/bluecanary/pkg/export"
	"github.com/brightfish/bluecanary/pkg/ingest"
	"github.com/brightfish/bluecanary/pkg/server/monitor"
	"github.com/brightfish/bluecanary/pkg/storage"
	"github.com/brightfish/bluecanary/pkg/storage/badger"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "CANARYD"

// ErrConfiguration wraps every configuration failure.
var ErrConfiguration = errors.New("configuration error")

// Config holds receiver configuration.
type Config struct {
	Port         string        `mapstructure:"port" validate:"required,numeric"`
	DataDir      string        `mapstructure:"data_dir" validate:"required"`
	MaxStorageGB int64         `mapstructure:"max_storage_gb" validate:"min=0"`
	MaxMemoryMB  int64         `mapstructure:"max_memory_mb" validate:"min=0"`
	Retention    time.Duration `mapstructure:"retention" validate:"min=1h"`
	LogLevel     string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat    string        `mapstructure:"log_format" validate:"oneof=json text"`
}

// MaxStorageBytes returns the storage limit in bytes.
func (c Config) MaxStorageBytes() int64 {
	return c.MaxStorageGB << 30
}

// LoadConfig loads configuration from, in increasing priority:
//  1. Default values
//  2. canaryd.yaml in the working directory, or configFile when set
//  3. CANARYD_* environment variables (PORT is honored as well)
func LoadConfig(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("port", EnvPrefix+"_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("canaryd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", config.DefaultPort)
	v.SetDefault("data_dir", config.DefaultDataDir)
	v.SetDefault("max_storage_gb", config.DefaultMaxStorageGB)
	v.SetDefault("max_memory_mb", config.DefaultMaxMemoryMB)
	v.SetDefault("retention", config.DefaultRetention)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// NewLogger builds the receiver logger and installs it as the zap global.
func NewLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zap.InfoLevel
	}

	var logConfig zap.Config
	if cfg.LogFormat == "text" {
		logConfig = zap.NewDevelopmentConfig()
	} else {
		logConfig = zap.NewProductionConfig()
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	zap.ReplaceGlobals(logger)
	return logger.Named("canaryd"), nil
}

// InitializeStorage initializes BadgerDB storage with the given configuration.
func InitializeStorage(cfg Config, logger *zap.Logger) (*badger.Storage, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
		Logger:      logger.Named("badger"),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("storage initialized",
		zap.String("data_dir", cfg.DataDir),
		zap.Int64("max_memory_mb", cfg.MaxMemoryMB))
	return store, nil
}

// InitializeHandlers creates the request handlers and the live event hub.
func InitializeHandlers(
	store storage.Storage,
	storageMonitor *monitor.StorageMonitor,
	logger *zap.Logger,
) (*ingest.Handler, *export.Handler, *ingest.EventHub) {
	ingestHandler := ingest.NewHandler(store, logger.Named("ingest"))
	ingestHandler.SetStorageChecker(storageMonitor)

	hub := ingest.NewEventHub(logger.Named("ws"))
	ingestHandler.SetHub(hub)

	exportHandler := export.NewHandler(store, logger.Named("export"))

	logger.Info("handlers ready",
		zap.Int64("max_storage_bytes", storageMonitor.GetLimit()))
	return ingestHandler, exportHandler, hub
}

// InitializeRetention creates the retention job with health monitoring.
func InitializeRetention(store storage.Storage, cfg Config, logger *zap.Logger) (*RetentionJob, *monitor.RetentionMonitor) {
	retentionMonitor := &monitor.RetentionMonitor{}
	job := NewRetentionJob(store, cfg.Retention, retentionMonitor, logger.Named("retention"))
	logger.Info("retention ready",
		zap.Duration("retention", cfg.Retention),
		zap.Duration("interval", config.RetentionInterval))
	return job, retentionMonitor
}
