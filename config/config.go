// Package config provides the engine configuration: built-in defaults,
// optionally overlaid by a YAML file, overlaid by PND_AGENTS_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// envPrefix is the prefix of every environment override.
const envPrefix = "PND_AGENTS_"

// Config is the complete engine configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
	Pipelines PipelinesConfig `yaml:"pipelines"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	// Level is a zap level string: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
}

// EngineConfig controls execution defaults.
type EngineConfig struct {
	// MaxWorkers bounds concurrency within a parallel group.
	MaxWorkers int `yaml:"max_workers"`
	// ContinueOnError keeps executing after a stage failure.
	ContinueOnError bool `yaml:"continue_on_error"`
}

// PipelinesConfig locates the external pipeline rule resource.
type PipelinesConfig struct {
	// Path of the YAML rule file; empty runs on the built-in table alone.
	Path string `yaml:"path"`
}

// SnapshotConfig selects and configures the snapshot backend.
type SnapshotConfig struct {
	// Backend is one of: memory, file, redis, sqlite.
	Backend string `yaml:"backend"`
	// Path is the snapshot file (file backend) or database file (sqlite).
	Path string `yaml:"path"`
	// Key is the snapshot key for the redis backend.
	Key   string      `yaml:"key"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis snapshot backend.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// TelemetryConfig controls the OpenTelemetry SDK.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Engine: EngineConfig{
			MaxWorkers:      4,
			ContinueOnError: false,
		},
		Snapshot: SnapshotConfig{
			Backend: "file",
			Path:    ".pnd-agents/workflow_state.json",
			Key:     "pnd-agents:workflow:current",
			Redis: RedisConfig{
				Addr:         "localhost:6379",
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Addr:      ":9090",
			Namespace: "pnd_agents",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "pnd-agents",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path when
// non-empty, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays PND_AGENTS_* variables onto the configuration.
func applyEnv(cfg *Config) error {
	envString(&cfg.Log.Level, "LOG_LEVEL")
	envString(&cfg.Log.Format, "LOG_FORMAT")
	if err := envInt(&cfg.Engine.MaxWorkers, "ENGINE_MAX_WORKERS"); err != nil {
		return err
	}
	if err := envBool(&cfg.Engine.ContinueOnError, "ENGINE_CONTINUE_ON_ERROR"); err != nil {
		return err
	}
	envString(&cfg.Pipelines.Path, "PIPELINES_PATH")
	envString(&cfg.Snapshot.Backend, "SNAPSHOT_BACKEND")
	envString(&cfg.Snapshot.Path, "SNAPSHOT_PATH")
	envString(&cfg.Snapshot.Key, "SNAPSHOT_KEY")
	envString(&cfg.Snapshot.Redis.Addr, "REDIS_ADDR")
	envString(&cfg.Snapshot.Redis.Password, "REDIS_PASSWORD")
	if err := envInt(&cfg.Snapshot.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}
	if err := envBool(&cfg.Metrics.Enabled, "METRICS_ENABLED"); err != nil {
		return err
	}
	envString(&cfg.Metrics.Addr, "METRICS_ADDR")
	envString(&cfg.Metrics.Namespace, "METRICS_NAMESPACE")
	if err := envBool(&cfg.Telemetry.Enabled, "TELEMETRY_ENABLED"); err != nil {
		return err
	}
	envString(&cfg.Telemetry.ServiceName, "TELEMETRY_SERVICE_NAME")
	envString(&cfg.Telemetry.OTLPEndpoint, "TELEMETRY_OTLP_ENDPOINT")
	return nil
}

func envString(dst *string, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		*dst = v
	}
}

func envInt(dst *int, name string) error {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
	}
	*dst = parsed
	return nil
}

func envBool(dst *bool, name string) error {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
	}
	*dst = parsed
	return nil
}

// BuildLogger constructs the zap logger described by the log configuration.
func BuildLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
