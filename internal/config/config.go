// Package config loads the warehouse's process configuration: a YAML
// file overridden by environment variables, then validated before
// anything else starts. RPC/storage-critical fields (ports, memory
// mode, storage backend) are fixed at load time and never reloaded —
// see pkg/hotreload for the subset of settings that can change live.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/warehoused/warehoused/internal/apperr"
)

// AppConfig carries process identity and logging setup, independent of
// the warehouse's own ingest/query concerns.
type AppConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// LocalStorageConfig selects the on-disk object store backend.
type LocalStorageConfig struct {
	Dir string `yaml:"dir"`
}

// S3StorageConfig selects the S3-compatible object store backend.
type S3StorageConfig struct {
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Key      string `yaml:"key"`
	Secret   string `yaml:"secret"`
	Secure   bool   `yaml:"secure"`
}

// StorageConfig is the `{local{dir}|s3{bucket,region,key,secret}}`
// selector. Exactly one of Local/S3 is populated after Validate.
type StorageConfig struct {
	Local *LocalStorageConfig `yaml:"local"`
	S3    *S3StorageConfig    `yaml:"s3"`
}

// QueryConfig holds the query engine's tunables. ColdWindow is the only
// field pkg/hotreload is allowed to change live.
type QueryConfig struct {
	ColdWindow time.Duration `yaml:"cold_window"`
	TraceLimit int           `yaml:"trace_limit"`
}

// SchedulerConfig holds the two periodic-tick intervals (§5).
type SchedulerConfig struct {
	AggregatorTick time.Duration `yaml:"aggregator_tick"`
	FlushTick      time.Duration `yaml:"flush_tick"`
}

// TracingConfig configures this process's own self-observability: the
// OTel spans it emits about its own request handling, distinct from the
// trace/span data it warehouses on behalf of instrumented services.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// Config is the complete process configuration.
type Config struct {
	App         AppConfig       `yaml:"app"`
	WebPort     int             `yaml:"web_port"`
	GRPCPort    int             `yaml:"grpc_port"`
	MemoryMode  bool            `yaml:"memory_mode"`
	Storage     StorageConfig   `yaml:"storage"`
	Query       QueryConfig     `yaml:"query"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	Tracing     TracingConfig   `yaml:"tracing"`
	Compression string          `yaml:"compression"`
}

// Load reads configFile (if non-empty), layers environment overrides on
// top, applies defaults for anything still unset, and validates the
// result. A missing or unreadable configFile is not fatal: the process
// can run entirely off defaults and environment variables.
func Load(configFile string, logger *logrus.Logger) (*Config, error) {
	cfg := &Config{}

	if configFile != "" {
		if err := loadFile(configFile, cfg); err != nil {
			logger.WithError(err).WithField("file", configFile).Warn("failed to load config file, continuing with defaults")
		} else {
			logger.WithField("file", configFile).Info("loaded configuration file")
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "warehoused"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = "json"
	}
	if cfg.WebPort == 0 {
		cfg.WebPort = 8401
	}
	if cfg.GRPCPort == 0 {
		cfg.GRPCPort = 8402
	}
	if cfg.Query.ColdWindow == 0 {
		cfg.Query.ColdWindow = 15 * time.Minute
	}
	if cfg.Query.TraceLimit == 0 {
		cfg.Query.TraceLimit = 20
	}
	if cfg.Scheduler.AggregatorTick == 0 {
		cfg.Scheduler.AggregatorTick = time.Second
	}
	if cfg.Scheduler.FlushTick == 0 {
		cfg.Scheduler.FlushTick = 60 * time.Second
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = "http://localhost:14268/api/traces"
	}
	if cfg.Tracing.SampleRate == 0 {
		cfg.Tracing.SampleRate = 1.0
	}
	if cfg.Compression == "" {
		cfg.Compression = "zstd"
	}

	// Absent a storage selector entirely, default to a local store under
	// the working directory, matching the memory-mode-off, disk-backed
	// default a developer would expect from a freshly cloned checkout.
	if cfg.Storage.Local == nil && cfg.Storage.S3 == nil {
		cfg.Storage.Local = &LocalStorageConfig{Dir: "./data"}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnvString("WAREHOUSED_LOG_LEVEL", ""); v != "" {
		cfg.App.LogLevel = v
	}
	if v := getEnvString("WAREHOUSED_LOG_FORMAT", ""); v != "" {
		cfg.App.LogFormat = v
	}
	if v := getEnvInt("WAREHOUSED_WEB_PORT", 0); v != 0 {
		cfg.WebPort = v
	}
	if v := getEnvInt("WAREHOUSED_GRPC_PORT", 0); v != 0 {
		cfg.GRPCPort = v
	}
	if v := getEnvBool("WAREHOUSED_MEMORY_MODE", cfg.MemoryMode); v != cfg.MemoryMode {
		cfg.MemoryMode = v
	}
	if v := getEnvDuration("WAREHOUSED_COLD_WINDOW", 0); v != 0 {
		cfg.Query.ColdWindow = v
	}
	if v := getEnvBool("WAREHOUSED_TRACING_ENABLED", cfg.Tracing.Enabled); v != cfg.Tracing.Enabled {
		cfg.Tracing.Enabled = v
	}
	if v := getEnvString("WAREHOUSED_TRACING_ENDPOINT", ""); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := getEnvString("WAREHOUSED_COMPRESSION", ""); v != "" {
		cfg.Compression = v
	}

	// Any S3 env var present promotes the selector to S3, matching the
	// file-config precedent where the presence of a section (not just a
	// field) decides which backend is active.
	if endpoint := getEnvString("WAREHOUSED_S3_ENDPOINT", ""); endpoint != "" {
		s3 := cfg.Storage.S3
		if s3 == nil {
			s3 = &S3StorageConfig{}
		}
		s3.Endpoint = endpoint
		if v := getEnvString("WAREHOUSED_S3_BUCKET", ""); v != "" {
			s3.Bucket = v
		}
		if v := getEnvString("WAREHOUSED_S3_REGION", ""); v != "" {
			s3.Region = v
		}
		if v := getEnvString("WAREHOUSED_S3_KEY", ""); v != "" {
			s3.Key = v
		}
		if v := getEnvString("WAREHOUSED_S3_SECRET", ""); v != "" {
			s3.Secret = v
		}
		s3.Secure = getEnvBool("WAREHOUSED_S3_SECURE", s3.Secure)
		cfg.Storage.S3 = s3
		cfg.Storage.Local = nil
	}
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Validate checks the fields that ingest/query behavior depends on
// (§6's CLI/config surface) and the derived ambient settings. It
// returns an *apperr.Error with Kind apperr.KindBadRequest describing
// every problem found, not just the first.
func Validate(cfg *Config) error {
	var problems []string

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[cfg.App.LogLevel] {
		problems = append(problems, fmt.Sprintf("invalid log level: %q", cfg.App.LogLevel))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.App.LogFormat] {
		problems = append(problems, fmt.Sprintf("invalid log format: %q", cfg.App.LogFormat))
	}

	if cfg.WebPort <= 0 || cfg.WebPort > 65535 {
		problems = append(problems, fmt.Sprintf("invalid web_port: %d", cfg.WebPort))
	}
	if cfg.GRPCPort <= 0 || cfg.GRPCPort > 65535 {
		problems = append(problems, fmt.Sprintf("invalid grpc_port: %d", cfg.GRPCPort))
	}
	if cfg.WebPort == cfg.GRPCPort {
		problems = append(problems, "web_port and grpc_port must differ")
	}

	switch {
	case cfg.Storage.Local != nil && cfg.Storage.S3 != nil:
		problems = append(problems, "storage selector is ambiguous: both local and s3 are configured")
	case cfg.Storage.Local != nil:
		if cfg.Storage.Local.Dir == "" {
			problems = append(problems, "storage.local.dir cannot be empty")
		} else if !filepath.IsAbs(cfg.Storage.Local.Dir) {
			var err error
			cfg.Storage.Local.Dir, err = filepath.Abs(cfg.Storage.Local.Dir)
			if err != nil {
				problems = append(problems, fmt.Sprintf("storage.local.dir: %v", err))
			}
		}
	case cfg.Storage.S3 != nil:
		s3 := cfg.Storage.S3
		if s3.Endpoint == "" {
			problems = append(problems, "storage.s3.endpoint cannot be empty")
		}
		if s3.Bucket == "" {
			problems = append(problems, "storage.s3.bucket cannot be empty")
		}
		if s3.Key == "" || s3.Secret == "" {
			problems = append(problems, "storage.s3.key and storage.s3.secret are required")
		}
	default:
		problems = append(problems, "no storage backend configured")
	}

	if cfg.Query.ColdWindow <= 0 {
		problems = append(problems, "query.cold_window must be positive")
	}
	if cfg.Query.TraceLimit <= 0 {
		problems = append(problems, "query.trace_limit must be positive")
	}
	if cfg.Scheduler.AggregatorTick <= 0 {
		problems = append(problems, "scheduler.aggregator_tick must be positive")
	}
	if cfg.Scheduler.FlushTick <= 0 {
		problems = append(problems, "scheduler.flush_tick must be positive")
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		problems = append(problems, fmt.Sprintf("tracing.sample_rate must be in [0,1]: %f", cfg.Tracing.SampleRate))
	}
	validCompression := map[string]bool{"none": true, "snappy": true, "gzip": true, "zstd": true, "lz4": true}
	if !validCompression[cfg.Compression] {
		problems = append(problems, fmt.Sprintf("invalid compression: %q", cfg.Compression))
	}

	if len(problems) == 0 {
		return nil
	}
	msg := problems[0]
	for _, p := range problems[1:] {
		msg += "; " + p
	}
	return apperr.New(apperr.KindBadRequest, "config.validate", msg)
}
