package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/broadcaster/internal/config/loader"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BROADCASTER_"

// Config is the full service configuration.
type Config struct {
	Log       LogConfig       `json:"log" yaml:"log" toml:"log"`
	Broadcast BroadcastConfig `json:"broadcast" yaml:"broadcast" toml:"broadcast"`
	HTTP      HTTPConfig      `json:"http" yaml:"http" toml:"http"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics" toml:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `json:"level" yaml:"level" toml:"level"`
	// Format is "console" or "json".
	Format string `json:"format" yaml:"format" toml:"format"`
	// File, when set, receives logs through a rotating writer.
	File       string `json:"file" yaml:"file" toml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress" toml:"compress"`
}

// BroadcastConfig configures the broadcaster itself.
type BroadcastConfig struct {
	// AllowList holds event ids delivered even while suspended.
	AllowList []int `json:"allow_list" yaml:"allow_list" toml:"allow_list"`
	// StartSuspended sets the initial suspend flag.
	StartSuspended bool `json:"start_suspended" yaml:"start_suspended" toml:"start_suspended"`
	// TraceIDs are event ids the service logs every delivery of.
	TraceIDs []int `json:"trace_ids" yaml:"trace_ids" toml:"trace_ids"`
	// LoopQueueSize bounds the main loop's task queue.
	LoopQueueSize int `json:"loop_queue_size" yaml:"loop_queue_size" toml:"loop_queue_size"`
}

// HTTPConfig configures the control surface.
type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	// ShutdownTimeoutSec bounds graceful shutdown.
	ShutdownTimeoutSec int `json:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec" toml:"shutdown_timeout_sec"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Path    string `json:"path" yaml:"path" toml:"path"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Broadcast: BroadcastConfig{
			LoopQueueSize: 256,
		},
		HTTP: HTTPConfig{
			Addr:               "127.0.0.1:8080",
			ShutdownTimeoutSec: 5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load builds a Config from defaults, the file at path and the process
// environment. An empty path skips the file.
func Load(path string) (Config, error) {
	return LoadFS(loader.DefaultFS(), path, loader.NewEnvLoader(EnvPrefix))
}

// LoadFS is Load with the file system and environment supplied.
func LoadFS(fsys loader.FileSystem, path string, env *loader.EnvLoader) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := loader.LoadFile(fsys, path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg, env); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides cfg from the environment.
func applyEnv(cfg *Config, env *loader.EnvLoader) error {
	if env == nil {
		return nil
	}
	if v, ok := env.String("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := env.String("LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}
	if v, ok := env.String("HTTP_ADDR"); ok {
		cfg.HTTP.Addr = v
	}
	ids, ok, err := env.IntList("ALLOW_LIST")
	if err != nil {
		return err
	}
	if ok {
		cfg.Broadcast.AllowList = ids
	}
	suspended, ok, err := env.Bool("START_SUSPENDED")
	if err != nil {
		return err
	}
	if ok {
		cfg.Broadcast.StartSuspended = suspended
	}
	return nil
}

// Validate checks every setting and reports all problems found.
func (c Config) Validate() error {
	var errs []error

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil || c.Log.Level == "" {
		errs = append(errs, &ValidationError{Path: "log.level", Value: c.Log.Level, Message: "unknown level"})
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, &ValidationError{Path: "log.format", Value: c.Log.Format, Message: `must be "console" or "json"`})
	}
	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		errs = append(errs, &ValidationError{Path: "log.max_size_mb", Value: c.Log.MaxSizeMB, Message: "must be positive"})
	}
	if c.Broadcast.LoopQueueSize <= 0 {
		errs = append(errs, &ValidationError{Path: "broadcast.loop_queue_size", Value: c.Broadcast.LoopQueueSize, Message: "must be positive"})
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, &ValidationError{Path: "http.addr", Value: c.HTTP.Addr, Message: "must not be empty"})
	}
	if c.HTTP.ShutdownTimeoutSec < 0 {
		errs = append(errs, &ValidationError{Path: "http.shutdown_timeout_sec", Value: c.HTTP.ShutdownTimeoutSec, Message: "must not be negative"})
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, &ValidationError{Path: "metrics.path", Value: c.Metrics.Path, Message: `must start with "/"`})
	}
	if c.Metrics.Enabled && c.Metrics.Path == "/" {
		errs = append(errs, &ValidationError{Path: "metrics.path", Value: c.Metrics.Path, Message: "must not be the root"})
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// LogLevel returns the parsed log level, defaulting to info.
func (c LogConfig) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		return zerolog.InfoLevel
	}
	return level
}
