// Package config loads the settings of a process embedding the transports.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/srediag/xfer/pkg/transport"
)

// EnvPrefix prefixes every environment override, e.g. XFER_LOG_LEVEL=debug.
const EnvPrefix = "XFER"

// Config is the root configuration.
type Config struct {
	Log       LogConfig        `mapstructure:"log"`
	Transport transport.Config `mapstructure:"transport"`
	Health    HealthConfig     `mapstructure:"health"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string       `mapstructure:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls rotation of file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// HealthConfig controls the health endpoints.
type HealthConfig struct {
	// MaxTeardownBacklog fails readiness once more teardowns than this are queued.
	MaxTeardownBacklog int64 `mapstructure:"max_teardown_backlog"`
	// MinSharedMemoryFree fails readiness when /dev/shm has fewer free bytes.
	MinSharedMemoryFree uint64 `mapstructure:"min_shared_memory_free"`
}

// MetricsConfig controls the Prometheus collectors.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Transport: *transport.DefaultConfig(),
		Health: HealthConfig{
			MaxTeardownBacklog:  1024,
			MinSharedMemoryFree: 1 << 20,
		},
		Metrics: MetricsConfig{Namespace: "xfer"},
	}
}

// Load reads configuration from path, or from XFER_CONFIG when path is empty.
// A missing file is not an error when no path was named; defaults and
// environment overrides still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	seedDefaults(v, cfg)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("xfer")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".xfer"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// seedDefaults registers every key so env-only configs work.
func seedDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	v.SetDefault("transport.temp_dir", cfg.Transport.TempDir)
	v.SetDefault("transport.max_data_size", cfg.Transport.MaxDataSize)
	v.SetDefault("transport.grace_delay", cfg.Transport.GraceDelay)
	v.SetDefault("transport.segment_prefix", cfg.Transport.SegmentPrefix)
	v.SetDefault("transport.force_file_fallback", cfg.Transport.ForceFileFallback)
	v.SetDefault("transport.teardown_workers", cfg.Transport.TeardownWorkers)
	v.SetDefault("transport.write_retries", cfg.Transport.WriteRetries)

	v.SetDefault("health.max_teardown_backlog", cfg.Health.MaxTeardownBacklog)
	v.SetDefault("health.min_shared_memory_free", cfg.Health.MinSharedMemoryFree)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "":
		c.Log.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("invalid log.format: %q", c.Log.Format)
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	if err := transport.VerifyConfig(&c.Transport); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	return nil
}
