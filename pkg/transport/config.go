package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/srediag/xfer/api"
	"github.com/srediag/xfer/pkg/security"
)

const (
	defaultMaxDataSize     = 64 << 20
	defaultGraceDelay      = 2 * time.Second
	defaultSegmentPrefix   = "xfer"
	defaultTeardownWorkers = 4
	defaultWriteRetries    = 3
)

// Config holds the settings of the transports. The owning process passes it in
// at construction; nothing here is read from the environment.
type Config struct {
	// TempDir is the root for FileTransport files and the mmap file fallback.
	TempDir string `mapstructure:"temp_dir"`
	// MaxDataSize caps StdinTransport payloads, in bytes.
	MaxDataSize int64 `mapstructure:"max_data_size"`
	// GraceDelay is how long MmapTransport keeps a segment alive after Cleanup
	// so the reader can open it. It trades latency for liveness; it is not a
	// correctness guarantee.
	GraceDelay time.Duration `mapstructure:"grace_delay"`
	// SegmentPrefix starts every shared-memory segment name.
	SegmentPrefix string `mapstructure:"segment_prefix"`
	// ForceFileFallback makes MmapTransport use files even where named
	// shared memory is available.
	ForceFileFallback bool `mapstructure:"force_file_fallback"`
	// TeardownWorkers bounds concurrent segment teardowns.
	TeardownWorkers int `mapstructure:"teardown_workers"`
	// WriteRetries is the number of retries for transient filesystem errors.
	WriteRetries uint64 `mapstructure:"write_retries"`
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() *Config {
	return &Config{
		TempDir:         filepath.Join(os.TempDir(), "xfer"),
		MaxDataSize:     defaultMaxDataSize,
		GraceDelay:      defaultGraceDelay,
		SegmentPrefix:   defaultSegmentPrefix,
		TeardownWorkers: defaultTeardownWorkers,
		WriteRetries:    defaultWriteRetries,
	}
}

// VerifyConfig checks the settings shared by all transports. The temp
// directory is checked by the transports that use it.
func VerifyConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("transport: nil config")
	}
	if config.MaxDataSize <= 0 {
		return fmt.Errorf("MaxDataSize must be positive, got %d", config.MaxDataSize)
	}
	if config.GraceDelay < 0 {
		return fmt.Errorf("GraceDelay must not be negative, got %s", config.GraceDelay)
	}
	if config.SegmentPrefix == "" || security.SanitizeComponent(config.SegmentPrefix) != config.SegmentPrefix {
		return fmt.Errorf("SegmentPrefix %q must be non-empty and contain only [A-Za-z0-9.-]", config.SegmentPrefix)
	}
	if config.TeardownWorkers <= 0 {
		return fmt.Errorf("TeardownWorkers must be positive, got %d", config.TeardownWorkers)
	}
	return nil
}

// prepareTempDir validates dir and creates it if absent.
func prepareTempDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return api.ErrInvalidTempDir
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create temp dir %s: %w", dir, err)
	}
	return nil
}
