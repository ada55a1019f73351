// Package health exposes liveness and readiness of the output transports over
// HTTP.
package health

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/disk"
)

// BacklogSource reports queued work, e.g. an MmapTransport's teardown backlog.
type BacklogSource interface {
	TeardownBacklog() int64
}

// NewHandler returns a handler serving /live and /ready. When reg is non-nil
// the check results are also exported as Prometheus gauges under namespace.
func NewHandler(reg prometheus.Registerer, namespace string) healthcheck.Handler {
	if reg == nil {
		return healthcheck.NewHandler()
	}
	return healthcheck.NewMetricsHandler(reg, namespace)
}

// TempDirCheck fails when dir does not accept new files.
func TempDirCheck(dir string) healthcheck.Check {
	return func() error {
		probe := filepath.Join(dir, ".probe-"+uuid.NewString())
		f, err := os.OpenFile(probe, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("temp dir %s not writable: %w", dir, err)
		}
		_ = f.Close()
		return os.Remove(probe)
	}
}

// FreeSpaceCheck fails when the filesystem holding path has less than min
// bytes free.
func FreeSpaceCheck(path string, min uint64) healthcheck.Check {
	return func() error {
		stat, err := disk.Usage(path)
		if err != nil {
			return fmt.Errorf("disk usage %s: %w", path, err)
		}
		if stat.Free < min {
			return fmt.Errorf("%s has %d bytes free, need %d", path, stat.Free, min)
		}
		return nil
	}
}

// BacklogCheck fails when src has more than max queued items.
func BacklogCheck(src BacklogSource, max int64) healthcheck.Check {
	return func() error {
		if n := src.TeardownBacklog(); n > max {
			return fmt.Errorf("teardown backlog %d exceeds %d", n, max)
		}
		return nil
	}
}
