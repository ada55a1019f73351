package adapter

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/srediag/xfer/pkg/audit"
	"github.com/srediag/xfer/pkg/config"
	"github.com/srediag/xfer/pkg/health"
	"github.com/srediag/xfer/pkg/metrics"
	"github.com/srediag/xfer/pkg/transport"
)

const devShm = "/dev/shm"

// Stack is the set of transports a producer process runs, wired to logging,
// metrics, audit and health checks.
type Stack struct {
	Registry *transport.Registry
	Mmap     *transport.MmapTransport
	Metrics  *metrics.Collector
	Health   healthcheck.Handler
}

// NewStack builds all three transports from cfg. When reg is nil nothing is
// registered with Prometheus.
func NewStack(cfg *config.Config, log *zap.Logger, reg prometheus.Registerer) (*Stack, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	provider, err := NewSegmentProvider()
	if err != nil {
		return nil, fmt.Errorf("segment provider: %w", err)
	}
	collector := metrics.NewCollector(cfg.Metrics.Namespace)
	opts := []transport.Option{
		transport.WithLogger(log),
		transport.WithMetrics(collector),
		transport.WithAuditor(audit.NewLogger(log)),
		transport.WithSegmentProvider(provider),
	}

	stdin, err := transport.NewStdinTransport(&cfg.Transport, opts...)
	if err != nil {
		return nil, err
	}
	file, err := transport.NewFileTransport(&cfg.Transport, opts...)
	if err != nil {
		return nil, err
	}
	mmap, err := transport.NewMmapTransport(&cfg.Transport, opts...)
	if err != nil {
		return nil, err
	}
	registry, err := transport.NewRegistry(stdin, file, mmap)
	if err != nil {
		mmap.Dispose()
		return nil, err
	}

	s := &Stack{
		Registry: registry,
		Mmap:     mmap,
		Metrics:  collector,
		Health:   health.NewHandler(reg, cfg.Metrics.Namespace),
	}
	s.Health.AddLivenessCheck("temp-dir", health.TempDirCheck(cfg.Transport.TempDir))
	s.Health.AddReadinessCheck("teardown-backlog", health.BacklogCheck(mmap, cfg.Health.MaxTeardownBacklog))
	if runtime.GOOS == "linux" && !mmap.UsesFileFallback() {
		s.Health.AddReadinessCheck("shared-memory-free", health.FreeSpaceCheck(devShm, cfg.Health.MinSharedMemoryFree))
	}

	if reg != nil {
		cs := append([]prometheus.Collector{collector}, metrics.NewSegmentGauges(cfg.Metrics.Namespace, mmap)...)
		for _, c := range cs {
			if err := reg.Register(c); err != nil {
				mmap.Dispose()
				return nil, fmt.Errorf("register metrics: %w", err)
			}
		}
	}
	return s, nil
}

// Close disposes the transports. Pending teardowns run immediately.
func (s *Stack) Close() error {
	if s == nil || s.Registry == nil {
		return errors.New("adapter: stack not initialised")
	}
	return s.Registry.Close()
}
