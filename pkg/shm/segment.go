package shm

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	internalshm "github.com/srediag/xfer/internal/shm"
)

const instrumentationName = "github.com/srediag/xfer/pkg/shm"

// Config holds the telemetry used by a Provider. Nil fields fall back to no-op
// implementations.
type Config struct {
	Meter  metric.Meter
	Tracer trace.Tracer
}

// OpenOptions defines options for opening an existing segment.
type OpenOptions struct {
	// Name is the identifier of the segment.
	Name string
	// Size is the number of bytes to map. Zero maps the whole segment where the
	// platform can determine its length.
	Size int
}

// Provider creates and opens segments.
type Provider struct {
	tracer  trace.Tracer
	created metric.Int64Counter
	removed metric.Int64Counter
	opened  metric.Int64Counter
	bytes   metric.Int64Histogram
}

// Segment is a named shared-memory segment held by this process.
type Segment struct {
	region   *internalshm.Region
	provider *Provider
	owner    bool
}

var defaultProvider = mustProvider(Config{})

func mustProvider(cfg Config) *Provider {
	p, err := NewProvider(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// NewProvider builds a Provider and registers its instruments on cfg.Meter.
func NewProvider(cfg Config) (*Provider, error) {
	meter := cfg.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	p := &Provider{tracer: tracer}
	var err error
	if p.created, err = meter.Int64Counter("xfer.shm.segments.created",
		metric.WithDescription("Shared-memory segments created.")); err != nil {
		return nil, err
	}
	if p.removed, err = meter.Int64Counter("xfer.shm.segments.removed",
		metric.WithDescription("Shared-memory segments removed by their owner.")); err != nil {
		return nil, err
	}
	if p.opened, err = meter.Int64Counter("xfer.shm.segments.opened",
		metric.WithDescription("Shared-memory segments opened by name.")); err != nil {
		return nil, err
	}
	if p.bytes, err = meter.Int64Histogram("xfer.shm.segment.size",
		metric.WithDescription("Size of created segments."),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	return p, nil
}

// Supported reports whether this platform offers named segments usable across
// unrelated processes.
func (p *Provider) Supported() bool {
	return internalshm.Supported()
}

// Create creates the segment name holding a copy of data.
func (p *Provider) Create(ctx context.Context, name string, data []byte) (*Segment, error) {
	ctx, span := p.tracer.Start(ctx, "shm.Create", trace.WithAttributes(
		attribute.String("shm.name", name),
		attribute.Int("shm.size", len(data)),
	))
	defer span.End()

	region, err := internalshm.CreateRegion(ctx, name, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}
	p.created.Add(ctx, 1)
	p.bytes.Record(ctx, int64(len(data)))
	return &Segment{region: region, provider: p, owner: true}, nil
}

// Open maps an existing segment read-only.
func (p *Provider) Open(ctx context.Context, opts OpenOptions) (*Segment, error) {
	if opts.Size < 0 {
		return nil, errors.New("invalid segment size")
	}
	ctx, span := p.tracer.Start(ctx, "shm.Open", trace.WithAttributes(
		attribute.String("shm.name", opts.Name),
	))
	defer span.End()

	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{Name: opts.Name, Size: opts.Size})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return nil, err
	}
	p.opened.Add(ctx, 1)
	return &Segment{region: region, provider: p}, nil
}

// Open maps an existing segment read-only without telemetry.
func Open(ctx context.Context, opts OpenOptions) (*Segment, error) {
	return defaultProvider.Open(ctx, opts)
}

// Supported reports whether this platform offers named segments.
func Supported() bool {
	return internalshm.Supported()
}

// Name returns the segment name.
func (s *Segment) Name() string {
	return s.region.Name
}

// Size returns the segment size in bytes.
func (s *Segment) Size() int {
	return s.region.Size
}

// Bytes returns the mapped view. It is only valid until Close and is nil for
// segments opened by Create.
func (s *Segment) Bytes() []byte {
	return s.region.Addr
}

// ReadAll returns a copy of the mapped bytes.
func (s *Segment) ReadAll() []byte {
	out := make([]byte, len(s.region.Addr))
	copy(out, s.region.Addr)
	return out
}

// Close releases this process's view of the segment without destroying it.
func (s *Segment) Close() error {
	return internalshm.UnmapRegion(context.Background(), s.region)
}

// Remove destroys a segment created by this process so it can no longer be
// opened by name.
func (s *Segment) Remove(ctx context.Context) error {
	if !s.owner {
		return fmt.Errorf("shm: %s was not created by this process", s.region.Name)
	}
	if err := internalshm.RemoveRegion(ctx, s.region); err != nil {
		return err
	}
	s.provider.removed.Add(ctx, 1)
	return nil
}
