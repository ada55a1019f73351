package transport

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/srediag/xfer/api"
	"github.com/srediag/xfer/pkg/metrics"
	"github.com/srediag/xfer/pkg/shm"
)

const poolReleaseTimeout = 5 * time.Second

// MmapTransport hands payloads over through named shared-memory segments, or
// through files where the platform has no usable named shared memory.
//
// There is no "reader is done" signal, so Cleanup does not destroy a segment;
// it schedules destruction after GraceDelay to give the reader time to open
// the name it learned out of band. ForceCleanup skips the delay for callers
// that hold an explicit acknowledgment from the reader.
//
// A name is destroyed at most once: every destroying path first takes the
// entry out of the live map with an atomic Pop.
type MmapTransport struct {
	root       string
	prefix     string
	graceDelay time.Duration
	retries    uint64
	fallback   bool

	provider  *shm.Provider
	pool      *ants.Pool
	scheduler *teardownScheduler
	opts      options

	segments cmap.ConcurrentMap[string, *segmentEntry]
	pending  cmap.ConcurrentMap[string, time.Time]
	disposed atomic.Bool
}

type segmentEntry struct {
	name      string
	size      int
	createdAt time.Time
	// exactly one of segment and filePath is set
	segment  *shm.Segment
	filePath string
}

// SegmentInfo is a point-in-time view of a tracked segment.
type SegmentInfo struct {
	Name      string
	Size      int
	CreatedAt time.Time
	FilePath  string
	Pending   bool
}

// NewMmapTransport returns an MmapTransport. Whether named shared memory is
// used is decided once, here.
func NewMmapTransport(config *Config, opts ...Option) (*MmapTransport, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	if err := prepareTempDir(config.TempDir); err != nil {
		return nil, err
	}
	o := newOptions(api.ModeMmap, opts)
	provider := o.provider
	if provider == nil {
		var err error
		if provider, err = shm.NewProvider(shm.Config{}); err != nil {
			return nil, err
		}
	}
	pool, err := ants.NewPool(config.TeardownWorkers)
	if err != nil {
		return nil, err
	}
	t := &MmapTransport{
		root:       config.TempDir,
		prefix:     config.SegmentPrefix,
		graceDelay: config.GraceDelay,
		retries:    config.WriteRetries,
		fallback:   config.ForceFileFallback || !provider.Supported(),
		provider:   provider,
		pool:       pool,
		opts:       o,
		segments:   cmap.New[*segmentEntry](),
		pending:    cmap.New[time.Time](),
	}
	t.scheduler = newTeardownScheduler(pool, t.teardown, o.log)
	if t.fallback {
		o.log.Info("named shared memory unavailable, using file fallback", zap.String("dir", t.root))
	}
	return t, nil
}

// Mode implements api.Transport.
func (t *MmapTransport) Mode() string { return api.ModeMmap }

// UsesFileFallback reports whether segments are backed by files.
func (t *MmapTransport) UsesFileFallback() bool { return t.fallback }

// GraceDelay returns the delay between Cleanup and destruction.
func (t *MmapTransport) GraceDelay() time.Duration { return t.graceDelay }

// SegmentName returns the segment name Send uses for md.
func (t *MmapTransport) SegmentName(md *api.TransferMetadata) string {
	return segmentName(t.prefix, md)
}

// Send implements api.Transport. It fails with api.ErrUseAfterDispose once the
// transport is disposed.
//
// With named shared memory, md.MmapName names a segment sized exactly to the
// payload and md.FilePath is empty. With the file fallback, md.FilePath is the
// readable location and md.MmapName is only the key for cleanup.
func (t *MmapTransport) Send(ctx context.Context, target api.Process, payload []byte, md *api.TransferMetadata) (bool, error) {
	if t.disposed.Load() {
		return false, api.ErrUseAfterDispose
	}
	if md == nil {
		return false, errNilMetadata
	}
	if targetGone(target) {
		t.opts.reject(api.ModeMmap, md, "target exited")
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		t.opts.reject(api.ModeMmap, md, "context done", zap.Error(err))
		return false, nil
	}

	name := t.SegmentName(md)
	entry := &segmentEntry{name: name, size: len(payload), createdAt: time.Now()}
	if t.fallback {
		path := filepath.Join(t.root, name+"_"+uuid.NewString()[:8]+".shm")
		if err := writeFileAtomic(ctx, path, payload, t.retries); err != nil {
			t.opts.log.Warn("fallback write failed", append(transferFields(md), zap.String("path", path), zap.Error(err))...)
			t.opts.metrics.ObserveSend(api.ModeMmap, false, 0)
			return false, nil
		}
		entry.filePath = path
	} else {
		seg, err := t.provider.Create(ctx, name, payload)
		if err != nil {
			t.opts.log.Warn("segment create failed", append(transferFields(md), zap.String("name", name), zap.Error(err))...)
			t.opts.metrics.ObserveSend(api.ModeMmap, false, 0)
			return false, nil
		}
		entry.segment = seg
	}

	if !t.segments.SetIfAbsent(name, entry) {
		t.destroy(entry, metrics.CleanupImmediate)
		t.opts.reject(api.ModeMmap, md, "segment name in use", zap.String("name", name))
		return false, nil
	}
	// Dispose may have swept the map between the first check and registration.
	if t.disposed.Load() {
		if e, ok := t.segments.Pop(name); ok {
			t.destroy(e, metrics.CleanupDisposed)
		}
		return false, api.ErrUseAfterDispose
	}

	md.MmapName = name
	md.FilePath = entry.filePath
	md.TransportMode = api.ModeMmap
	md.DataSize = int64(len(payload))
	t.opts.sent(md)
	return true, nil
}

// Cleanup implements api.Transport. The segment stays readable for GraceDelay
// and is then destroyed; it counts as pending from this call on. Unknown names
// and repeated calls are no-ops.
func (t *MmapTransport) Cleanup(md *api.TransferMetadata) {
	if md == nil || md.MmapName == "" {
		return
	}
	name := md.MmapName
	if !t.segments.Has(name) {
		return
	}
	due := time.Now().Add(t.graceDelay)
	if !t.pending.SetIfAbsent(name, due) {
		return
	}
	if err := t.scheduler.schedule(name, due); err != nil {
		// Dispose is running and destroys every tracked segment itself.
		t.pending.Remove(name)
		return
	}
	// ForceCleanup may have destroyed the segment after the Has check above.
	if !t.segments.Has(name) {
		t.pending.RemoveCb(name, func(_ string, v time.Time, exists bool) bool {
			return exists && v.Equal(due)
		})
		return
	}
	t.opts.metrics.ObserveCleanup(api.ModeMmap, metrics.CleanupScheduled)
	t.opts.audit(api.EventCleanup, map[string]interface{}{
		"mode": api.ModeMmap,
		"name": name,
		"due":  due,
	})
}

// ForceCleanup destroys name immediately, bypassing the grace delay. It
// returns false, changing nothing, when name is empty or not tracked.
func (t *MmapTransport) ForceCleanup(name string) bool {
	if name == "" {
		return false
	}
	entry, ok := t.segments.Pop(name)
	if !ok {
		return false
	}
	t.pending.Remove(name)
	t.destroy(entry, metrics.CleanupForced)
	return true
}

// Dispose destroys every tracked segment immediately, pending or not, and
// makes later Send calls fail with api.ErrUseAfterDispose. Repeated calls are
// no-ops.
func (t *MmapTransport) Dispose() {
	if !t.disposed.CompareAndSwap(false, true) {
		return
	}
	t.scheduler.stop()

	var wg sync.WaitGroup
	for _, name := range t.segments.Keys() {
		entry, ok := t.segments.Pop(name)
		if !ok {
			continue
		}
		wg.Add(1)
		if err := t.pool.Submit(func() {
			defer wg.Done()
			t.destroy(entry, metrics.CleanupDisposed)
		}); err != nil {
			t.destroy(entry, metrics.CleanupDisposed)
			wg.Done()
		}
	}
	wg.Wait()
	t.pending.Clear()

	if err := t.pool.ReleaseTimeout(poolReleaseTimeout); err != nil {
		t.opts.log.Warn("teardown pool release timed out", zap.Error(err))
	}
	t.opts.audit(api.EventTransportClosed, map[string]interface{}{"mode": api.ModeMmap})
}

// Close disposes the transport. It always returns nil.
func (t *MmapTransport) Close() error {
	t.Dispose()
	return nil
}

// Disposed reports whether Dispose has run.
func (t *MmapTransport) Disposed() bool { return t.disposed.Load() }

// ActiveCount returns the number of segments still open, including those
// waiting out their grace delay.
func (t *MmapTransport) ActiveCount() int { return t.segments.Count() }

// PendingCleanupCount returns the number of segments scheduled for teardown
// but not yet destroyed.
func (t *MmapTransport) PendingCleanupCount() int { return t.pending.Count() }

// TeardownBacklog returns the number of scheduled teardowns not yet dispatched.
func (t *MmapTransport) TeardownBacklog() int64 { return t.scheduler.backlog() }

// Segments returns a snapshot of the tracked segments ordered by name.
func (t *MmapTransport) Segments() []SegmentInfo {
	items := t.segments.Items()
	out := make([]SegmentInfo, 0, len(items))
	for name, e := range items {
		out = append(out, SegmentInfo{
			Name:      name,
			Size:      e.size,
			CreatedAt: e.createdAt,
			FilePath:  e.filePath,
			Pending:   t.pending.Has(name),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// teardown is the scheduled action. It only acts while the pending mark it
// was scheduled for is still in place: the segment may already be gone through
// ForceCleanup or Dispose, or a later segment may have reused the name.
func (t *MmapTransport) teardown(name string, due time.Time) {
	current := t.pending.RemoveCb(name, func(_ string, v time.Time, exists bool) bool {
		return exists && v.Equal(due)
	})
	if !current {
		return
	}
	if entry, ok := t.segments.Pop(name); ok {
		t.destroy(entry, metrics.CleanupTeardown)
	}
}

// destroy releases an entry already removed from the live map. Failures are
// logged and swallowed.
func (t *MmapTransport) destroy(e *segmentEntry, kind string) {
	ctx := context.Background()
	if e.segment != nil {
		if err := e.segment.Remove(ctx); err != nil {
			t.opts.log.Warn("segment teardown failed", zap.String("name", e.name), zap.Error(err))
		}
	}
	if e.filePath != "" {
		if _, err := removeFile(ctx, e.filePath, t.retries); err != nil {
			t.opts.log.Warn("fallback file teardown failed", zap.String("name", e.name),
				zap.String("path", e.filePath), zap.Error(err))
		}
	}
	t.opts.metrics.ObserveCleanup(api.ModeMmap, kind)
	event := api.EventTeardown
	if kind == metrics.CleanupForced {
		event = api.EventForcedTeardown
	}
	t.opts.audit(event, map[string]interface{}{
		"name": e.name,
		"kind": kind,
		"age":  time.Since(e.createdAt),
	})
}
