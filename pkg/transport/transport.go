// Package transport moves rendered payloads between a host process and its
// workers through one of three interchangeable mechanisms: the target's
// standard input, a uniquely named temp file, or a named shared-memory segment.
package transport

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/srediag/xfer/api"
	"github.com/srediag/xfer/pkg/metrics"
	"github.com/srediag/xfer/pkg/security"
	"github.com/srediag/xfer/pkg/shm"
)

// Transport is the capability all mechanisms implement.
type Transport = api.Transport

var (
	_ Transport = (*StdinTransport)(nil)
	_ Transport = (*FileTransport)(nil)
	_ Transport = (*MmapTransport)(nil)
)

var errNilMetadata = errors.New("transport: nil metadata")

// Option configures the collaborators of a transport.
type Option func(*options)

type options struct {
	log      *zap.Logger
	metrics  *metrics.Collector
	auditor  api.Auditor
	provider *shm.Provider
}

// WithLogger sets the logger used for swallowed failures and rejected sends.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics records sends and cleanups on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithAuditor reports lifecycle events to a.
func WithAuditor(a api.Auditor) Option {
	return func(o *options) { o.auditor = a }
}

// WithSegmentProvider sets the shared-memory provider of an MmapTransport.
func WithSegmentProvider(p *shm.Provider) Option {
	return func(o *options) { o.provider = p }
}

func newOptions(mode string, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	o.log = o.log.With(zap.String("mode", mode))
	return o
}

func transferFields(md *api.TransferMetadata) []zap.Field {
	return []zap.Field{
		zap.String("session", md.SessionID),
		zap.Int64("seq", md.SequenceNumber),
	}
}

func (o *options) reject(mode string, md *api.TransferMetadata, reason string, fields ...zap.Field) {
	o.log.Debug("send rejected: "+reason, append(transferFields(md), fields...)...)
	o.metrics.ObserveSend(mode, false, 0)
}

func (o *options) sent(md *api.TransferMetadata) {
	o.metrics.ObserveSend(md.TransportMode, true, int(md.DataSize))
	o.audit(api.EventSent, map[string]interface{}{
		"session":  md.SessionID,
		"seq":      md.SequenceNumber,
		"mode":     md.TransportMode,
		"size":     md.DataSize,
		"location": md.Locator(),
	})
}

func (o *options) audit(event string, details map[string]interface{}) {
	if o.auditor == nil {
		return
	}
	if err := o.auditor.LogEvent(event, details); err != nil {
		o.log.Warn("audit event dropped", zap.String("event", event), zap.Error(err))
	}
}

// targetGone reports whether target cannot receive anything.
func targetGone(target api.Process) bool {
	return target == nil || target.HasExited()
}

func fileName(md *api.TransferMetadata) string {
	format := md.OutputFormat
	if format == "" {
		format = "bin"
	}
	return fmt.Sprintf("%s_%d_%s.tmp",
		security.SanitizeComponent(md.SessionID), md.SequenceNumber, security.SanitizeComponent(format))
}

func segmentName(prefix string, md *api.TransferMetadata) string {
	return fmt.Sprintf("%s_%s_%d", prefix, security.SanitizeComponent(md.SessionID), md.SequenceNumber)
}
