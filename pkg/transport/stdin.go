package transport

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/srediag/xfer/api"
)

// StdinTransport writes the payload into the target's input stream and closes
// it so the reader observes end of data. It creates no external resource.
//
// The transfer is bound to the target's lifetime and to pipe buffering, so it
// suits small and medium payloads that need no out-of-band handshake.
type StdinTransport struct {
	maxDataSize int64
	opts        options
}

// NewStdinTransport returns a StdinTransport. A nil config uses DefaultConfig.
func NewStdinTransport(config *Config, opts ...Option) (*StdinTransport, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	return &StdinTransport{
		maxDataSize: config.MaxDataSize,
		opts:        newOptions(api.ModeStdin, opts),
	}, nil
}

// Mode implements api.Transport.
func (t *StdinTransport) Mode() string { return api.ModeStdin }

// MaxDataSize returns the largest payload Send accepts.
func (t *StdinTransport) MaxDataSize() int64 { return t.maxDataSize }

// Send implements api.Transport. Payloads larger than MaxDataSize are refused
// before anything is written.
func (t *StdinTransport) Send(ctx context.Context, target api.Process, payload []byte, md *api.TransferMetadata) (bool, error) {
	if md == nil {
		return false, errNilMetadata
	}
	if targetGone(target) {
		t.opts.reject(api.ModeStdin, md, "target exited")
		return false, nil
	}
	if int64(len(payload)) > t.maxDataSize {
		t.opts.reject(api.ModeStdin, md, "payload exceeds limit",
			zap.Int("size", len(payload)), zap.Int64("limit", t.maxDataSize))
		return false, nil
	}
	w := target.Stdin()
	if w == nil {
		t.opts.reject(api.ModeStdin, md, "target has no stdin")
		return false, nil
	}
	if err := writeAndClose(ctx, w, payload); err != nil {
		t.opts.log.Warn("stdin write failed", append(transferFields(md), zap.Error(err))...)
		t.opts.metrics.ObserveSend(api.ModeStdin, false, 0)
		return false, nil
	}
	md.TransportMode = api.ModeStdin
	md.DataSize = int64(len(payload))
	t.opts.sent(md)
	return true, nil
}

// Cleanup implements api.Transport. Nothing outlives Send, so it does nothing.
func (t *StdinTransport) Cleanup(md *api.TransferMetadata) {}

// writeAndClose writes payload and closes w. Cancelling ctx closes w to unblock
// a write stuck on a full pipe.
func writeAndClose(ctx context.Context, w io.WriteCloser, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	errc := make(chan error, 1)
	go func() {
		_, err := w.Write(payload)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		errc <- err
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		_ = w.Close()
		return ctx.Err()
	}
}
