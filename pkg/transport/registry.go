package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/srediag/xfer/api"
)

// Registry selects a transport by mode string.
type Registry struct {
	transports map[string]Transport
	order      []string
}

// NewRegistry registers ts in order. Modes must be non-empty and unique.
func NewRegistry(ts ...Transport) (*Registry, error) {
	r := &Registry{transports: make(map[string]Transport, len(ts))}
	for _, t := range ts {
		if t == nil {
			return nil, errors.New("transport: nil transport")
		}
		mode := t.Mode()
		if mode == "" {
			return nil, errors.New("transport: empty mode")
		}
		if _, ok := r.transports[mode]; ok {
			return nil, fmt.Errorf("transport: mode %q registered twice", mode)
		}
		r.transports[mode] = t
		r.order = append(r.order, mode)
	}
	return r, nil
}

// Get returns the transport registered for mode.
func (r *Registry) Get(mode string) (Transport, bool) {
	t, ok := r.transports[mode]
	return t, ok
}

// Modes returns the registered modes in registration order.
func (r *Registry) Modes() []string {
	return append([]string(nil), r.order...)
}

// Send sends through the transport registered for mode.
func (r *Registry) Send(ctx context.Context, mode string, target api.Process, payload []byte, md *api.TransferMetadata) (bool, error) {
	t, ok := r.transports[mode]
	if !ok {
		return false, fmt.Errorf("%w: %q", api.ErrUnknownMode, mode)
	}
	return t.Send(ctx, target, payload, md)
}

// SendFirst tries modes in order, registration order when none are given, and
// returns the mode that accepted the payload. A transport that fails with an
// error is skipped; the errors are returned only if no mode succeeded.
func (r *Registry) SendFirst(ctx context.Context, target api.Process, payload []byte, md *api.TransferMetadata, modes ...string) (string, error) {
	if len(modes) == 0 {
		modes = r.order
	}
	var errs []error
	for _, mode := range modes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		t, ok := r.transports[mode]
		if !ok {
			return "", fmt.Errorf("%w: %q", api.ErrUnknownMode, mode)
		}
		sent, err := t.Send(ctx, target, payload, md)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mode, err))
			continue
		}
		if sent {
			return mode, nil
		}
	}
	return "", errors.Join(errs...)
}

// Cleanup releases md through the transport that sent it. Unknown modes are ignored.
func (r *Registry) Cleanup(md *api.TransferMetadata) {
	if md == nil {
		return
	}
	if t, ok := r.transports[md.TransportMode]; ok {
		t.Cleanup(md)
	}
}

// Close closes every registered transport that holds resources.
func (r *Registry) Close() error {
	var errs []error
	for _, mode := range r.order {
		if c, ok := r.transports[mode].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", mode, err))
			}
		}
	}
	return errors.Join(errs...)
}
