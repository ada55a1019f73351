// Package api defines public API contracts for xfer.
package api

import (
	"context"
	"io"
)

// Process is the process on the other end of a handoff.
type Process interface {
	// HasExited reports whether the process is known to have terminated.
	HasExited() bool
	// Stdin returns the writable input stream of the process, or nil when the
	// process was not started with one.
	Stdin() io.WriteCloser
}

// Transport moves a rendered payload to a target process.
type Transport interface {
	// Mode returns the constant identifier of the transport.
	Mode() string
	// Send hands payload to target and fills in the mode-specific fields of md.
	// Expected runtime failures (exited process, size cap, I/O failure) are
	// reported as false with a nil error; the error is reserved for misuse.
	Send(ctx context.Context, target Process, payload []byte, md *TransferMetadata) (bool, error)
	// Cleanup releases whatever Send created for md. It never fails and is
	// idempotent.
	Cleanup(md *TransferMetadata)
}
