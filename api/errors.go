package api

import "errors"

var (
	// ErrUseAfterDispose is returned by Send on a transport that was disposed.
	ErrUseAfterDispose = errors.New("transport used after dispose")
	// ErrInvalidTempDir rejects an empty or whitespace temp directory.
	ErrInvalidTempDir = errors.New("temp directory must not be empty")
	// ErrNotFound is returned when a locator no longer resolves.
	ErrNotFound = errors.New("transfer resource not found")
	// ErrUnsupported is returned when named shared memory is unavailable.
	ErrUnsupported = errors.New("named shared memory not supported on this platform")
	// ErrUnknownMode is returned for a mode with no registered transport.
	ErrUnknownMode = errors.New("unknown transport mode")
	// ErrNoSpace is returned when shared memory has not enough room for a segment.
	ErrNoSpace = errors.New("not enough shared memory left")
)
