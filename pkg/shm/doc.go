// Package shm provides named shared-memory segments for handing a payload to
// another process on the same machine.
//
// A writer creates a segment sized exactly to its payload and later removes it;
// a reader opens the segment by name, copies the bytes out and closes its view.
// The package is instrumented with OpenTelemetry metrics and tracing (OTel Go SDK v1.30.0).
//
// Platform-specific helpers are in internal/shm. Where named segments are not
// reachable across unrelated processes, Supported reports false and callers
// fall back to files.
//
// Example usage:
//
//	seg, err := shm.Open(ctx, shm.OpenOptions{Name: md.MmapName, Size: int(md.DataSize)})
//	if err != nil {
//	  return err
//	}
//	defer seg.Close()
//	data := seg.ReadAll()
package shm
