// Package shm contains platform-specific helpers for named shared memory segments.
package shm

import (
	"fmt"
	"strings"
)

// Region represents a named shared-memory segment held by this process.
type Region struct {
	Name string
	Size int
	// Addr is the mapped view. It is nil for a writer once the payload has been
	// copied in, and for zero-length segments.
	Addr []byte

	// platform handle (fd on Unix, HANDLE on Windows)
	handle uintptr
	closed bool
}

// MapOptions defines options for mapping an existing segment.
type MapOptions struct {
	Name string
	// Size is the number of bytes to map; zero maps the whole segment where the
	// platform can tell its size.
	Size int
}

// Function implementations are provided in platform-specific files (platform_linux.go,
// platform_windows.go, platform_other.go).

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("shm: empty segment name")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("shm: invalid segment name %q", name)
	}
	return nil
}
