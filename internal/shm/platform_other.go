//go:build !linux && !windows

package shm

import (
	"context"

	"github.com/srediag/xfer/api"
)

// Supported reports false: named segments created without cgo are not
// reachable from unrelated processes on this platform.
func Supported() bool {
	return false
}

// CreateRegion is not available on this platform.
func CreateRegion(ctx context.Context, name string, data []byte) (*Region, error) {
	return nil, api.ErrUnsupported
}

// MapRegion is not available on this platform.
func MapRegion(ctx context.Context, opts MapOptions) (*Region, error) {
	return nil, api.ErrUnsupported
}

// UnmapRegion is a no-op on this platform.
func UnmapRegion(ctx context.Context, region *Region) error {
	return nil
}

// RemoveRegion is a no-op on this platform.
func RemoveRegion(ctx context.Context, region *Region) error {
	return nil
}
