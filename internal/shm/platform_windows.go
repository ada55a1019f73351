//go:build windows

package shm

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/srediag/xfer/api"
)

// Segments live in the session-local namespace so no privilege is required.
const namespace = `Local\`

var procOpenFileMappingW = windows.NewLazySystemDLL("kernel32.dll").NewProc("OpenFileMappingW")

// Supported reports whether named file mappings are available. They always are on Windows.
func Supported() bool {
	return true
}

func mappingName(name string) (*uint16, error) {
	return windows.UTF16PtrFromString(namespace + name)
}

// CreateRegion creates a pagefile-backed named mapping sized to data and copies data in.
func CreateRegion(ctx context.Context, name string, data []byte) (*Region, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	namePtr, err := mappingName(name)
	if err != nil {
		return nil, err
	}
	// a zero-sized pagefile mapping is rejected by the kernel
	mapSize := uint64(len(data))
	if mapSize == 0 {
		mapSize = 1
	}
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE,
		uint32(mapSize>>32), uint32(mapSize), namePtr)
	if err != nil {
		if h != 0 {
			_ = windows.CloseHandle(h)
		}
		return nil, fmt.Errorf("CreateFileMapping %s: %w", name, err)
	}
	if len(data) > 0 {
		addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(len(data)))
		if err != nil {
			_ = windows.CloseHandle(h)
			return nil, fmt.Errorf("MapViewOfFile: %w", err)
		}
		copy(unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(data)), data)
		if err := windows.UnmapViewOfFile(addr); err != nil {
			_ = windows.CloseHandle(h)
			return nil, fmt.Errorf("UnmapViewOfFile: %w", err)
		}
	}
	return &Region{Name: name, Size: len(data), handle: uintptr(h)}, nil
}

// MapRegion opens an existing named mapping read-only (Windows implementation).
// The size must be supplied because a view cannot report the logical length.
func MapRegion(ctx context.Context, opts MapOptions) (*Region, error) {
	if err := validName(opts.Name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	namePtr, err := mappingName(opts.Name)
	if err != nil {
		return nil, err
	}
	r0, _, e1 := procOpenFileMappingW.Call(uintptr(windows.FILE_MAP_READ), 0, uintptr(unsafe.Pointer(namePtr)))
	if r0 == 0 {
		if errors.Is(e1, windows.ERROR_FILE_NOT_FOUND) {
			return nil, fmt.Errorf("%w: %s", api.ErrNotFound, opts.Name)
		}
		return nil, fmt.Errorf("OpenFileMapping %s: %w", opts.Name, e1)
	}
	h := windows.Handle(r0)
	region := &Region{Name: opts.Name, Size: opts.Size, handle: uintptr(h)}
	if opts.Size <= 0 {
		region.Size = 0
		return region, nil
	}
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(opts.Size))
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("MapViewOfFile: %w", err)
	}
	region.Addr = unsafe.Slice((*byte)(unsafe.Pointer(addr)), opts.Size)
	return region, nil
}

// UnmapRegion unmaps the view and closes the mapping handle.
func UnmapRegion(ctx context.Context, region *Region) error {
	if region == nil || region.closed {
		return nil
	}
	region.closed = true
	var errs []error
	if len(region.Addr) > 0 {
		if err := windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&region.Addr[0]))); err != nil {
			errs = append(errs, fmt.Errorf("UnmapViewOfFile: %w", err))
		}
		region.Addr = nil
	}
	if err := windows.CloseHandle(windows.Handle(region.handle)); err != nil {
		errs = append(errs, fmt.Errorf("CloseHandle: %w", err))
	}
	return errors.Join(errs...)
}

// RemoveRegion releases the creator's handle. The kernel destroys the mapping
// once the last handle and view are gone.
func RemoveRegion(ctx context.Context, region *Region) error {
	return UnmapRegion(ctx, region)
}
