//go:build linux

package shm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"

	"github.com/srediag/xfer/api"
)

const shmDir = "/dev/shm"

// Supported reports whether /dev/shm is usable for named segments.
func Supported() bool {
	fi, err := os.Stat(shmDir)
	if err != nil || !fi.IsDir() {
		return false
	}
	return unix.Access(shmDir, unix.W_OK) == nil
}

func regionPath(name string) string {
	return filepath.Join(shmDir, name)
}

// canCreate reports whether /dev/shm has room for size bytes. Writing past the
// tmpfs limit through a mapping raises SIGBUS, so this is checked up front.
func canCreate(size uint64) bool {
	stat, err := disk.Usage(shmDir)
	if err != nil {
		return true
	}
	return size <= stat.Free
}

// CreateRegion creates the segment name sized exactly to data and copies data in.
// It fails if a segment with that name already exists.
func CreateRegion(ctx context.Context, name string, data []byte) (*Region, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !canCreate(uint64(len(data))) {
		return nil, fmt.Errorf("%w: %s needs %d bytes", api.ErrNoSpace, name, len(data))
	}
	path := regionPath(name)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	fail := func(err error) (*Region, error) {
		_ = unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, err
	}
	if len(data) > 0 {
		if err := unix.Ftruncate(fd, int64(len(data))); err != nil {
			return fail(fmt.Errorf("ftruncate: %w", err))
		}
		addr, err := unix.Mmap(fd, 0, len(data), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return fail(fmt.Errorf("mmap: %w", err))
		}
		copy(addr, data)
		if err := unix.Munmap(addr); err != nil {
			return fail(fmt.Errorf("munmap: %w", err))
		}
	}
	return &Region{Name: name, Size: len(data), handle: uintptr(fd)}, nil
}

// MapRegion maps an existing segment read-only (Linux implementation).
func MapRegion(ctx context.Context, opts MapOptions) (*Region, error) {
	if err := validName(opts.Name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fd, err := unix.Open(regionPath(opts.Name), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("%w: %s", api.ErrNotFound, opts.Name)
		}
		return nil, fmt.Errorf("open %s: %w", opts.Name, err)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("fstat: %w", err)
	}
	size := opts.Size
	if size <= 0 {
		size = int(st.Size)
	}
	if int64(size) > st.Size {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shm: %s holds %d bytes, %d requested", opts.Name, st.Size, size)
	}
	region := &Region{Name: opts.Name, Size: size, handle: uintptr(fd)}
	if size == 0 {
		return region, nil
	}
	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}
	region.Addr = addr
	return region, nil
}

// UnmapRegion unmaps and closes the region without destroying the segment.
func UnmapRegion(ctx context.Context, region *Region) error {
	if region == nil || region.closed {
		return nil
	}
	region.closed = true
	var errs []error
	if region.Addr != nil {
		if err := unix.Munmap(region.Addr); err != nil {
			errs = append(errs, fmt.Errorf("munmap: %w", err))
		}
		region.Addr = nil
	}
	if err := unix.Close(int(region.handle)); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}

// RemoveRegion closes the region and unlinks its name so it can no longer be
// opened. Readers that already mapped it keep their view.
func RemoveRegion(ctx context.Context, region *Region) error {
	if region == nil {
		return nil
	}
	err := UnmapRegion(ctx, region)
	if uerr := unix.Unlink(regionPath(region.Name)); uerr != nil && !errors.Is(uerr, unix.ENOENT) {
		err = errors.Join(err, fmt.Errorf("unlink %s: %w", region.Name, uerr))
	}
	return err
}
