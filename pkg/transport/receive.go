package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"

	"github.com/valyala/bytebufferpool"

	"github.com/srediag/xfer/api"
	"github.com/srediag/xfer/pkg/shm"
)

// Receive reads the payload described by md on the consuming side. FilePath is
// checked first; MmapName is opened as a shared-memory segment only when no
// file is given. A locator that no longer resolves yields api.ErrNotFound.
func Receive(ctx context.Context, md *api.TransferMetadata) ([]byte, error) {
	if md == nil {
		return nil, errNilMetadata
	}
	switch md.TransportMode {
	case api.ModeFile, api.ModeMmap:
	case api.ModeStdin:
		return nil, errors.New("transport: stdin payloads are read with ReadStdin")
	default:
		return nil, fmt.Errorf("%w: %q", api.ErrUnknownMode, md.TransportMode)
	}
	if md.HasFile() {
		return readFile(md)
	}
	if md.TransportMode == api.ModeMmap && md.MmapName != "" {
		seg, err := shm.Open(ctx, shm.OpenOptions{Name: md.MmapName, Size: int(md.DataSize)})
		if err != nil {
			return nil, err
		}
		defer func() { _ = seg.Close() }()
		return seg.ReadAll(), nil
	}
	return nil, fmt.Errorf("%w: no locator", api.ErrNotFound)
}

func readFile(md *api.TransferMetadata) ([]byte, error) {
	data, err := os.ReadFile(md.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", api.ErrNotFound, md.FilePath)
		}
		return nil, err
	}
	if int64(len(data)) != md.DataSize {
		return nil, fmt.Errorf("transport: %s holds %d bytes, metadata says %d", md.FilePath, len(data), md.DataSize)
	}
	return data, nil
}

// ReadStdin reads a stdin-mode payload from r until end of data. Payloads
// larger than limit are rejected; a negative limit is an error.
func ReadStdin(r io.Reader, limit int64) ([]byte, error) {
	if limit < 0 {
		return nil, fmt.Errorf("transport: negative stdin limit %d", limit)
	}
	// one extra byte detects oversize input
	readLimit := limit
	if readLimit < math.MaxInt64 {
		readLimit++
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if _, err := buf.ReadFrom(io.LimitReader(r, readLimit)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > limit {
		return nil, fmt.Errorf("transport: stdin payload exceeds %d bytes", limit)
	}
	return append([]byte(nil), buf.B...), nil
}
