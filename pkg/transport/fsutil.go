package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

func retryPolicy(ctx context.Context, retries uint64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

// writeFileAtomic publishes data at path through a private ".part" file so a
// reader never sees a partial payload. The part file is hard-linked into
// place, which fails if path exists, so an existing file is never replaced
// even by a concurrent writer of the same name.
func writeFileAtomic(ctx context.Context, path string, data []byte, retries uint64) error {
	op := func() error {
		if _, err := os.Lstat(path); err == nil {
			return backoff.Permanent(fmt.Errorf("%s: %w", path, fs.ErrExist))
		}
		err := writeOnce(path, data)
		if errors.Is(err, fs.ErrExist) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, retryPolicy(ctx, retries))
}

func writeOnce(path string, data []byte) error {
	part := path + "." + uuid.NewString()[:8] + ".part"
	f, err := os.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(part) }()
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Link(part, path)
}

// removeFile deletes path, retrying transient failures such as a reader still
// holding the file open on Windows. A missing file is not an error.
func removeFile(ctx context.Context, path string, retries uint64) (bool, error) {
	removed := false
	op := func() error {
		err := os.Remove(path)
		if err == nil {
			removed = true
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	err := backoff.Retry(op, retryPolicy(ctx, retries))
	return removed, err
}
