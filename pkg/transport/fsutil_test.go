package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomicNeverReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1_1_pdf.tmp")
	require.NoError(t, writeFileAtomic(context.Background(), path, []byte("first"), 3))

	err := writeFileAtomic(context.Background(), path, []byte("second"), 3)
	assert.True(t, errors.Is(err, fs.ErrExist), "got %v", err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)
}

func TestWriteFileAtomicConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1_1_pdf.tmp")

	const writers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(payload string) {
			defer wg.Done()
			if err := writeFileAtomic(context.Background(), path, []byte(payload), 3); err == nil {
				mu.Lock()
				winners = append(winners, payload)
				mu.Unlock()
			} else {
				assert.True(t, errors.Is(err, fs.ErrExist), "got %v", err)
			}
		}(fmt.Sprintf("writer-%02d", i))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, winners[0], string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "part files removed")
}

func TestRemoveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.tmp")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	removed, err := removeFile(context.Background(), path, 3)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = removeFile(context.Background(), path, 3)
	require.NoError(t, err)
	assert.False(t, removed)
}
