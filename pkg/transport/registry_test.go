package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/xfer/api"
)

type stubTransport struct {
	mode     string
	ok       bool
	err      error
	sends    int
	cleanups int
	closed   bool
}

func (s *stubTransport) Mode() string { return s.mode }

func (s *stubTransport) Send(_ context.Context, _ api.Process, payload []byte, md *api.TransferMetadata) (bool, error) {
	s.sends++
	if s.ok {
		md.TransportMode = s.mode
		md.DataSize = int64(len(payload))
	}
	return s.ok, s.err
}

func (s *stubTransport) Cleanup(*api.TransferMetadata) { s.cleanups++ }

func (s *stubTransport) Close() error {
	s.closed = true
	return nil
}

func TestNewRegistryRejectsBadTransports(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err)

	_, err = NewRegistry(&stubTransport{})
	assert.Error(t, err)

	_, err = NewRegistry(&stubTransport{mode: "a"}, &stubTransport{mode: "a"})
	assert.Error(t, err)
}

func TestRegistrySelectsByMode(t *testing.T) {
	config := testConfig(t)
	stdin, err := NewStdinTransport(config)
	require.NoError(t, err)
	file, err := NewFileTransport(config)
	require.NoError(t, err)
	mmap, err := NewMmapTransport(config)
	require.NoError(t, err)

	r, err := NewRegistry(stdin, file, mmap)
	require.NoError(t, err)
	defer func() { assert.NoError(t, r.Close()) }()

	assert.Equal(t, []string{api.ModeStdin, api.ModeFile, api.ModeMmap}, r.Modes())
	for _, mode := range r.Modes() {
		got, ok := r.Get(mode)
		require.True(t, ok)
		assert.Equal(t, mode, got.Mode())
	}
	_, ok := r.Get("pipe")
	assert.False(t, ok)

	md := newMetadata(1)
	sent, err := r.Send(context.Background(), api.ModeFile, newFakeProcess(), []byte("x"), md)
	require.NoError(t, err)
	require.True(t, sent)
	assert.Equal(t, api.ModeFile, md.TransportMode)

	r.Cleanup(md)
	_, err = Receive(context.Background(), md)
	assert.True(t, errors.Is(err, api.ErrNotFound))

	_, err = r.Send(context.Background(), "pipe", newFakeProcess(), []byte("x"), newMetadata(2))
	assert.True(t, errors.Is(err, api.ErrUnknownMode))
}

func TestRegistryCloseDisposesMmap(t *testing.T) {
	mmap, err := NewMmapTransport(testConfig(t))
	require.NoError(t, err)
	r, err := NewRegistry(mmap)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.True(t, mmap.Disposed())
	_, err = r.Send(context.Background(), api.ModeMmap, newFakeProcess(), []byte("x"), newMetadata(1))
	assert.True(t, errors.Is(err, api.ErrUseAfterDispose))
}

func TestSendFirst(t *testing.T) {
	failing := &stubTransport{mode: "a", err: errors.New("boom")}
	declining := &stubTransport{mode: "b"}
	accepting := &stubTransport{mode: "c", ok: true}
	r, err := NewRegistry(failing, declining, accepting)
	require.NoError(t, err)

	md := newMetadata(1)
	mode, err := r.SendFirst(context.Background(), newFakeProcess(), []byte("abc"), md)
	require.NoError(t, err)
	assert.Equal(t, "c", mode)
	assert.Equal(t, 1, failing.sends)
	assert.Equal(t, 1, declining.sends)

	mode, err = r.SendFirst(context.Background(), newFakeProcess(), []byte("abc"), newMetadata(2), "b", "a")
	assert.Empty(t, mode)
	assert.ErrorContains(t, err, "boom")

	mode, err = r.SendFirst(context.Background(), newFakeProcess(), []byte("abc"), newMetadata(3), "b")
	assert.Empty(t, mode)
	assert.NoError(t, err, "declining without error is not a failure")

	_, err = r.SendFirst(context.Background(), newFakeProcess(), nil, newMetadata(4), "z")
	assert.True(t, errors.Is(err, api.ErrUnknownMode))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.SendFirst(ctx, newFakeProcess(), nil, newMetadata(5))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistryCleanupDispatch(t *testing.T) {
	a := &stubTransport{mode: "a"}
	b := &stubTransport{mode: "b"}
	r, err := NewRegistry(a, b)
	require.NoError(t, err)

	r.Cleanup(nil)
	r.Cleanup(&api.TransferMetadata{TransportMode: "z"})
	r.Cleanup(&api.TransferMetadata{TransportMode: "b"})
	assert.Equal(t, 0, a.cleanups)
	assert.Equal(t, 1, b.cleanups)

	require.NoError(t, r.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
