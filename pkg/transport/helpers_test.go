package transport

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/srediag/xfer/api"
)

type fakeStdin struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	closed   bool
	writeErr error
}

func (f *fakeStdin) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.buf.Write(p)
}

func (f *fakeStdin) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStdin) bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.buf.Bytes()...)
}

func (f *fakeStdin) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeProcess struct {
	exited atomic.Bool
	stdin  *fakeStdin
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{stdin: &fakeStdin{}}
}

func exitedProcess() *fakeProcess {
	p := newFakeProcess()
	p.exited.Store(true)
	return p
}

func (p *fakeProcess) HasExited() bool { return p.exited.Load() }

func (p *fakeProcess) Stdin() io.WriteCloser {
	if p.stdin == nil {
		return nil
	}
	return p.stdin
}

func testConfig(t *testing.T) *Config {
	config := DefaultConfig()
	config.TempDir = t.TempDir()
	config.SegmentPrefix = "xfertest"
	return config
}

func newMetadata(seq int64) *api.TransferMetadata {
	return &api.TransferMetadata{
		SessionID:      api.NewSessionID(),
		SequenceNumber: seq,
		DocumentType:   "report",
		OutputFormat:   "pdf",
		MimeType:       "application/pdf",
	}
}
