package transport

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/srediag/xfer/api"
	"github.com/srediag/xfer/pkg/metrics"
	"github.com/srediag/xfer/pkg/security"
)

// FileTransport writes the payload to a uniquely named file under a managed
// temp directory. The file stays readable after the writer exits.
type FileTransport struct {
	root    string
	retries uint64
	opts    options
}

// NewFileTransport returns a FileTransport rooted at config.TempDir, creating
// the directory if needed. An empty or whitespace TempDir fails with
// api.ErrInvalidTempDir.
func NewFileTransport(config *Config, opts ...Option) (*FileTransport, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	if err := prepareTempDir(config.TempDir); err != nil {
		return nil, err
	}
	return &FileTransport{
		root:    config.TempDir,
		retries: config.WriteRetries,
		opts:    newOptions(api.ModeFile, opts),
	}, nil
}

// Mode implements api.Transport.
func (t *FileTransport) Mode() string { return api.ModeFile }

// TempDir returns the directory files are written to.
func (t *FileTransport) TempDir() string { return t.root }

// Send implements api.Transport. The file is named
// {session}_{seq}_{format}.tmp so concurrent transfers never collide; an
// existing file with that name is left untouched and the send fails.
func (t *FileTransport) Send(ctx context.Context, target api.Process, payload []byte, md *api.TransferMetadata) (bool, error) {
	if md == nil {
		return false, errNilMetadata
	}
	if targetGone(target) {
		t.opts.reject(api.ModeFile, md, "target exited")
		return false, nil
	}
	path := filepath.Join(t.root, fileName(md))
	if err := writeFileAtomic(ctx, path, payload, t.retries); err != nil {
		t.opts.log.Warn("file write failed", append(transferFields(md), zap.String("path", path), zap.Error(err))...)
		t.opts.metrics.ObserveSend(api.ModeFile, false, 0)
		return false, nil
	}
	md.FilePath = path
	md.TransportMode = api.ModeFile
	md.DataSize = int64(len(payload))
	t.opts.sent(md)
	return true, nil
}

// Cleanup implements api.Transport. It deletes md.FilePath when it lies inside
// the temp directory; anything else is a silent no-op.
func (t *FileTransport) Cleanup(md *api.TransferMetadata) {
	if md == nil || md.FilePath == "" {
		return
	}
	if md.TransportMode != "" && md.TransportMode != api.ModeFile {
		return
	}
	if !security.WithinRoot(t.root, md.FilePath) {
		t.opts.log.Warn("cleanup outside temp dir ignored", zap.String("path", md.FilePath))
		return
	}
	removed, err := removeFile(context.Background(), md.FilePath, t.retries)
	if err != nil {
		t.opts.log.Warn("file cleanup failed", zap.String("path", md.FilePath), zap.Error(err))
		return
	}
	if removed {
		t.opts.metrics.ObserveCleanup(api.ModeFile, metrics.CleanupImmediate)
		t.opts.audit(api.EventCleanup, map[string]interface{}{
			"mode": api.ModeFile,
			"path": md.FilePath,
		})
	}
}
