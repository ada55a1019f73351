package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xfer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XFER_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
transport:
  temp_dir: /var/tmp/xfer
  grace_delay: 500ms
  max_data_size: 1024
  segment_prefix: render
  force_file_fallback: true
health:
  max_teardown_backlog: 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"stderr"}, cfg.Log.Outputs)
	assert.Equal(t, "/var/tmp/xfer", cfg.Transport.TempDir)
	assert.Equal(t, 500*time.Millisecond, cfg.Transport.GraceDelay)
	assert.EqualValues(t, 1024, cfg.Transport.MaxDataSize)
	assert.Equal(t, "render", cfg.Transport.SegmentPrefix)
	assert.True(t, cfg.Transport.ForceFileFallback)
	assert.Equal(t, 4, cfg.Transport.TeardownWorkers, "unset keys keep defaults")
	assert.EqualValues(t, 10, cfg.Health.MaxTeardownBacklog)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "transport:\n  grace_delay: 1s\n")
	t.Setenv("XFER_TRANSPORT_GRACE_DELAY", "250ms")
	t.Setenv("XFER_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Transport.GraceDelay)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfigEnvPath(t *testing.T) {
	path := writeConfig(t, "metrics:\n  namespace: render\n")
	t.Setenv("XFER_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "render", cfg.Metrics.Namespace)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"level":   "log:\n  level: loud\n",
		"format":  "log:\n  format: xml\n",
		"grace":   "transport:\n  grace_delay: -1s\n",
		"prefix":  "transport:\n  segment_prefix: a/b\n",
		"workers": "transport:\n  teardown_workers: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingNamedFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
