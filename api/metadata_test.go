package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocator(t *testing.T) {
	var nilMeta *TransferMetadata
	assert.Equal(t, "", nilMeta.Locator())
	assert.False(t, nilMeta.HasFile())

	md := &TransferMetadata{TransportMode: ModeFile, FilePath: "/tmp/a"}
	assert.Equal(t, "/tmp/a", md.Locator())

	md = &TransferMetadata{TransportMode: ModeMmap, MmapName: "xfer_s1_1"}
	assert.Equal(t, "xfer_s1_1", md.Locator())
	assert.False(t, md.HasFile())

	md.FilePath = "/tmp/xfer_s1_1.shm"
	assert.Equal(t, "/tmp/xfer_s1_1.shm", md.Locator())
	assert.True(t, md.HasFile())

	md = &TransferMetadata{TransportMode: ModeStdin, FilePath: "ignored"}
	assert.Equal(t, "", md.Locator())
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
