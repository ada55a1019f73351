package wire

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/xfer/api"
)

func sample() *api.TransferMetadata {
	return &api.TransferMetadata{
		SessionID:      "s1",
		SequenceNumber: 7,
		DocumentType:   "report",
		OutputFormat:   "pdf",
		MimeType:       "application/pdf",
		TransportMode:  api.ModeMmap,
		DataSize:       5,
		MmapName:       "xfer_s1_7",
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{JSON, CBOR} {
		c, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	_, err := Lookup("xml")
	assert.True(t, errors.Is(err, ErrUnknownCodec))
}

func TestJSONFieldNames(t *testing.T) {
	c, _ := Lookup(JSON)
	data, err := c.Marshal(sample())
	require.NoError(t, err)
	s := string(data)
	assert.False(t, strings.HasSuffix(s, "\n"))
	assert.Contains(t, s, `"mmap_name":"xfer_s1_7"`)
	assert.Contains(t, s, `"transport_mode":"mmap"`)
	assert.Contains(t, s, `"sequence_number":7`)
}

func TestCodecsRoundTrip(t *testing.T) {
	for _, name := range []string{JSON, CBOR} {
		t.Run(name, func(t *testing.T) {
			c, _ := Lookup(name)
			data, err := c.Marshal(sample())
			require.NoError(t, err)
			var got api.TransferMetadata
			require.NoError(t, c.Unmarshal(data, &got))
			assert.Equal(t, *sample(), got)

			_, err = c.Marshal(nil)
			assert.Error(t, err)
		})
	}
}

func TestCBORDeterministic(t *testing.T) {
	c, _ := Lookup(CBOR)
	a, err := c.Marshal(sample())
	require.NoError(t, err)
	b, err := c.Marshal(sample())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
