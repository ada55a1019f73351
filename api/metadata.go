// Package api defines public API contracts for xfer.
package api

import (
	"github.com/google/uuid"
)

// Transport mode identifiers. They travel in TransferMetadata.TransportMode and
// key the transport registry.
const (
	ModeStdin = "stdin"
	ModeFile  = "file"
	ModeMmap  = "mmap"
)

// TransferMetadata describes one transfer. The json/cbor field names are the
// compatibility surface with the process reading the payload.
//
// A fresh value is created per sequence number; a transport only mutates it
// during Send. FilePath and MmapName are empty when absent.
type TransferMetadata struct {
	SessionID      string `json:"session_id" cbor:"session_id"`
	SequenceNumber int64  `json:"sequence_number" cbor:"sequence_number"`
	DocumentType   string `json:"document_type,omitempty" cbor:"document_type,omitempty"`
	OutputFormat   string `json:"output_format,omitempty" cbor:"output_format,omitempty"`
	MimeType       string `json:"mime_type,omitempty" cbor:"mime_type,omitempty"`
	TransportMode  string `json:"transport_mode,omitempty" cbor:"transport_mode,omitempty"`
	DataSize       int64  `json:"data_size" cbor:"data_size"`
	FilePath       string `json:"file_path,omitempty" cbor:"file_path,omitempty"`
	MmapName       string `json:"mmap_name,omitempty" cbor:"mmap_name,omitempty"`
}

// HasFile reports whether the payload is readable from FilePath. Readers check
// this before treating MmapName as a shared-memory segment.
func (m *TransferMetadata) HasFile() bool {
	return m != nil && m.FilePath != ""
}

// Locator returns the mode-specific field naming the live resource, or "" for
// stdin transfers and unsent metadata.
func (m *TransferMetadata) Locator() string {
	if m == nil {
		return ""
	}
	switch m.TransportMode {
	case ModeFile:
		return m.FilePath
	case ModeMmap:
		if m.FilePath != "" {
			return m.FilePath
		}
		return m.MmapName
	}
	return ""
}

// NewSessionID returns a random identifier suitable for TransferMetadata.SessionID.
func NewSessionID() string {
	return uuid.NewString()
}
