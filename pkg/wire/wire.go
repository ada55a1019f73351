// Package wire encodes TransferMetadata for the out-of-band channel that tells
// a reader where its payload is.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/valyala/bytebufferpool"

	"github.com/srediag/xfer/api"
)

// Codec names.
const (
	JSON = "json"
	CBOR = "cbor"
)

// ErrUnknownCodec is returned for codec names other than JSON and CBOR.
var ErrUnknownCodec = errors.New("wire: unknown codec")

// Codec encodes and decodes metadata records.
type Codec interface {
	Name() string
	Marshal(md *api.TransferMetadata) ([]byte, error)
	Unmarshal(data []byte, md *api.TransferMetadata) error
}

// Lookup returns the codec called name.
func Lookup(name string) (Codec, error) {
	switch name {
	case JSON:
		return jsonCodec{}, nil
	case CBOR:
		return cborCodec, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return JSON }

func (jsonCodec) Marshal(md *api.TransferMetadata) ([]byte, error) {
	if md == nil {
		return nil, errors.New("wire: nil metadata")
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(md); err != nil {
		return nil, err
	}
	// drop the encoder's trailing newline
	return append([]byte(nil), buf.B[:buf.Len()-1]...), nil
}

func (jsonCodec) Unmarshal(data []byte, md *api.TransferMetadata) error {
	return json.Unmarshal(data, md)
}

type cborMetadataCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var cborCodec = newCBORCodec()

func newCBORCodec() cborMetadataCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborMetadataCodec{enc: enc, dec: dec}
}

func (c cborMetadataCodec) Name() string { return CBOR }

func (c cborMetadataCodec) Marshal(md *api.TransferMetadata) ([]byte, error) {
	if md == nil {
		return nil, errors.New("wire: nil metadata")
	}
	return c.enc.Marshal(md)
}

func (c cborMetadataCodec) Unmarshal(data []byte, md *api.TransferMetadata) error {
	return c.dec.Unmarshal(data, md)
}
