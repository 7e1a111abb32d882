package server

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// codecName selects the CBOR codec on the wire (content-type
// application/cbor under the Connect protocol).
const codecName = "cbor"

// cborCodec implements connect.Codec over canonical CBOR, so the RPC
// surface speaks the same interchange format as the digest store.
type cborCodec struct {
	enc cbor.EncMode
}

func newCBORCodec() (*cborCodec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("server: create CBOR enc mode: %w", err)
	}
	return &cborCodec{enc: em}, nil
}

func (c *cborCodec) Name() string { return codecName }

func (c *cborCodec) Marshal(message any) ([]byte, error) {
	return c.enc.Marshal(message)
}

func (c *cborCodec) Unmarshal(data []byte, message any) error {
	return cbor.Unmarshal(data, message)
}
