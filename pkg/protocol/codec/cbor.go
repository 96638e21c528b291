package codec

import (
	cbor "github.com/fxamacker/cbor/v2"
)

// Mode construction only fails for invalid options; these are constant.
var (
	cborEnc, _ = cbor.CanonicalEncOptions().EncMode()
	cborDec, _ = cbor.DecOptions{}.DecMode()
)

type cborCodec struct{}

// CBOR returns a canonical CBOR codec (RFC 8949 core deterministic profile).
func CBOR() Codec { return cborCodec{} }

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Marshal(v any) ([]byte, error) { return cborEnc.Marshal(v) }

func (cborCodec) Unmarshal(data []byte, v any) error { return cborDec.Unmarshal(data, v) }
