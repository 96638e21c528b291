package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type protoCodec struct {
	mo proto.MarshalOptions
	uo proto.UnmarshalOptions
}

// Proto returns a Protocol Buffers codec with deterministic marshaling.
// Values implementing proto.Message are marshaled directly; anything else is
// transcoded through structpb.Struct, so JSON-shaped values (including []byte,
// carried as base64) travel as protobuf without generated types.
func Proto() Codec {
	return protoCodec{
		mo: proto.MarshalOptions{Deterministic: true},
		uo: proto.UnmarshalOptions{},
	}
}

func (protoCodec) Name() string { return "proto" }

func (p protoCodec) Marshal(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return p.mo.Marshal(msg)
	}
	st, err := toStruct(v)
	if err != nil {
		return nil, err
	}
	return p.mo.Marshal(st)
}

func (p protoCodec) Unmarshal(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return p.uo.Unmarshal(data, msg)
	}
	var st structpb.Struct
	if err := p.uo.Unmarshal(data, &st); err != nil {
		return err
	}
	return fromStruct(&st, v)
}

// toStruct converts an arbitrary value to a structpb.Struct via its JSON form.
// Only object-shaped values can be transcoded.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("proto transcode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("proto transcode: value is not an object: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(st *structpb.Struct, v any) error {
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return fmt.Errorf("proto transcode: %w", err)
	}
	return json.Unmarshal(raw, v)
}
