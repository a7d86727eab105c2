package grpc

import (
	"encoding/json"
	"fmt"

	"github.com/formai/engine/internal/api/validation"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// decodeStruct reads a structpb request into a typed request and validates
// its struct tags
func decodeStruct(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return validation.MalformedBody(err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return validation.MalformedBody(err)
	}
	return validation.Struct(dst)
}

// encodeStruct renders a value as a structpb response through its JSON form
func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return out, nil
}
