// Package rpc is Percolator's transport boundary: a hand-wired
// grpc.ServiceDesc (the same mechanism protoc-gen-go-grpc emits, written
// directly instead of generated) paired with a small JSON encoding.Codec,
// so google.golang.org/grpc remains the real transport while the specific
// wire format is the excluded "wire deserialization layer" collaborator
// spec.md §1 names. Grounded on the transport shape of
// UmarFarooq-MP-Loki's api/grpcserver (a Server wrapping a domain service,
// one method per RPC), generalized from generated protobuf types to
// hand-written JSON-tagged request/response structs.
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is registered with grpc/encoding so a client need only set its
// CallContentSubtype (or the server's default codec) to "json" to use it.
const CodecName = "json"

// Codec implements google.golang.org/grpc/encoding.Codec using
// encoding/json instead of generated protobuf marshal/unmarshal code.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc: json unmarshal: %w", err)
	}
	return nil
}

func (Codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(Codec{})
}
