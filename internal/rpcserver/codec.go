// Package rpcserver exposes the ingest boundary's Instrument service
// (§6: RegisterProcess, RecordSpan, RecordEvent) as a real
// google.golang.org/grpc server. There is no protoc step: the wire
// payloads are plain Go structs framed by a hand-registered JSON codec
// instead of generated protobuf stubs, so the actual HTTP/2 transport,
// deadlines, and status-code plumbing are exercised without pulling
// the protobuf toolchain into the build.
package rpcserver

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

// jsonCodec implements encoding.Codec. Registering it under "json" lets
// a caller select it per-call with grpc.CallContentSubtype("json"); the
// server accepts whatever subtype the client advertises in its
// content-type, which grpc-go resolves back to this codec by name.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
