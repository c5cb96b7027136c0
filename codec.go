// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Codec turns client envelopes into payloads and back. Transports carry the
// payloads without looking inside.
type Codec interface {
	EncodeRequest(req Request) ([]byte, error)
	DecodeResponse(data []byte) (Response, error)
}

// JSONCodec writes the wire envelope as compact JSON.
type JSONCodec struct{}

// EncodeRequest encodes req. A nil argument list is sent as [] since the
// dispatcher rejects a missing args array.
func (JSONCodec) EncodeRequest(req Request) ([]byte, error) {
	if req.Args == nil {
		req.Args = []json.RawMessage{}
	}
	return json.Marshal(req)
}

func (JSONCodec) DecodeResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// rawCodec moves already encoded envelopes through gRPC, so no protobuf
// schema is needed.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	default:
		return nil, fmt.Errorf("raw codec: cannot marshal %T", v)
	}
}

// Unmarshal copies data; grpc reuses the buffer afterwards.
func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec: cannot unmarshal into %T", v)
	}
	*b = bytes.Clone(data)
	return nil
}

func (rawCodec) Name() string { return "phosphor-raw" }
