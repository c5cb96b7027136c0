// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"encoding/json"
	"errors"
)

// MessageTypeInvocation is the envelope type tag. The spelling is part of the
// wire contract with existing front-ends.
const MessageTypeInvocation = "InvokationRequest"

var jsonNull = json.RawMessage("null")

// Request is an inbound invocation envelope.
type Request struct {
	UUID     string            `json:"uuid"`
	Instance string            `json:"instance"`
	Method   string            `json:"method"`
	Args     []json.RawMessage `json:"args"`
}

// NewRequest builds a request, encoding args positionally.
func NewRequest(uuid, instance, method string, args ...any) (Request, error) {
	req := Request{UUID: uuid, Instance: instance, Method: method, Args: make([]json.RawMessage, 0, len(args))}
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return Request{}, err
		}
		req.Args = append(req.Args, raw)
	}
	return req, nil
}

// ParseRequest decodes and validates a raw envelope. Every failure is a
// *MalformedMessageError; its ID is set whenever the uuid field was usable.
func ParseRequest(data []byte) (Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Request{}, &MalformedMessageError{Reason: "envelope is not a JSON object"}
	}

	var req Request
	if !stringField(fields, "uuid", &req.UUID) {
		return Request{}, &MalformedMessageError{Reason: "uuid is missing or not a string"}
	}
	id := req.UUID
	if !stringField(fields, "instance", &req.Instance) {
		return Request{}, &MalformedMessageError{ID: &id, Reason: "instance is missing or not a string"}
	}
	if !stringField(fields, "method", &req.Method) {
		return Request{}, &MalformedMessageError{ID: &id, Reason: "method is missing or not a string"}
	}
	raw, ok := fields["args"]
	if !ok || jsonKindOf(raw) != kindArray {
		return Request{}, &MalformedMessageError{ID: &id, Reason: "args is missing or not an array"}
	}
	if err := json.Unmarshal(raw, &req.Args); err != nil {
		return Request{}, &MalformedMessageError{ID: &id, Reason: err.Error()}
	}
	return req, nil
}

func stringField(fields map[string]json.RawMessage, name string, dst *string) bool {
	raw, ok := fields[name]
	if !ok || jsonKindOf(raw) != kindString {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// Response is the outbound envelope: either a success carrying an encoded
// result or a failure carrying a message. A failure may lack an id.
type Response struct {
	ID      *string
	Result  json.RawMessage
	Message string
	Failed  bool
}

// Success builds a success envelope. A nil result encodes as null.
func Success(id string, result json.RawMessage) Response {
	if result == nil {
		result = jsonNull
	}
	return Response{ID: &id, Result: result}
}

// Failure builds a failure envelope.
func Failure(id *string, message string) Response {
	return Response{ID: id, Message: message, Failed: true}
}

// Err returns the failure as an error, or nil for a success.
func (r Response) Err() error {
	if !r.Failed {
		return nil
	}
	return errors.New(r.Message)
}

// Decode unmarshals a success result into v.
func (r Response) Decode(v any) error {
	if r.Failed {
		return r.Err()
	}
	return json.Unmarshal(r.Result, v)
}

type successWire struct {
	UUID string          `json:"uuid"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type failureWire struct {
	UUID  *string `json:"uuid"`
	Type  string  `json:"type"`
	Error string  `json:"error"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	if r.Failed {
		return json.Marshal(failureWire{UUID: r.ID, Type: MessageTypeInvocation, Error: r.Message})
	}
	var id string
	if r.ID != nil {
		id = *r.ID
	}
	data := r.Result
	if len(data) == 0 {
		data = jsonNull
	}
	return json.Marshal(successWire{UUID: id, Type: MessageTypeInvocation, Data: data})
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var wire struct {
		UUID  *string         `json:"uuid"`
		Data  json.RawMessage `json:"data"`
		Error *string         `json:"error"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Error != nil {
		*r = Failure(wire.UUID, *wire.Error)
		return nil
	}
	if wire.UUID == nil {
		return &MalformedMessageError{Reason: "success response without uuid"}
	}
	*r = Success(*wire.UUID, bytes.Clone(wire.Data))
	return nil
}
