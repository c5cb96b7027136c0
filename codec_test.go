// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestJSONCodecRequest(t *testing.T) {
	data, err := JSONCodec{}.EncodeRequest(Request{UUID: "c1", Instance: "calc", Method: "Fail"})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if want := `{"uuid":"c1","instance":"calc","method":"Fail","args":[]}`; string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
	if _, err := ParseRequest(data); err != nil {
		t.Errorf("encoded request does not parse: %v", err)
	}
}

func TestJSONCodecResponse(t *testing.T) {
	resp, err := JSONCodec{}.DecodeResponse([]byte(`{"uuid":"c1","type":"InvokationRequest","error":"boom"}`))
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if !resp.Failed || resp.Message != "boom" || *resp.ID != "c1" {
		t.Errorf("unexpected response %+v", resp)
	}
	if _, err := (JSONCodec{}).DecodeResponse([]byte(`[`)); err == nil {
		t.Error("expected decode error")
	}
}

type countingCodec struct {
	JSONCodec
	requests atomic.Int32
}

func (c *countingCodec) EncodeRequest(req Request) ([]byte, error) {
	c.requests.Add(1)
	return c.JSONCodec.EncodeRequest(req)
}

func TestDialWithCodec(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, err := Listen("127.0.0.1:0", newTestDispatcher(t))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.Close()
	go server.Serve(ctx)
	time.Sleep(10 * time.Millisecond)

	codec := &countingCodec{}
	client, err := Dial(ctx, server.Addr(), WithCodec(codec))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	resp, err := client.Invoke(ctx, Request{UUID: "c2", Instance: "calc", Method: "Narrow", Args: nil})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if want := "Parameter count mismatch: method 'Narrow' expects 1 arguments, got 0."; resp.Message != want {
		t.Errorf("got %q, want %q", resp.Message, want)
	}
	if codec.requests.Load() != 1 {
		t.Errorf("codec used %d times", codec.requests.Load())
	}
}
