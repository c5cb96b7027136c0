// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPHandlerJSONRPC(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "phosphor_ipc_invocations_total 1\n")
	})
	handler, err := NewHTTPHandler(newTestDispatcher(t), "", metrics)
	if err != nil {
		t.Fatalf("NewHTTPHandler: %v", err)
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"Bridge.Invoke","params":{"uuid":"h1","instance":"calc","method":"Add","args":[4,5]}}`
	resp, err := http.Post(srv.URL+DefaultRPCPath, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := `{"uuid":"h1","type":"InvokationRequest","data":9}`
	if string(rpcResp.Result) != want {
		t.Errorf("result %s, want %s (error %s)", rpcResp.Result, want, rpcResp.Error)
	}

	mresp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("Get metrics: %v", err)
	}
	defer mresp.Body.Close()
	out, _ := io.ReadAll(mresp.Body)
	if !bytes.Contains(out, []byte("phosphor_ipc_invocations_total")) {
		t.Errorf("unexpected metrics body %q", out)
	}
}

func TestHTTPClientAgainstGateway(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handler, err := NewHTTPHandler(newTestDispatcher(t), "/bridge", nil)
	if err != nil {
		t.Fatalf("NewHTTPHandler: %v", err)
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client, err := Dial(ctx, srv.URL, WithTransport(TransportHTTP), WithPath("/bridge"), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	out, err := client.InvokeRaw(ctx, []byte(`{"uuid":"h2","instance":"calc","method":"Missing","args":[]}`))
	if err != nil {
		t.Fatalf("InvokeRaw: %v", err)
	}
	want := `{"uuid":"h2","type":"InvokationRequest","error":"Method 'Missing' not found on instance 'calc'."}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestSendJSONRequestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	uri, err := gatewayURL(srv.URL, "")
	if err != nil {
		t.Fatalf("gatewayURL: %v", err)
	}
	var reply json.RawMessage
	err = SendJSONRequest(context.Background(), uri, BridgeInvokeMethod, json.RawMessage(`{}`), &reply)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSendJSONRequestHeaders(t *testing.T) {
	var gotHeader, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Window")
		gotQuery = r.URL.Query().Get("session")
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)
	}))
	defer srv.Close()

	uri, _ := gatewayURL(srv.URL, "")
	var reply json.RawMessage
	err := SendJSONRequest(context.Background(), uri, BridgeInvokeMethod, json.RawMessage(`{}`), &reply,
		WithHeader("X-Window", "main"), WithQueryParam("session", "abc"))
	if err != nil {
		t.Fatalf("SendJSONRequest: %v", err)
	}
	if gotHeader != "main" || gotQuery != "abc" {
		t.Errorf("header %q query %q", gotHeader, gotQuery)
	}
	if string(reply) != `{"ok":true}` {
		t.Errorf("reply %s", reply)
	}
}

func TestGatewayURL(t *testing.T) {
	tests := []struct {
		addr, path, want string
	}{
		{"127.0.0.1:8080", "", "http://127.0.0.1:8080/rpc"},
		{"127.0.0.1:8080", "/bridge", "http://127.0.0.1:8080/bridge"},
		{"https://host.example/", "", "https://host.example/rpc"},
		{"http://host.example/custom", "/ignored", "http://host.example/custom"},
	}
	for _, tt := range tests {
		u, err := gatewayURL(tt.addr, tt.path)
		if err != nil {
			t.Fatalf("gatewayURL(%q): %v", tt.addr, err)
		}
		if u.String() != tt.want {
			t.Errorf("gatewayURL(%q, %q) = %s, want %s", tt.addr, tt.path, u, tt.want)
		}
	}
}
