// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/phosphornet/ipc"
	"github.com/phosphornet/ipc/internal/config"
)

func newTestHost(t *testing.T) *host {
	t.Helper()
	cfg := config.Default()
	cfg.Metrics = true
	h, err := buildHost(&cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("buildHost: %v", err)
	}
	return h
}

func TestBuildRequest(t *testing.T) {
	req, err := buildRequest("id-1", "calc", "Add", []string{"2", "3"})
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if req.UUID != "id-1" || req.Instance != "calc" || req.Method != "Add" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(req.Args) != 2 || string(req.Args[1]) != "3" {
		t.Fatalf("unexpected args: %s", req.Args)
	}

	if _, err := buildRequest("id-2", "calc", "Add", []string{"two"}); err == nil {
		t.Fatal("expected error for non-JSON argument")
	}
}

func TestBuildHostRegistersInstances(t *testing.T) {
	h := newTestHost(t)
	for _, name := range []string{calculatorInstance, "http"} {
		if _, err := h.registry.Lookup(name); err != nil {
			t.Errorf("Lookup(%q): %v", name, err)
		}
	}
	if h.metrics == nil {
		t.Error("expected a metrics handler when metrics are enabled")
	}
}

func TestDescribeRegistry(t *testing.T) {
	out := describeRegistry(newTestHost(t).registry)
	for _, want := range []string{"INSTANCE", "METHOD", "calc", "AddAsync", "async", "GetJson", "[]float64"} {
		if !strings.Contains(out, want) {
			t.Errorf("describe output missing %q:\n%s", want, out)
		}
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	h := newTestHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, h, map[string]string{
			ipc.TransportStream: "127.0.0.1:0",
			ipc.TransportHTTP:   "127.0.0.1:0",
		}, zap.NewNop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeFailsOnBusyAddress(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	err = serve(context.Background(), newTestHost(t), map[string]string{
		ipc.TransportStream: lis.Addr().String(),
	}, zap.NewNop())
	if err == nil {
		t.Fatal("expected listen error")
	}
}

func TestCallCommand(t *testing.T) {
	h := newTestHost(t)
	srv, err := ipc.Listen("127.0.0.1:0", h.dispatcher)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"call", "calc", "Add", "2", "3", "--addr", srv.Addr()})
	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("call: %v", err)
	}

	var resp ipc.Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	var sum int
	if err := resp.Decode(&sum); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if sum != 5 {
		t.Fatalf("got %d, want 5", sum)
	}
}

func TestCallCommandReportsFailure(t *testing.T) {
	h := newTestHost(t)
	srv, err := ipc.Listen("127.0.0.1:0", h.dispatcher)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"call", "calc", "Missing", "--addr", srv.Addr()})
	err = cmd.ExecuteContext(ctx)
	if err == nil {
		t.Fatal("expected failure envelope to surface as error")
	}
	if err.Error() != "Method 'Missing' not found on instance 'calc'." {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"error"`) {
		t.Fatalf("expected failure envelope on stdout, got %q", out.String())
	}
}
