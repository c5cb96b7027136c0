// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"
)

// serveTransport starts d on a loopback listener and returns a connected
// client. Both are closed when the test ends.
func serveTransport(t *testing.T, transport string, d *Dispatcher) (Server, Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server, err := Listen("127.0.0.1:0", d, WithServerTransport(transport))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	go server.Serve(ctx)

	// Give server time to start
	time.Sleep(10 * time.Millisecond)

	client, err := Dial(ctx, server.Addr(), WithTransport(transport))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return server, client
}

func TestTransportRoundTrip(t *testing.T) {
	for _, transport := range []string{TransportStream, TransportHTTP, TransportGRPC} {
		t.Run(transport, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, client := serveTransport(t, transport, newTestDispatcher(t))

			req, err := NewRequest("r1", "calc", "Add", 2, 3)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			resp, err := client.Invoke(ctx, req)
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			var sum int
			if err := resp.Decode(&sum); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if sum != 5 || resp.ID == nil || *resp.ID != "r1" {
				t.Errorf("got %d for %v", sum, resp.ID)
			}

			// Failures travel inside the envelope.
			req, _ = NewRequest("r2", "calc", "Fail")
			resp, err = client.Invoke(ctx, req)
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if !resp.Failed || resp.Message != "boom" {
				t.Errorf("expected failure envelope, got %+v", resp)
			}
		})
	}
}

func TestStreamMalformedPayload(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, client := serveTransport(t, TransportStream, newTestDispatcher(t))

	out, err := client.InvokeRaw(ctx, []byte(`{"uuid":"m1","instance":"calc"}`))
	if err != nil {
		t.Fatalf("InvokeRaw: %v", err)
	}
	want := `{"uuid":"m1","type":"InvokationRequest","error":"Invalid message format."}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestStreamConcurrentCalls(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, client := serveTransport(t, TransportStream, newTestDispatcher(t))

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, _ := NewRequest(fmt.Sprintf("c%d", i), "calc", "AddAsync", i, i)
			resp, err := client.Invoke(ctx, req)
			if err != nil {
				errs <- err
				return
			}
			var sum int
			if err := resp.Decode(&sum); err != nil {
				errs <- err
				return
			}
			if sum != 2*i || *resp.ID != fmt.Sprintf("c%d", i) {
				errs <- fmt.Errorf("request %d: got %d for %s", i, sum, *resp.ID)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestStreamClosedClient(t *testing.T) {
	_, client := serveTransport(t, TransportStream, newTestDispatcher(t))
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := client.InvokeRaw(context.Background(), []byte(`{}`)); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}
}

func TestStreamServeStopsOnCancel(t *testing.T) {
	server, err := Listen("127.0.0.1:0", newTestDispatcher(t))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestStreamConnAfterClose(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	s := NewStreamServer(lis, newTestDispatcher(t), nil)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A connection accepted while Close runs must not outlive it.
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	done := make(chan struct{})
	go func() {
		s.handleConn(context.Background(), serverSide)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleConn kept a connection open after Close")
	}
	if _, err := clientSide.Write([]byte{0}); err == nil {
		t.Error("expected the connection to be closed")
	}
}

func TestFrameEncoding(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, FrameResponse, 7, []byte("payload")); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	typ, seq, payload, err := readFrame(&buf, make([]byte, 4))
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if typ != FrameResponse || seq != 7 || string(payload) != "payload" {
		t.Errorf("got %d %d %q", typ, seq, payload)
	}

	big := make([]byte, maxFrameLen)
	if err := writeFrame(&buf, FrameRequest, 1, big); !errors.Is(err, ErrStreamFrameTooBig) {
		t.Errorf("expected ErrStreamFrameTooBig, got %v", err)
	}
	if _, _, _, err := readFrame(bytes.NewReader([]byte{0, 0, 0, 0}), make([]byte, 4)); !errors.Is(err, ErrStreamFrameTooBig) {
		t.Errorf("expected zero-length frame to be rejected, got %v", err)
	}
}

func TestAvailableTransports(t *testing.T) {
	got := AvailableTransports()
	want := []string{TransportGRPC, TransportHTTP, TransportSocketIO, TransportStream}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if !HasTransport(TransportStream) || HasTransport("carrier-pigeon") {
		t.Error("HasTransport disagrees with the registered set")
	}
	if _, err := Dial(context.Background(), "127.0.0.1:1", WithTransport("carrier-pigeon")); err == nil {
		t.Error("expected unknown transport error from Dial")
	}
	if _, err := Listen("127.0.0.1:0", nil); err == nil {
		t.Error("expected Listen to reject a nil dispatcher")
	}
}
