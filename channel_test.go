// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAttachServesPipe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host, view := NewPipe()
	done := make(chan error, 1)
	go func() { done <- Attach(ctx, host, newTestDispatcher(t)) }()

	const n = 10
	for i := 0; i < n; i++ {
		msg := fmt.Sprintf(`{"uuid":"p%d","instance":"calc","method":"Add","args":[%d,1]}`, i, i)
		if err := view.Post(ctx, msg); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		msg, err := view.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		seen[msg] = true
	}
	for i := 0; i < n; i++ {
		want := fmt.Sprintf(`{"uuid":"p%d","type":"InvokationRequest","data":%d}`, i, i+1)
		if !seen[want] {
			t.Errorf("missing response %s", want)
		}
	}

	view.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Attach: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Attach did not return after Close")
	}
}

func TestAttachStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	host, _ := NewPipe()
	done := make(chan error, 1)
	go func() { done <- Attach(ctx, host, newTestDispatcher(t)) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Attach: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Attach did not return after cancel")
	}
}

type brokenChannel struct{ err error }

func (b brokenChannel) Receive(context.Context) (string, error) { return "", b.err }
func (brokenChannel) Post(context.Context, string) error        { return nil }

func TestAttachReportsChannelError(t *testing.T) {
	want := errors.New("port detached")
	if err := Attach(context.Background(), brokenChannel{err: want}, newTestDispatcher(t)); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestPipeClosed(t *testing.T) {
	a, b := NewPipe()
	a.Close()
	if err := b.Post(context.Background(), "x"); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Post after close: %v", err)
	}
	if _, err := a.Receive(context.Background()); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Receive after close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
