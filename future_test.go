// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFutureGo(t *testing.T) {
	f := Go(func() (string, error) { return "done", nil })
	v, err := f.Get(context.Background())
	if err != nil || v != "done" {
		t.Fatalf("Get: %q %v", v, err)
	}
	select {
	case <-f.Done():
	default:
		t.Fatal("Done should be closed after Get returned")
	}

	awaited, err := f.Await(context.Background())
	if err != nil || awaited.(string) != "done" {
		t.Fatalf("Await: %v %v", awaited, err)
	}
}

func TestFutureError(t *testing.T) {
	want := errors.New("failed")
	f := Go(func() (int, error) { return 0, want })
	if _, err := f.Await(context.Background()); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestFuturePanic(t *testing.T) {
	f := Go(func() (int, error) { panic("bad") })
	if _, err := f.Get(context.Background()); err == nil || err.Error() != "panic: bad" {
		t.Fatalf("expected recovered panic, got %v", err)
	}
}

func TestFutureGetHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	f := Go(func() (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestResolved(t *testing.T) {
	v, err := Resolved(3).Get(context.Background())
	if err != nil || v != 3 {
		t.Fatalf("Get: %d %v", v, err)
	}
}

func TestGoErr(t *testing.T) {
	if err := <-GoErr(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	ch := GoErr(func() error { return errors.New("x") })
	if err := <-ch; err == nil || err.Error() != "x" {
		t.Fatalf("expected x, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after the result")
	}
	if err := <-GoErr(func() error { panic("p") }); err == nil {
		t.Fatal("expected recovered panic")
	}
}
