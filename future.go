// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"fmt"
)

// Awaitable is implemented by asynchronous results. The dispatcher awaits it
// and reports the completed value, never the handle itself.
type Awaitable interface {
	Await(ctx context.Context) (any, error)
}

// Future is a single-assignment asynchronous result.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn on a new goroutine and returns its future. A panic in fn
// completes the future with an error.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("panic: %v", r)
			}
		}()
		f.value, f.err = fn()
	}()
	return f
}

// Resolved returns an already completed future.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: v}
	close(f.done)
	return f
}

// Done is closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get waits for completion or for ctx to end.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) Await(ctx context.Context) (any, error) {
	v, err := f.Get(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GoErr runs fn on a new goroutine. The returned channel yields fn's error
// (nil on success) and is then closed.
func GoErr(fn func() error) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- fmt.Errorf("panic: %v", r)
			}
		}()
		ch <- fn()
	}()
	return ch
}
