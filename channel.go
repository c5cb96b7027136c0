// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrChannelClosed is returned by a closed Pipe endpoint.
var ErrChannelClosed = errors.New("ipc: channel closed")

// MessageChannel is a bidirectional string message channel, such as the
// message port of an embedded web view.
type MessageChannel interface {
	// Receive blocks until the next inbound message.
	Receive(ctx context.Context) (string, error)
	// Post sends a message to the other side.
	Post(ctx context.Context, msg string) error
}

// Attach serves d on ch until ctx ends or ch fails. Every inbound message is
// dispatched on its own goroutine and its response posted back. Attach waits
// for in-flight dispatches before returning.
func Attach(ctx context.Context, ch MessageChannel, d *Dispatcher) error {
	log := d.logger.With(zap.String("transport", "channel"))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		msg, err := ch.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrChannelClosed) {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := d.InvokeString(ctx, msg)
			if resp == "" {
				return
			}
			if err := ch.Post(ctx, resp); err != nil {
				log.Debug("post response", zap.Error(err))
			}
		}()
	}
}

// Pipe is one end of an in-memory MessageChannel pair.
type Pipe struct {
	in    <-chan string
	out   chan<- string
	done  chan struct{}
	close *sync.Once
}

// NewPipe returns two connected endpoints. Messages posted on one are
// received on the other. Closing either end closes both.
func NewPipe() (*Pipe, *Pipe) {
	ab := make(chan string, 16)
	ba := make(chan string, 16)
	done := make(chan struct{})
	once := new(sync.Once)
	return &Pipe{in: ba, out: ab, done: done, close: once},
		&Pipe{in: ab, out: ba, done: done, close: once}
}

func (p *Pipe) Receive(ctx context.Context) (string, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		return "", ErrChannelClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Pipe) Post(ctx context.Context, msg string) error {
	select {
	case <-p.done:
		return ErrChannelClosed
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes both ends.
func (p *Pipe) Close() error {
	p.close.Do(func() { close(p.done) })
	return nil
}
