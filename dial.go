// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"fmt"
)

// Dial connects to a bridge host using the default transport (stream).
// Use WithTransport for transport selection.
func Dial(ctx context.Context, addr string, opts ...DialOption) (Client, error) {
	o := &dialOptions{
		transport: DefaultTransport,
		codec:     defaultCodec,
	}
	for _, opt := range opts {
		opt(o)
	}

	t, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	return t.dial(ctx, addr, o)
}

// Listen creates a server exposing d on addr using the default transport
// (stream).
func Listen(addr string, d *Dispatcher, opts ...ServerOption) (Server, error) {
	o := &serverOptions{
		transport: DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}
	if d == nil {
		return nil, fmt.Errorf("listen %s: nil dispatcher", o.transport)
	}

	t, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	return t.listen(addr, d, o)
}
