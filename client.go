// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Client sends invocation envelopes to a host and waits for the responses.
// All transports implement it.
type Client interface {
	// Invoke sends req and returns its response envelope. A Failure envelope
	// is not an error; transport problems are.
	Invoke(ctx context.Context, req Request) (Response, error)

	// InvokeRaw sends an encoded envelope and returns the encoded response
	InvokeRaw(ctx context.Context, payload []byte) ([]byte, error)

	// Close closes the connection
	Close() error
}

// Server exposes a Dispatcher over one transport.
type Server interface {
	// Serve starts serving requests (blocks until context cancelled)
	Serve(ctx context.Context) error

	// Close stops the server
	Close() error

	// Addr returns the server's listen address
	Addr() string
}

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	codec      Codec
	transport  string
	httpClient *http.Client
	path       string
}

// WithCodec sets a custom codec
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) { o.codec = c }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithHTTPClient sets the client used by the http transport.
func WithHTTPClient(c *http.Client) DialOption {
	return func(o *dialOptions) { o.httpClient = c }
}

// WithPath sets the URL path used by the http and socketio transports.
func WithPath(p string) DialOption {
	return func(o *dialOptions) { o.path = p }
}

// ServerOption configures servers
type ServerOption func(*serverOptions)

type serverOptions struct {
	transport string
	logger    *zap.Logger
	metrics   http.Handler
	path      string
}

// WithServerTransport explicitly sets the transport type for the server
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}

// WithServerLogger sets the server logger.
func WithServerLogger(l *zap.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// WithMetricsHandler mounts h at /metrics on HTTP based transports.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(o *serverOptions) { o.metrics = h }
}

// WithServerPath sets the URL path served by the http and socketio transports.
func WithServerPath(p string) ServerOption {
	return func(o *serverOptions) { o.path = p }
}

// envelopeClient implements Invoke on top of a raw round trip.
type envelopeClient struct {
	codec Codec
	raw   func(ctx context.Context, payload []byte) ([]byte, error)
}

func (c envelopeClient) Invoke(ctx context.Context, req Request) (Response, error) {
	codec := c.codec
	if codec == nil {
		codec = defaultCodec
	}
	payload, err := codec.EncodeRequest(req)
	if err != nil {
		return Response{}, err
	}
	out, err := c.raw(ctx, payload)
	if err != nil {
		return Response{}, err
	}
	return codec.DecodeResponse(out)
}
