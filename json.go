// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gorillarpc "github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"
)

const (
	maxRetries    = 3
	retryBaseWait = 500 * time.Millisecond

	// BridgeService is the JSON-RPC service name of the HTTP gateway.
	BridgeService = "Bridge"
	// BridgeInvokeMethod carries one envelope per JSON-RPC call.
	BridgeInvokeMethod = BridgeService + ".Invoke"
	// DefaultRPCPath is where the gateway is mounted.
	DefaultRPCPath = "/rpc"
)

// HTTPBridge is the JSON-RPC receiver of the HTTP gateway. The envelope
// travels as the single params value and comes back as the result.
type HTTPBridge struct {
	dispatcher *Dispatcher
}

// NewHTTPBridge wraps d for gorilla/rpc registration.
func NewHTTPBridge(d *Dispatcher) *HTTPBridge {
	return &HTTPBridge{dispatcher: d}
}

// Invoke dispatches one envelope. Invocation failures are returned inside the
// envelope, never as JSON-RPC errors.
func (b *HTTPBridge) Invoke(r *http.Request, args *json.RawMessage, reply *json.RawMessage) error {
	var payload []byte
	if args != nil {
		payload = *args
	}
	data, err := json.Marshal(b.dispatcher.Invoke(r.Context(), payload))
	if err != nil {
		return err
	}
	*reply = data
	return nil
}

// NewHTTPHandler builds the gateway handler for d. metrics, when set, is
// mounted at /metrics.
func NewHTTPHandler(d *Dispatcher, path string, metrics http.Handler) (http.Handler, error) {
	if path == "" {
		path = DefaultRPCPath
	}
	server := gorillarpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	if err := server.RegisterService(NewHTTPBridge(d), BridgeService); err != nil {
		return nil, fmt.Errorf("register bridge service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, server)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux, nil
}

type httpServer struct {
	listener net.Listener
	server   *http.Server
	logger   *zap.Logger
}

func listenHTTP(addr string, d *Dispatcher, o *serverOptions) (Server, error) {
	handler, err := NewHTTPHandler(d, o.path, o.metrics)
	if err != nil {
		return nil, err
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("http listen: %w", err)
	}
	return &httpServer{
		listener: lis,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: componentLogger(o.logger, "http"),
	}, nil
}

func (s *httpServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	})
	defer stop()

	s.logger.Info("serving", zap.String("addr", s.Addr()))
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *httpServer) Close() error {
	return s.server.Close()
}

func (s *httpServer) Addr() string {
	return s.listener.Addr().String()
}

// httpClient invokes the gateway through SendJSONRequest.
type httpClient struct {
	envelopeClient
	uri     *url.URL
	options []RequestOption
}

func dialHTTP(_ context.Context, addr string, o *dialOptions) (Client, error) {
	uri, err := gatewayURL(addr, o.path)
	if err != nil {
		return nil, err
	}
	c := &httpClient{uri: uri}
	if o.httpClient != nil {
		c.options = append(c.options, withClient(o.httpClient))
	}
	c.envelopeClient = envelopeClient{codec: o.codec, raw: c.InvokeRaw}
	return c, nil
}

// gatewayURL accepts either a full URL or a bare host:port.
func gatewayURL(addr, path string) (*url.URL, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	uri, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("gateway address %q: %w", addr, err)
	}
	if uri.Path == "" || uri.Path == "/" {
		if path == "" {
			path = DefaultRPCPath
		}
		uri.Path = path
	}
	return uri, nil
}

func (c *httpClient) InvokeRaw(ctx context.Context, payload []byte) ([]byte, error) {
	var reply json.RawMessage
	u := *c.uri
	if err := SendJSONRequest(ctx, &u, BridgeInvokeMethod, json.RawMessage(payload), &reply, c.options...); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *httpClient) Close() error { return nil }

// RequestOption configures a single SendJSONRequest call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers     http.Header
	queryParams url.Values
	client      *http.Client
}

func newRequestOptions(opts []RequestOption) *requestOptions {
	o := &requestOptions{
		headers:     http.Header{},
		queryParams: url.Values{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) { o.headers.Add(key, value) }
}

// WithQueryParam adds a query parameter.
func WithQueryParam(key, value string) RequestOption {
	return func(o *requestOptions) { o.queryParams.Add(key, value) }
}

func withClient(c *http.Client) RequestOption {
	return func(o *requestOptions) { o.client = c }
}

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError reports errors where the request cannot have reached the
// server. Anything later could re-run a method, so it is not retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

// SendJSONRequest issues one JSON-RPC 2.0 call and decodes the result into
// reply.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params interface{},
	reply interface{},
	options ...RequestOption,
) error {
	log := Logger().With(zap.String("component", "http-client"))
	log.Debug("sending request", zap.String("method", method), zap.Stringer("uri", uri))
	requestBodyBytes, err := json2.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := newRequestOptions(options)
	if len(ops.queryParams) > 0 {
		uri.RawQuery = ops.queryParams.Encode()
	}
	client := ops.client
	if client == nil {
		client = newHTTPClient()
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			waitTime := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}

		// Fresh request per attempt; the body buffer is consumed.
		request, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			uri.String(),
			bytes.NewBuffer(requestBodyBytes),
		)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		request.Header = ops.headers.Clone()
		request.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(request)
		if err != nil {
			lastErr = err
			retryable := isRetryableError(err)
			log.Debug("request attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Bool("retryable", retryable),
				zap.Error(err))
			if retryable {
				continue
			}
			return fmt.Errorf("failed to issue request: %w", err)
		}
		if attempt > 0 {
			log.Debug("request succeeded after retry", zap.Int("attempt", attempt+1))
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_ = CleanlyCloseBody(resp.Body)
			return fmt.Errorf("received status code: %d", resp.StatusCode)
		}

		if err := json2.DecodeClientResponse(resp.Body, reply); err != nil {
			_ = CleanlyCloseBody(resp.Body)
			return fmt.Errorf("failed to decode client response: %w", err)
		}
		return CleanlyCloseBody(resp.Body)
	}

	return fmt.Errorf("failed to issue request after %d retries: %w", maxRetries, lastErr)
}

func init() {
	registerTransport(TransportHTTP, dialHTTP, listenHTTP)
}
