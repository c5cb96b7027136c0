// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	eiotransports "github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	sioclient "github.com/zishang520/socket.io-client-go/socket"
	sio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const (
	// SocketIOEvent is the event carrying envelopes in both directions.
	SocketIOEvent = "ipc"
	// DefaultSocketIOPath is the engine.io mount path browsers expect.
	DefaultSocketIOPath = "/socket.io/"

	socketIOConnectTimeout = 15 * time.Second
)

func init() {
	registerTransport(TransportSocketIO, dialSocketIO, listenSocketIO)
}

// socketPayload extracts the envelope from event arguments. Front-ends may
// emit the serialized string or the object itself.
func socketPayload(args []any) ([]byte, error) {
	if len(args) == 0 {
		return nil, errors.New("event without payload")
	}
	switch v := args[0].(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

type socketIOServer struct {
	listener   net.Listener
	io         *sio.Server
	http       *http.Server
	dispatcher *Dispatcher
	logger     *zap.Logger

	mu  sync.RWMutex
	ctx context.Context
}

func listenSocketIO(addr string, d *Dispatcher, o *serverOptions) (Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("socketio listen: %w", err)
	}
	path := o.path
	if path == "" {
		path = DefaultSocketIOPath
	}

	s := &socketIOServer{
		listener:   lis,
		io:         sio.NewServer(nil, nil),
		dispatcher: d,
		logger:     componentLogger(o.logger, "socketio"),
		ctx:        context.Background(),
	}
	s.io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*sio.Socket)
		if !ok {
			return
		}
		s.logger.Debug("client connected", zap.String("sid", string(client.Id())))
		client.On(SocketIOEvent, func(args ...any) {
			s.handle(args, func(resp string) {
				client.Emit(SocketIOEvent, resp)
			})
		})
	})

	mux := http.NewServeMux()
	mux.Handle(path, s.io.ServeHandler(nil))
	if o.metrics != nil {
		mux.Handle("/metrics", o.metrics)
	}
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s, nil
}

// handle dispatches one event on its own goroutine and hands the serialized
// response to reply.
func (s *socketIOServer) handle(args []any, reply func(string)) {
	payload, err := socketPayload(args)
	if err != nil {
		s.logger.Debug("dropping event", zap.Error(err))
		return
	}
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	go func() {
		if resp := s.dispatcher.InvokeString(ctx, string(payload)); resp != "" {
			reply(resp)
		}
	}()
}

func (s *socketIOServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.logger.Info("serving", zap.String("addr", s.Addr()))
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *socketIOServer) Close() error {
	s.io.Close(nil)
	return s.http.Close()
}

func (s *socketIOServer) Addr() string {
	return s.listener.Addr().String()
}

// socketIOClient correlates responses to requests by uuid.
type socketIOClient struct {
	envelopeClient
	io      *sioclient.Socket
	pending sync.Map // uuid -> chan []byte
	logger  *zap.Logger
}

func dialSocketIO(ctx context.Context, addr string, o *dialOptions) (Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	parsed, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("socketio address %q: %w", addr, err)
	}
	path := o.path
	if path == "" {
		path = parsed.Path
	}
	if path == "" || path == "/" {
		path = DefaultSocketIOPath
	}

	opts := sioclient.DefaultOptions()
	opts.SetPath(path)
	opts.SetTransports(types.NewSet(eiotransports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	manager := sioclient.NewManager(baseURL, opts)
	io := manager.Socket("/", opts)

	c := &socketIOClient{io: io, logger: componentLogger(nil, "socketio-client")}
	c.envelopeClient = envelopeClient{codec: o.codec, raw: c.InvokeRaw}
	io.On(types.EventName(SocketIOEvent), func(args ...any) {
		c.deliver(args)
	})

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = errors.New("connect_error")
		}
		connected <- err
	})
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socketio connect: %w", err)
		}
		return c, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, ctx.Err()
	case <-time.After(socketIOConnectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("socketio connect: timed out after %s", socketIOConnectTimeout)
	}
}

func (c *socketIOClient) deliver(args []any) {
	payload, err := socketPayload(args)
	if err != nil {
		return
	}
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil || resp.ID == nil {
		c.logger.Debug("uncorrelated response dropped", zap.ByteString("payload", payload))
		return
	}
	if ch, ok := c.pending.LoadAndDelete(*resp.ID); ok {
		ch.(chan []byte) <- payload
	}
}

// InvokeRaw emits payload and waits for the response with the same uuid.
// Payloads without a usable uuid are rejected locally because their
// response could not be matched.
func (c *socketIOClient) InvokeRaw(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := ParseRequest(payload)
	if err != nil {
		return nil, fmt.Errorf("socketio: %w", err)
	}
	ch := make(chan []byte, 1)
	if _, loaded := c.pending.LoadOrStore(req.UUID, ch); loaded {
		return nil, fmt.Errorf("socketio: request %s already in flight", req.UUID)
	}
	defer c.pending.Delete(req.UUID)

	c.io.Emit(SocketIOEvent, string(payload))
	select {
	case out := <-ch:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *socketIOClient) Close() error {
	c.io.Disconnect()
	return nil
}
