// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	grpcServiceName  = "phosphor.ipc.Bridge"
	grpcInvokeMethod = "/" + grpcServiceName + "/Invoke"
)

func init() {
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

// grpcBridge is the service implementation registered with bridgeServiceDesc.
type grpcBridge interface {
	invoke(ctx context.Context, payload []byte) ([]byte, error)
}

var bridgeServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcServiceName,
	HandlerType: (*grpcBridge)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invoke", Handler: grpcInvokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "phosphor/ipc/bridge",
}

func grpcInvokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var in []byte
	if err := dec(&in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(grpcBridge).invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: grpcInvokeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(grpcBridge).invoke(ctx, req.([]byte))
	}
	return interceptor(ctx, in, info, handler)
}

type grpcServer struct {
	listener   net.Listener
	server     *grpc.Server
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func listenGRPC(addr string, d *Dispatcher, o *serverOptions) (Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen: %w", err)
	}
	s := &grpcServer{
		listener:   lis,
		dispatcher: d,
		logger:     componentLogger(o.logger, "grpc"),
	}
	s.server = grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnaryInterceptor(s.logUnary),
	)
	s.server.RegisterService(&bridgeServiceDesc, s)
	return s, nil
}

func (s *grpcServer) invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return json.Marshal(s.dispatcher.Invoke(ctx, payload))
}

func (s *grpcServer) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	started := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("unary call",
		zap.String("method", info.FullMethod),
		zap.Duration("latency", time.Since(started)),
		zap.Error(err))
	return resp, err
}

func (s *grpcServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.server.GracefulStop)
	defer stop()

	s.logger.Info("serving", zap.String("addr", s.Addr()))
	err := s.server.Serve(s.listener)
	if err == grpc.ErrServerStopped {
		return nil
	}
	return err
}

func (s *grpcServer) Close() error {
	s.server.Stop()
	return nil
}

func (s *grpcServer) Addr() string {
	return s.listener.Addr().String()
}

func dialGRPC(_ context.Context, addr string, o *dialOptions) (Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	c := &grpcClient{conn: conn}
	c.envelopeClient = envelopeClient{codec: o.codec, raw: c.InvokeRaw}
	return c, nil
}

type grpcClient struct {
	envelopeClient
	conn *grpc.ClientConn
}

func (c *grpcClient) InvokeRaw(ctx context.Context, payload []byte) ([]byte, error) {
	var resp []byte
	err := c.conn.Invoke(ctx, grpcInvokeMethod, payload, &resp)
	return resp, err
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}
