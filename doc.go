// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ipc bridges a web front-end to methods on host objects.
//
// The front-end sends JSON envelopes naming an instance, a method and
// positional arguments; the host answers with an envelope carrying either the
// result or an error message, correlated by the request uuid.
//
// # Registration
//
// Instances are registered once at startup and the registry is then frozen:
//
//	b := ipc.NewBuilder()
//	if err := b.Register("calc", &Calculator{}); err != nil {
//	    log.Fatal(err)
//	}
//	d := ipc.NewDispatcher(b.Freeze())
//
// A target exposes methods by embedding ipc.ExposeAll or by implementing
// ipc.Exposer. Alternatively an explicit table of entries can be given; the
// typed Func, Action and Async entries call the method without reflection:
//
//	b.Register("calc", calc,
//	    ipc.MethodOf("Add", calc.Add),
//	    ipc.Async2("AddAsync", calc.AddAsync),
//	)
//
// # Dispatch
//
// Dispatcher.Invoke never fails: malformed envelopes, unknown names,
// argument conversion errors and errors or panics inside methods all become
// failure envelopes.
//
//	{"uuid":"r1","instance":"calc","method":"Add","args":[2,3]}
//	{"uuid":"r1","type":"InvokationRequest","data":5}
//
// # Transports
//
// The stream transport is the default; http, grpc and socketio are also
// registered. Attach serves an in-process MessageChannel such as a web view
// message port.
//
//	server, err := ipc.Listen(":9000", d, ipc.WithServerTransport(ipc.TransportHTTP))
//	client, err := ipc.Dial(ctx, "localhost:9000", ipc.WithTransport(ipc.TransportHTTP))
//
// # Architecture
//
//   - client.go: Client and Server interfaces, options
//   - codec.go: client envelope codec and the raw gRPC codec
//   - transport.go: Transport registry
//   - dial.go: Dial and Listen factory functions
//   - stream.go: framed TCP transport (default)
//   - json.go: JSON-RPC 2.0 over HTTP gateway
//   - grpc.go: gRPC transport with a raw envelope codec
//   - socketio.go: socket.io transport for browsers
//   - channel.go: in-process message channels
package ipc
