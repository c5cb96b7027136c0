// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"sort"
	"sync"
)

// Transport types
const (
	TransportStream   = "stream"   // length-prefixed frames over TCP, default
	TransportHTTP     = "http"     // JSON-RPC 2.0 over HTTP
	TransportGRPC     = "grpc"     // unary gRPC with raw envelopes
	TransportSocketIO = "socketio" // socket.io events, for browser front-ends
)

// DefaultTransport is the default transport type
const DefaultTransport = TransportStream

type dialFunc func(ctx context.Context, addr string, o *dialOptions) (Client, error)
type listenFunc func(addr string, d *Dispatcher, o *serverOptions) (Server, error)

type transportFuncs struct {
	dial   dialFunc
	listen listenFunc
}

var (
	transportsMu sync.RWMutex
	transports   = map[string]transportFuncs{
		TransportStream: {dialStream, listenStream},
	}
)

// registerTransport registers a transport; transport files call it from init.
func registerTransport(name string, dial dialFunc, listen listenFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = transportFuncs{dial, listen}
}

func lookupTransport(name string) (transportFuncs, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	t, ok := transports[name]
	return t, ok
}

// AvailableTransports returns the registered transport names, sorted
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	_, ok := lookupTransport(name)
	return ok
}
