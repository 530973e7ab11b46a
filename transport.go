// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"context"
	"sort"
	"sync"
)

// Transport types
const (
	TransportHTTP    = "http"    // tRPC HTTP batch wire format, default
	TransportJSONRPC = "jsonrpc" // JSON-RPC 2.0 over HTTP
	TransportGRPC    = "grpc"    // gRPC with a JSON codec
)

// DefaultTransport is the default transport type (HTTP)
const DefaultTransport = TransportHTTP

type dialFunc func(ctx context.Context, target string, o *dialOptions) (Client, error)

var (
	transportsMu sync.RWMutex
	transports   = map[string]dialFunc{}
)

// registerTransport registers a client transport under name
func registerTransport(name string, dial dialFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = dial
}

func lookupTransport(name string) (dialFunc, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	dial, ok := transports[name]
	return dial, ok
}

// AvailableTransports returns the sorted list of available transport types
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
