// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"context"
	"fmt"
)

// Dial returns a client for target using the default transport (HTTP).
// For http and jsonrpc the target is a URL such as
// "http://localhost:3001/trpc"; for grpc it is a host:port.
func Dial(ctx context.Context, target string, opts ...DialOption) (Client, error) {
	o := newDialOptions(opts)
	dial, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	return dial(ctx, target, o)
}

// QueryAs calls a query and returns its typed result.
func QueryAs[Out any](ctx context.Context, c Client, path string, input any) (Out, error) {
	var out Out
	err := c.Query(ctx, path, input, &out)
	return out, err
}

// MutateAs calls a mutation and returns its typed result.
func MutateAs[Out any](ctx context.Context, c Client, path string, input any) (Out, error) {
	var out Out
	err := c.Mutate(ctx, path, input, &out)
	return out, err
}
