// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"context"
	"fmt"
)

// NewCaller returns a Client that runs router procedures in process with a
// fixed Context. Inputs and outputs still pass through the server codec, so
// callers observe the same values a remote client would.
func NewCaller(router *Router, c Context, opts ...ServerOption) Client {
	return &caller{d: newDispatcher(router, opts), c: c}
}

type caller struct {
	d *dispatcher
	c Context
}

func (c *caller) Query(ctx context.Context, path string, input, output any) error {
	return c.do(ctx, NewQuery(path, input, output))
}

func (c *caller) Mutate(ctx context.Context, path string, input, output any) error {
	return c.do(ctx, NewMutation(path, input, output))
}

func (c *caller) Batch(ctx context.Context, calls ...*Call) error {
	for _, call := range calls {
		call.Err = c.do(ctx, call)
	}
	return nil
}

func (c *caller) Close() error { return nil }

func (c *caller) do(ctx context.Context, call *Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bc := batchCall{path: call.Path, kind: call.Kind}
	if call.Input != nil {
		raw, err := c.d.opts.codec.Encode(call.Input)
		if err != nil {
			return fmt.Errorf("trpc: encode %s input: %w", call.Path, err)
		}
		bc.input = raw
	}
	data, rpcErr := c.d.call(ctx, c.c, bc)
	if rpcErr != nil {
		return rpcErr
	}
	if call.Output == nil {
		return nil
	}
	if err := c.d.opts.codec.Decode(data, call.Output); err != nil {
		return fmt.Errorf("trpc: decode %s output: %w", call.Path, err)
	}
	return nil
}
