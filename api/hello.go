// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api is the contract shared by the server and its clients:
// procedure paths, their input and output types and typed call wrappers.
package api

import (
	"context"

	"github.com/luxfi/trpc"
)

const (
	// PathHelloGreet is the public greeting query.
	PathHelloGreet = "hello.greet"

	// GreetMessage is the fixed reply of hello.greet.
	GreetMessage = "Hello from tRPC!"
)

// GreetOutput is the result of hello.greet.
type GreetOutput struct {
	Message string `json:"message"`
}

// HelloClient calls the hello namespace.
type HelloClient struct {
	c trpc.Client
}

func NewHelloClient(c trpc.Client) *HelloClient {
	return &HelloClient{c: c}
}

// Greet calls hello.greet.
func (h *HelloClient) Greet(ctx context.Context) (GreetOutput, error) {
	return trpc.QueryAs[GreetOutput](ctx, h.c, PathHelloGreet, nil)
}

// GreetCall prepares hello.greet for a batch; out receives the result.
func GreetCall(out *GreetOutput) *trpc.Call {
	return trpc.NewQuery(PathHelloGreet, nil, out)
}
