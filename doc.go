// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package trpc provides typed remote procedure calls between a Go server and
// its clients using the tRPC wire conventions.
//
// # Procedures and routers
//
// A procedure is a query or a mutation with a typed input and output.
// Procedures are grouped into routers and addressed by dotted paths:
//
//	hello := trpc.MustRouter(
//	    trpc.Route("greet", trpc.Query(func(ctx context.Context, c trpc.Context, _ trpc.Void) (Greeting, error) {
//	        return Greeting{Message: "Hello"}, nil
//	    })),
//	)
//	app := trpc.MustRouter(trpc.Route("hello", hello))
//
// Protected procedures reject requests without a session with UNAUTHORIZED
// before the handler runs:
//
//	trpc.ProtectedQuery(func(ctx context.Context, c trpc.AuthedContext, _ trpc.Void) (Profile, error) {
//	    return load(ctx, c.Session.UserID)
//	})
//
// # Transports
//
// The router can be served over three bindings:
//
//   - http: the tRPC HTTP batch format (NewHTTPHandler), the default
//   - jsonrpc: JSON-RPC 2.0 via gorilla/rpc (NewJSONRPCHandler)
//   - grpc: a JSON-coded gRPC service (RegisterGRPC)
//
// Clients are transport-agnostic:
//
//	client, err := trpc.Dial(ctx, "http://localhost:3001/trpc")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	greeting, err := trpc.QueryAs[Greeting](ctx, client, "hello.greet", nil)
//
// The HTTP client coalesces calls issued within a short window into one
// batched request. Each call still resolves on its own; a failed call never
// fails its neighbours.
//
// # Serialization
//
// Inputs, outputs and errors are encoded with SuperJSON by default, which
// keeps dates, big integers and non-finite floats typed across the wire.
// JSONCodec is available for peers that speak plain JSON.
//
// # Errors
//
// Failures are *Error values with one of a fixed set of codes. The code
// survives every transport, so clients can branch on CodeOf(err).
package trpc
