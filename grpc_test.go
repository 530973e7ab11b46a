// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func startGRPC(t *testing.T, opts ...ServerOption) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	s := grpc.NewServer()
	RegisterGRPC(s, newTestRouter(t), opts...)
	go s.Serve(lis)
	t.Cleanup(s.Stop)
	return lis.Addr().String()
}

func dialGRPCTest(t *testing.T, addr string, opts ...DialOption) Client {
	t.Helper()
	client, err := Dial(context.Background(), addr, append([]DialOption{WithTransport(TransportGRPC)}, opts...)...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestGRPCCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addr := startGRPC(t, WithContextFactory(bearerContext))
	client := dialGRPCTest(t, addr, WithHeader("Authorization", "Bearer carol"))

	got, err := QueryAs[greeting](ctx, client, "hello.greet", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got.Message != "Hello from tRPC!" {
		t.Errorf("got %q", got.Message)
	}

	at := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	when, err := QueryAs[whenOutput](ctx, client, "echo.when", whenInput{At: at})
	if err != nil {
		t.Fatalf("Query echo.when: %v", err)
	}
	if !when.At.Equal(at) {
		t.Errorf("at = %v", when.At)
	}

	me, err := QueryAs[whoami](ctx, client, "secret.whoami", nil)
	if err != nil {
		t.Fatalf("Query secret.whoami: %v", err)
	}
	if me.UserID != "carol" {
		t.Errorf("userId = %q, want carol", me.UserID)
	}
}

func TestGRPCErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := dialGRPCTest(t, startGRPC(t))

	cases := []struct {
		path string
		code Code
	}{
		{"nope.missing", CodeNotFound},
		{"secret.whoami", CodeUnauthorized},
		{"boom.panic", CodeInternal},
	}
	for _, tc := range cases {
		err := client.Query(ctx, tc.path, nil, nil)
		var e *Error
		if !errors.As(err, &e) {
			t.Errorf("%s: expected *Error, got %v", tc.path, err)
			continue
		}
		if e.Code != tc.code || e.Path != tc.path {
			t.Errorf("%s: got code=%q path=%q", tc.path, e.Code, e.Path)
		}
	}

	err := client.Mutate(ctx, "hello.greet", nil, nil)
	if CodeOf(err) != CodeMethodNotSupported {
		t.Errorf("mutation of a query: %v", err)
	}
}

func TestGRPCBatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := dialGRPCTest(t, startGRPC(t))

	var sum addOutput
	calls := []*Call{
		NewQuery("echo.add", addInput{A: 2, B: 2}, &sum),
		NewQuery("nope.missing", nil, nil),
		NewMutation("post.create", createInput{}, nil),
	}
	if err := client.Batch(ctx, calls...); err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if calls[0].Err != nil || sum.Sum != 4 {
		t.Errorf("add: err=%v sum=%d", calls[0].Err, sum.Sum)
	}
	if CodeOf(calls[1].Err) != CodeNotFound {
		t.Errorf("missing: %v", calls[1].Err)
	}
	if CodeOf(calls[2].Err) != CodeBadRequest {
		t.Errorf("create: %v", calls[2].Err)
	}
}

func TestGRPCBatchLimit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := dialGRPCTest(t, startGRPC(t, WithMaxBatchSize(1)))
	calls := []*Call{NewQuery("hello.greet", nil, nil), NewQuery("hello.greet", nil, nil)}
	if err := client.Batch(ctx, calls...); err != nil {
		t.Fatalf("Batch: %v", err)
	}
	for i, call := range calls {
		if CodeOf(call.Err) != CodeBadRequest {
			t.Errorf("calls[%d]: %v", i, call.Err)
		}
	}
}

func TestGRPCStatusAndTrailer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addr := startGRPC(t)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()

	var (
		reply   CallReply
		trailer metadata.MD
	)
	err = conn.Invoke(ctx, "/"+GRPCServiceName+"/"+methodCall, &CallArgs{Path: "secret.whoami"}, &reply,
		grpc.CallContentSubtype(GRPCCodecName), grpc.Trailer(&trailer))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("status = %v, want Unauthenticated", status.Code(err))
	}
	if got := trailer.Get(trailerCode); len(got) != 1 || got[0] != string(CodeUnauthorized) {
		t.Fatalf("trailer code = %v", got)
	}
	if got := trailer.Get(trailerPath); len(got) != 1 || got[0] != "secret.whoami" {
		t.Fatalf("trailer path = %v", got)
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	cases := map[Code]codes.Code{
		CodeParseError:         codes.InvalidArgument,
		CodeBadRequest:         codes.InvalidArgument,
		CodeUnauthorized:       codes.Unauthenticated,
		CodeNotFound:           codes.NotFound,
		CodeMethodNotSupported: codes.Unimplemented,
		CodePayloadTooLarge:    codes.ResourceExhausted,
		CodeInternal:           codes.Internal,
		Code("TEAPOT"):         codes.Internal,
	}
	for code, want := range cases {
		if got := code.GRPCCode(); got != want {
			t.Errorf("%s: got %v, want %v", code, got, want)
		}
	}

	// Without the trailer the status is passed through as a transport error.
	err := fromStatusError(status.Error(codes.Unavailable, "down"), nil)
	if CodeOf(err) != CodeInternal {
		t.Fatalf("code = %q", CodeOf(err))
	}
	var e *Error
	if errors.As(err, &e) {
		t.Fatalf("status without trailer became a procedure error: %v", err)
	}
	if status.Code(errors.Unwrap(err)) != codes.Unavailable {
		t.Fatalf("status lost: %v", err)
	}
}
