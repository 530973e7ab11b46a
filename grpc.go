// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	// GRPCServiceName is the full name of the router service.
	GRPCServiceName = "trpc.Router"
	// GRPCCodecName is the content-subtype envelopes are exchanged in.
	GRPCCodecName = "trpcjson"

	trailerCode = "trpc-code"
	trailerPath = "trpc-path"
)

func init() {
	encoding.RegisterCodec(grpcCodec{})
	registerTransport(TransportGRPC, dialGRPC)
}

// grpcCodec marshals the JSON envelopes; no protobuf types are involved.
type grpcCodec struct{}

func (grpcCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (grpcCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (grpcCodec) Name() string                       { return GRPCCodecName }

var grpcCodes = map[Code]codes.Code{
	CodeParseError:         codes.InvalidArgument,
	CodeBadRequest:         codes.InvalidArgument,
	CodeUnauthorized:       codes.Unauthenticated,
	CodeNotFound:           codes.NotFound,
	CodeMethodNotSupported: codes.Unimplemented,
	CodePayloadTooLarge:    codes.ResourceExhausted,
	CodeInternal:           codes.Internal,
}

// GRPCCode returns the gRPC status code for c.
func (c Code) GRPCCode() codes.Code {
	if gc, ok := grpcCodes[c]; ok {
		return gc
	}
	return codes.Internal
}

type grpcRouterServer interface {
	Call(context.Context, *CallArgs) (*CallReply, error)
	Batch(context.Context, *BatchArgs) (*BatchReply, error)
}

var grpcServiceDesc = grpc.ServiceDesc{
	ServiceName: GRPCServiceName,
	HandlerType: (*grpcRouterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodCall, Handler: grpcCallHandler},
		{MethodName: methodBatch, Handler: grpcBatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trpc",
}

func grpcCallHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CallArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(grpcRouterServer).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + GRPCServiceName + "/" + methodCall}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(grpcRouterServer).Call(ctx, req.(*CallArgs))
	}
	return interceptor(ctx, in, info, handler)
}

func grpcBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BatchArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(grpcRouterServer).Batch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + GRPCServiceName + "/" + methodBatch}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(grpcRouterServer).Batch(ctx, req.(*BatchArgs))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterGRPC registers router on s as the trpc.Router service.
func RegisterGRPC(s grpc.ServiceRegistrar, router *Router, opts ...ServerOption) {
	s.RegisterService(&grpcServiceDesc, &grpcRouter{d: newDispatcher(router, opts)})
}

type grpcRouter struct {
	d *dispatcher
}

func (g *grpcRouter) context(ctx context.Context) (Context, *Error) {
	info := RequestInfo{Transport: TransportGRPC, Header: make(http.Header)}
	if method, ok := grpc.Method(ctx); ok {
		info.Path = method
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for k, vs := range md {
			for _, v := range vs {
				info.Header.Add(k, v)
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		info.RemoteAddr = p.Addr.String()
	}
	return g.d.newContext(ctx, info)
}

func (g *grpcRouter) Call(ctx context.Context, in *CallArgs) (*CallReply, error) {
	g.d.observeBatch(TransportGRPC, 1)
	c, rpcErr := g.context(ctx)
	if rpcErr != nil {
		return nil, toStatusError(ctx, rpcErr)
	}
	out, rpcErr := g.d.callEnvelope(ctx, c, in)
	if rpcErr != nil {
		return nil, toStatusError(ctx, rpcErr)
	}
	return out, nil
}

func (g *grpcRouter) Batch(ctx context.Context, in *BatchArgs) (*BatchReply, error) {
	g.d.observeBatch(TransportGRPC, len(in.Calls))
	c, rpcErr := g.context(ctx)
	if rpcErr != nil {
		return nil, toStatusError(ctx, rpcErr)
	}
	out, rpcErr := g.d.batchEnvelope(ctx, c, in)
	if rpcErr != nil {
		return nil, toStatusError(ctx, rpcErr)
	}
	return out, nil
}

// toStatusError maps e to a gRPC status and carries the exact code and path
// in the trailer.
func toStatusError(ctx context.Context, e *Error) error {
	md := metadata.Pairs(trailerCode, string(e.Code))
	if e.Path != "" {
		md.Append(trailerPath, e.Path)
	}
	_ = grpc.SetTrailer(ctx, md)
	return status.Error(e.Code.GRPCCode(), e.Message)
}

func fromStatusError(err error, trailer metadata.MD) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if vals := trailer.Get(trailerCode); len(vals) > 0 && Code(vals[0]).Valid() {
		out := &Error{Code: Code(vals[0]), Message: st.Message()}
		if paths := trailer.Get(trailerPath); len(paths) > 0 {
			out.Path = paths[0]
		}
		return out
	}
	return fmt.Errorf("grpc call: %w", err)
}

func dialGRPC(_ context.Context, target string, o *dialOptions) (Client, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(GRPCCodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	md := metadata.MD{}
	for k, vs := range o.header {
		md.Append(k, vs...)
	}
	invoke := func(ctx context.Context, method string, args, reply any) error {
		if len(md) > 0 {
			if existing, ok := metadata.FromOutgoingContext(ctx); ok {
				ctx = metadata.NewOutgoingContext(ctx, metadata.Join(existing, md))
			} else {
				ctx = metadata.NewOutgoingContext(ctx, md)
			}
		}
		var trailer metadata.MD
		err := conn.Invoke(ctx, "/"+GRPCServiceName+"/"+method, args, reply, grpc.Trailer(&trailer))
		if err != nil {
			return fromStatusError(err, trailer)
		}
		return nil
	}
	return &unaryClient{codec: o.codec, invoke: invoke, close: conn.Close}, nil
}
