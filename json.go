// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	gorillarpc "github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// JSONRPCServiceName is the service the router is registered under; its
// methods are "trpc.Call" and "trpc.Batch".
const JSONRPCServiceName = "trpc"

func init() {
	registerTransport(TransportJSONRPC, dialJSONRPC)
}

// JSONRPCService adapts a router to a gorilla/rpc service.
type JSONRPCService struct {
	d *dispatcher
}

// NewJSONRPCHandler serves router as a JSON-RPC 2.0 endpoint.
func NewJSONRPCHandler(router *Router, opts ...ServerOption) (http.Handler, error) {
	s := gorillarpc.NewServer()
	s.RegisterCodec(json2.NewCodec(), "application/json")
	if err := s.RegisterService(&JSONRPCService{d: newDispatcher(router, opts)}, JSONRPCServiceName); err != nil {
		return nil, fmt.Errorf("register jsonrpc service: %w", err)
	}
	return s, nil
}

func (s *JSONRPCService) context(r *http.Request) (Context, *Error) {
	return s.d.newContext(r.Context(), RequestInfo{
		Transport:  TransportJSONRPC,
		Method:     r.Method,
		Path:       r.URL.Path,
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
	})
}

// Call executes one procedure.
func (s *JSONRPCService) Call(r *http.Request, args *CallArgs, reply *CallReply) error {
	s.d.observeBatch(TransportJSONRPC, 1)
	c, rpcErr := s.context(r)
	if rpcErr != nil {
		return toJSON2Error(rpcErr)
	}
	out, rpcErr := s.d.callEnvelope(r.Context(), c, args)
	if rpcErr != nil {
		return toJSON2Error(rpcErr)
	}
	*reply = *out
	return nil
}

// Batch executes every call independently and reports each outcome.
func (s *JSONRPCService) Batch(r *http.Request, args *BatchArgs, reply *BatchReply) error {
	s.d.observeBatch(TransportJSONRPC, len(args.Calls))
	c, rpcErr := s.context(r)
	if rpcErr != nil {
		return toJSON2Error(rpcErr)
	}
	out, rpcErr := s.d.batchEnvelope(r.Context(), c, args)
	if rpcErr != nil {
		return toJSON2Error(rpcErr)
	}
	*reply = *out
	return nil
}

func toJSON2Error(e *Error) *json2.Error {
	return &json2.Error{
		Code:    json2.ErrorCode(e.Code.JSONRPCCode()),
		Message: e.Message,
		Data:    e.shape().Data,
	}
}

func fromJSON2Error(e *json2.Error) *Error {
	out := &Error{Code: CodeFromJSONRPC(int(e.Code)), Message: e.Message}
	if data, ok := e.Data.(map[string]interface{}); ok {
		if code, ok := data["code"].(string); ok && Code(code).Valid() {
			out.Code = Code(code)
		}
		if path, ok := data["path"].(string); ok {
			out.Path = path
		}
	}
	return out
}

func dialJSONRPC(_ context.Context, target string, o *dialOptions) (Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc dial: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("jsonrpc dial: unsupported scheme %q", u.Scheme)
	}
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	s := &jsonrpcSender{uri: target, hc: hc, o: o}
	return &unaryClient{codec: o.codec, invoke: s.send}, nil
}

type jsonrpcSender struct {
	uri string
	hc  *http.Client
	o   *dialOptions
}

// send issues one JSON-RPC request. Calls are not retried.
func (s *jsonrpcSender) send(ctx context.Context, method string, params, reply any) error {
	requestBodyBytes, err := json2.EncodeClientRequest(JSONRPCServiceName+"."+method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uri, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range s.o.header {
		for _, v := range vs {
			request.Header.Add(k, v)
		}
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(request)
	if err != nil {
		return fmt.Errorf("failed to issue request: %w", err)
	}
	defer CleanlyCloseBody(resp.Body)

	// gorilla/rpc may answer an error with a non-2xx status, so the body is
	// decoded before the status is considered.
	if err := json2.DecodeClientResponse(resp.Body, reply); err != nil {
		var jsonErr *json2.Error
		if errors.As(err, &jsonErr) {
			return fromJSON2Error(jsonErr)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("received status code: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to decode client response: %w", err)
	}
	return nil
}
