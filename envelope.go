// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// CallArgs is the request envelope of the JSON-RPC and gRPC bindings.
// Input is the codec encoding of the procedure input.
type CallArgs struct {
	Path  string          `json:"path"`
	Type  Kind            `json:"type,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// CallReply carries the codec encoding of a procedure output.
type CallReply struct {
	Data json.RawMessage `json:"data"`
}

// BatchArgs is a list of independent calls.
type BatchArgs struct {
	Calls []CallArgs `json:"calls"`
}

// BatchResult is one outcome of a batch; exactly one of Data and Error is set.
type BatchResult struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *errorShape     `json:"error,omitempty"`
}

// BatchReply holds the batch outcomes in call order.
type BatchReply struct {
	Results []BatchResult `json:"results"`
}

func (a CallArgs) batchCall() (batchCall, *Error) {
	if a.Type != "" && !a.Type.valid() {
		return batchCall{}, &Error{Code: CodeBadRequest, Message: fmt.Sprintf("invalid call type %q", a.Type), Path: a.Path}
	}
	return batchCall{path: a.Path, kind: a.Type, input: a.Input}, nil
}

// callEnvelope executes one enveloped call.
func (d *dispatcher) callEnvelope(ctx context.Context, c Context, args *CallArgs) (*CallReply, *Error) {
	bc, rpcErr := args.batchCall()
	if rpcErr != nil {
		return nil, rpcErr
	}
	data, rpcErr := d.call(ctx, c, bc)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &CallReply{Data: data}, nil
}

// batchEnvelope executes every call of args and reports each outcome. Only
// an oversized batch fails as a whole.
func (d *dispatcher) batchEnvelope(ctx context.Context, c Context, args *BatchArgs) (*BatchReply, *Error) {
	if limit := d.opts.maxBatchSize; limit > 0 && len(args.Calls) > limit {
		return nil, Errorf(CodeBadRequest, "Batch of %d calls exceeds the limit of %d", len(args.Calls), limit)
	}
	reply := &BatchReply{Results: make([]BatchResult, len(args.Calls))}
	var (
		calls []batchCall
		slots []int
	)
	for i, a := range args.Calls {
		bc, rpcErr := a.batchCall()
		if rpcErr != nil {
			shape := rpcErr.shape()
			reply.Results[i].Error = &shape
			continue
		}
		calls = append(calls, bc)
		slots = append(slots, i)
	}
	for j, res := range d.callAll(ctx, c, calls) {
		i := slots[j]
		if res.err != nil {
			shape := res.err.shape()
			reply.Results[i].Error = &shape
			continue
		}
		reply.Results[i].Data = res.data
	}
	return reply, nil
}

const (
	methodCall  = "Call"
	methodBatch = "Batch"
)

// invokeFunc sends one envelope. Failures reported by the server come back
// as *Error; anything else is a transport failure.
type invokeFunc func(ctx context.Context, method string, args, reply any) error

// unaryClient implements Client for bindings that carry one envelope per
// round trip.
type unaryClient struct {
	codec  Codec
	invoke invokeFunc
	close  func() error
}

func (c *unaryClient) Query(ctx context.Context, path string, input, output any) error {
	return c.call(ctx, NewQuery(path, input, output))
}

func (c *unaryClient) Mutate(ctx context.Context, path string, input, output any) error {
	return c.call(ctx, NewMutation(path, input, output))
}

func (c *unaryClient) args(call *Call) (CallArgs, error) {
	args := CallArgs{Path: call.Path, Type: call.Kind}
	if call.Input != nil {
		raw, err := c.codec.Encode(call.Input)
		if err != nil {
			return CallArgs{}, fmt.Errorf("trpc: encode %s input: %w", call.Path, err)
		}
		args.Input = raw
	}
	return args, nil
}

func (c *unaryClient) call(ctx context.Context, call *Call) error {
	args, err := c.args(call)
	if err != nil {
		return err
	}
	var reply CallReply
	if err := c.invoke(ctx, methodCall, &args, &reply); err != nil {
		return err
	}
	return c.decode(call, reply.Data)
}

func (c *unaryClient) decode(call *Call, data json.RawMessage) error {
	if call.Output == nil || len(data) == 0 {
		return nil
	}
	if err := c.codec.Decode(data, call.Output); err != nil {
		return fmt.Errorf("trpc: decode %s output: %w", call.Path, err)
	}
	return nil
}

func (c *unaryClient) Batch(ctx context.Context, calls ...*Call) error {
	args := BatchArgs{Calls: make([]CallArgs, 0, len(calls))}
	var sent []*Call
	for _, call := range calls {
		a, err := c.args(call)
		if err != nil {
			call.Err = err
			continue
		}
		args.Calls = append(args.Calls, a)
		sent = append(sent, call)
	}
	if len(sent) == 0 {
		return nil
	}

	var reply BatchReply
	if err := c.invoke(ctx, methodBatch, &args, &reply); err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			return err
		}
		for _, call := range sent {
			call.Err = rpcErr
		}
		return nil
	}
	if len(reply.Results) != len(sent) {
		return fmt.Errorf("trpc: batch reply has %d results for %d calls", len(reply.Results), len(sent))
	}
	for i, call := range sent {
		res := reply.Results[i]
		if res.Error != nil {
			call.Err = res.Error.toError()
			continue
		}
		call.Err = c.decode(call, res.Data)
	}
	return nil
}

func (c *unaryClient) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}
