// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/luxfi/trpc"

// dispatcher resolves and executes calls for every server-side binding.
type dispatcher struct {
	router *Router
	opts   serverOptions
	tracer trace.Tracer
}

func newDispatcher(router *Router, opts []ServerOption) *dispatcher {
	return &dispatcher{
		router: router,
		opts:   newServerOptions(opts),
		tracer: otel.Tracer(instrumentationName),
	}
}

// newContext runs the context factory once for an inbound request.
func (d *dispatcher) newContext(ctx context.Context, info RequestInfo) (Context, *Error) {
	c, err := d.opts.factory(ctx, info)
	if err != nil {
		d.opts.logger.Error().Err(err).Str("transport", info.Transport).Msg("create context failed")
		return Context{}, &Error{Code: CodeInternal, Message: "failed to create context", Cause: err}
	}
	return c, nil
}

// batchCall is one call of an inbound request. An empty kind accepts either.
type batchCall struct {
	path  string
	kind  Kind
	input []byte
}

type callResult struct {
	data []byte
	err  *Error
}

// callAll runs calls concurrently. A failure in one never affects another.
func (d *dispatcher) callAll(ctx context.Context, c Context, calls []batchCall) []callResult {
	results := make([]callResult, len(calls))
	if len(calls) == 1 {
		results[0].data, results[0].err = d.call(ctx, c, calls[0])
		return results
	}
	var wg sync.WaitGroup
	for i := range calls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i].data, results[i].err = d.call(ctx, c, calls[i])
		}(i)
	}
	wg.Wait()
	return results
}

func (d *dispatcher) call(ctx context.Context, c Context, bc batchCall) (data []byte, rpcErr *Error) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, bc.path, trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "trpc"),
			attribute.String("rpc.method", bc.path),
		))
	defer func() {
		var code Code
		if rpcErr != nil {
			code = rpcErr.Code
			span.SetStatus(otelcodes.Error, rpcErr.Message)
			span.SetAttributes(attribute.String("trpc.code", string(code)))
		}
		span.End()
		d.finish(bc, code, rpcErr, time.Since(start))
	}()

	proc, ok := d.router.Lookup(bc.path)
	if !ok {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("No procedure found on path %q", bc.path), Path: bc.path}
	}
	if bc.kind != "" && bc.kind != proc.kind {
		return nil, &Error{
			Code:    CodeMethodNotSupported,
			Message: fmt.Sprintf("Unsupported %s-type request to %s procedure at path %q", bc.kind, proc.kind, bc.path),
			Path:    bc.path,
		}
	}
	bc.kind = proc.kind

	decode := func(v any) error {
		if isEmptyInput(bc.input) {
			return nil
		}
		if err := d.opts.codec.Decode(bc.input, v); err != nil {
			return &Error{Code: CodeBadRequest, Message: err.Error(), Cause: err}
		}
		return nil
	}

	out, err := d.run(ctx, proc, c, decode)
	if err != nil {
		return nil, asError(err, bc.path)
	}
	data, err = d.opts.codec.Encode(out)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: "failed to encode output", Path: bc.path, Cause: err}
	}
	return data, nil
}

func (d *dispatcher) run(ctx context.Context, proc *Procedure, c Context, decode func(any) error) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.opts.logger.Error().Interface("panic", r).Msg("procedure panicked")
			err = &Error{Code: CodeInternal, Message: "internal server error", Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	return proc.run(ctx, c, decode)
}

func (d *dispatcher) finish(bc batchCall, code Code, rpcErr *Error, elapsed time.Duration) {
	if d.opts.observer != nil {
		d.opts.observer.ObserveCall(bc.path, bc.kind, code, elapsed)
	}
	switch {
	case rpcErr == nil:
		d.opts.logger.Debug().Str("path", bc.path).Dur("duration", elapsed).Msg("call ok")
	case code == CodeInternal:
		d.opts.logger.Error().Err(rpcErr).Str("path", bc.path).Dur("duration", elapsed).Msg("call failed")
	default:
		d.opts.logger.Debug().Str("path", bc.path).Str("code", string(code)).Dur("duration", elapsed).Msg("call rejected")
	}
}

func (d *dispatcher) observeBatch(transport string, size int) {
	if d.opts.observer != nil {
		d.opts.observer.ObserveBatch(transport, size)
	}
}

// encodeError serializes err with the dispatcher codec.
func (d *dispatcher) encodeError(err *Error) []byte {
	data, encErr := d.opts.codec.Encode(err.shape())
	if encErr != nil {
		data, _ = JSONCodec{}.Encode(err.shape())
	}
	return data
}
