// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client is the transport-agnostic caller interface.
// All application code should use this interface.
type Client interface {
	// Query calls a query procedure. input may be nil; output, when non-nil,
	// receives the decoded result.
	Query(ctx context.Context, path string, input, output any) error

	// Mutate calls a mutation procedure.
	Mutate(ctx context.Context, path string, input, output any) error

	// Batch sends calls together. Per-call failures land in Call.Err; the
	// returned error reports only a failure to send at all.
	Batch(ctx context.Context, calls ...*Call) error

	// Close releases the client. Calls still waiting fail.
	Close() error
}

// Call is one logical call of a batch.
type Call struct {
	Kind   Kind
	Path   string
	Input  any
	Output any
	Err    error
}

// NewQuery prepares a query call for Batch.
func NewQuery(path string, input, output any) *Call {
	return &Call{Kind: KindQuery, Path: path, Input: input, Output: output}
}

// NewMutation prepares a mutation call for Batch.
func NewMutation(path string, input, output any) *Call {
	return &Call{Kind: KindMutation, Path: path, Input: input, Output: output}
}

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	codec       Codec
	transport   string // "http", "jsonrpc", "grpc"
	httpClient  *http.Client
	header      http.Header
	logger      zerolog.Logger
	batchWindow time.Duration
	batchLimit  int
}

const (
	// DefaultBatchWindow is how long the HTTP client collects calls before
	// sending them as one batch.
	DefaultBatchWindow = time.Millisecond
	// DefaultBatchLimit caps the calls per outbound batch.
	DefaultBatchLimit = 10
)

func newDialOptions(opts []DialOption) *dialOptions {
	o := &dialOptions{
		codec:       defaultCodec,
		transport:   DefaultTransport,
		header:      make(http.Header),
		logger:      zerolog.Nop(),
		batchWindow: DefaultBatchWindow,
		batchLimit:  DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCodec sets a custom codec
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithHTTPClient sets the http.Client used by the http and jsonrpc transports.
func WithHTTPClient(c *http.Client) DialOption {
	return func(o *dialOptions) { o.httpClient = c }
}

// WithHeader adds a header to every outbound request (metadata for gRPC).
func WithHeader(key, value string) DialOption {
	return func(o *dialOptions) { o.header.Add(key, value) }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// WithBatchWindow sets how long calls are collected before a batch is sent.
func WithBatchWindow(d time.Duration) DialOption {
	return func(o *dialOptions) { o.batchWindow = d }
}

// WithBatchLimit caps the calls per outbound batch; n <= 0 means no cap.
func WithBatchLimit(n int) DialOption {
	return func(o *dialOptions) { o.batchLimit = n }
}
