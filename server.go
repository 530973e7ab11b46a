// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultPrefix is the path the HTTP binding is mounted under.
	DefaultPrefix = "/trpc"
	// DefaultMaxBatchSize bounds the number of calls in one inbound batch.
	DefaultMaxBatchSize = 64
	// DefaultMaxBodySize bounds an inbound request body.
	DefaultMaxBodySize int64 = 1 << 20
)

// Observer receives one event per executed call and per inbound batch.
// A successful call is reported with an empty code.
type Observer interface {
	ObserveCall(path string, kind Kind, code Code, d time.Duration)
	ObserveBatch(transport string, size int)
}

// ServerOption configures the server-side bindings.
type ServerOption func(*serverOptions)

type serverOptions struct {
	codec        Codec
	factory      ContextFactory
	logger       zerolog.Logger
	observer     Observer
	prefix       string
	maxBatchSize int
	maxBodySize  int64
}

func newServerOptions(opts []ServerOption) serverOptions {
	o := serverOptions{
		codec:        defaultCodec,
		factory:      CreateContext,
		logger:       zerolog.Nop(),
		prefix:       DefaultPrefix,
		maxBatchSize: DefaultMaxBatchSize,
		maxBodySize:  DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithServerCodec sets the codec for inputs, outputs and errors.
func WithServerCodec(c Codec) ServerOption {
	return func(o *serverOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithContextFactory replaces CreateContext.
func WithContextFactory(f ContextFactory) ServerOption {
	return func(o *serverOptions) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithServerLogger sets the logger for per-call diagnostics.
func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// WithObserver registers a metrics observer.
func WithObserver(obs Observer) ServerOption {
	return func(o *serverOptions) { o.observer = obs }
}

// WithPrefix sets the HTTP mount prefix.
func WithPrefix(prefix string) ServerOption {
	return func(o *serverOptions) { o.prefix = prefix }
}

// WithMaxBatchSize bounds inbound batches; n <= 0 disables the limit.
func WithMaxBatchSize(n int) ServerOption {
	return func(o *serverOptions) { o.maxBatchSize = n }
}

// WithMaxBodySize bounds inbound bodies; n <= 0 disables the limit.
func WithMaxBodySize(n int64) ServerOption {
	return func(o *serverOptions) { o.maxBodySize = n }
}
