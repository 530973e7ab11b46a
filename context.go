// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"context"
	"net/http"
)

// Session identifies the caller of a request.
type Session struct {
	UserID string `json:"userId"`
}

// Context is the per-request value every procedure receives. It is built
// once per inbound request and never mutated; middleware returns a new value.
type Context struct {
	Session *Session
}

// AuthedContext is the context a protected handler receives. The session is
// always present.
type AuthedContext struct {
	Session Session
}

// RequestInfo describes the inbound transport request a Context is built from.
type RequestInfo struct {
	Transport  string
	Method     string
	Path       string
	Header     http.Header
	RemoteAddr string
}

// ContextFactory builds the Context for one inbound request. A missing
// session is a valid result, not an error.
type ContextFactory func(ctx context.Context, req RequestInfo) (Context, error)

// CreateContext is the default factory. Session verification is not
// implemented, so every request is anonymous.
func CreateContext(ctx context.Context, req RequestInfo) (Context, error) {
	return Context{Session: nil}, nil
}

// StaticContext returns a factory that always yields c.
func StaticContext(c Context) ContextFactory {
	return func(context.Context, RequestInfo) (Context, error) {
		return c, nil
	}
}
