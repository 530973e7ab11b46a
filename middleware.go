// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import "context"

// Middleware transforms the request Context before a handler runs. It
// returns a new Context or an error that ends the chain.
type Middleware func(ctx context.Context, c Context) (Context, error)

// Chain composes middlewares left to right. The first error stops the chain.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, c Context) (Context, error) {
		var err error
		for _, mw := range mws {
			if c, err = mw(ctx, c); err != nil {
				return Context{}, err
			}
		}
		return c, nil
	}
}

// RequireSession rejects anonymous requests with UNAUTHORIZED.
func RequireSession(ctx context.Context, c Context) (Context, error) {
	if c.Session == nil {
		return Context{}, NewError(CodeUnauthorized, "")
	}
	s := *c.Session
	return Context{Session: &s}, nil
}
