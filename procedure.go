// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"context"
	"errors"
	"reflect"
)

// Kind distinguishes read-only queries from side-effecting mutations.
type Kind string

const (
	KindQuery    Kind = "query"
	KindMutation Kind = "mutation"
)

func (k Kind) valid() bool { return k == KindQuery || k == KindMutation }

// Void is the input type of procedures that take no input.
type Void struct{}

// Validator is implemented by inputs that check themselves after decoding.
type Validator interface {
	Validate() error
}

// Procedure is a leaf of the router tree. Build one with Query, Mutation,
// ProtectedQuery or ProtectedMutation.
type Procedure struct {
	kind        Kind
	protected   bool
	middlewares []Middleware
	input       reflect.Type
	output      reflect.Type
	exec        func(ctx context.Context, c Context, decode func(any) error) (any, error)
}

// Query declares a public query.
func Query[In, Out any](fn func(ctx context.Context, c Context, in In) (Out, error)) *Procedure {
	return newProcedure(KindQuery, false, fn)
}

// Mutation declares a public mutation.
func Mutation[In, Out any](fn func(ctx context.Context, c Context, in In) (Out, error)) *Procedure {
	return newProcedure(KindMutation, false, fn)
}

// ProtectedQuery declares a query that only runs for requests with a session.
func ProtectedQuery[In, Out any](fn func(ctx context.Context, c AuthedContext, in In) (Out, error)) *Procedure {
	return newProcedure(KindQuery, true, narrow(fn))
}

// ProtectedMutation declares a mutation that only runs for requests with a
// session.
func ProtectedMutation[In, Out any](fn func(ctx context.Context, c AuthedContext, in In) (Out, error)) *Procedure {
	return newProcedure(KindMutation, true, narrow(fn))
}

func narrow[In, Out any](fn func(context.Context, AuthedContext, In) (Out, error)) func(context.Context, Context, In) (Out, error) {
	return func(ctx context.Context, c Context, in In) (Out, error) {
		if c.Session == nil {
			var zero Out
			return zero, NewError(CodeUnauthorized, "")
		}
		return fn(ctx, AuthedContext{Session: *c.Session}, in)
	}
}

func newProcedure[In, Out any](kind Kind, protected bool, fn func(context.Context, Context, In) (Out, error)) *Procedure {
	p := &Procedure{
		kind:      kind,
		protected: protected,
		input:     reflect.TypeFor[In](),
		output:    reflect.TypeFor[Out](),
	}
	if protected {
		p.middlewares = []Middleware{RequireSession}
	}
	p.exec = func(ctx context.Context, c Context, decode func(any) error) (any, error) {
		var in In
		if _, void := any(in).(Void); !void {
			if err := decode(&in); err != nil {
				return nil, err
			}
			if err := validate(&in); err != nil {
				return nil, err
			}
		}
		return fn(ctx, c, in)
	}
	return p
}

func validate(in any) error {
	v, ok := in.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		return &Error{Code: CodeBadRequest, Message: err.Error(), Cause: err}
	}
	return nil
}

// Use returns a copy of p with mws appended to its middleware chain.
func (p *Procedure) Use(mws ...Middleware) *Procedure {
	cp := *p
	cp.middlewares = append(append([]Middleware(nil), p.middlewares...), mws...)
	return &cp
}

// Kind reports whether p is a query or a mutation.
func (p *Procedure) Kind() Kind { return p.kind }

// Protected reports whether p requires a session.
func (p *Procedure) Protected() bool { return p.protected }

// InputType is the Go type the input decodes into.
func (p *Procedure) InputType() reflect.Type { return p.input }

// OutputType is the Go type the handler returns.
func (p *Procedure) OutputType() reflect.Type { return p.output }

func (p *Procedure) run(ctx context.Context, c Context, decode func(any) error) (any, error) {
	if len(p.middlewares) > 0 {
		var err error
		if c, err = Chain(p.middlewares...)(ctx, c); err != nil {
			return nil, err
		}
	}
	return p.exec(ctx, c, decode)
}
