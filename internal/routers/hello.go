// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package routers

import (
	"context"

	"github.com/luxfi/trpc"
	"github.com/luxfi/trpc/api"
)

func greet(context.Context, trpc.Context, trpc.Void) (api.GreetOutput, error) {
	return api.GreetOutput{Message: api.GreetMessage}, nil
}

// NewHelloRouter returns the hello namespace.
func NewHelloRouter() *trpc.Router {
	return trpc.MustRouter(
		trpc.Route("greet", trpc.Query(greet)),
	)
}
