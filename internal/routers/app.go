// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package routers holds the server-side procedures and the application
// router that serves them.
package routers

import "github.com/luxfi/trpc"

// NewAppRouter composes every namespace into the application router.
func NewAppRouter() (*trpc.Router, error) {
	return trpc.NewRouter(
		trpc.Route("hello", NewHelloRouter()),
	)
}
