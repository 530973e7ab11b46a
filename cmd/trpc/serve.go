// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/luxfi/trpc/internal/config"
	"github.com/luxfi/trpc/internal/observability"
	"github.com/luxfi/trpc/internal/routers"
	"github.com/luxfi/trpc/internal/server"
)

func newRootCommand(logger zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "trpc",
		Short:         "trpc serves the application router over HTTP, JSON-RPC and gRPC",
		SilenceErrors: true,
		Example: `
  # Listen on the default port 3001
  trpc

  # Listen on 8080 with gRPC enabled
  PORT=8080 trpc --grpc-addr :50051

  # Call a procedure on a running server
  trpc call hello.greet
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, logger)
		},
	}
	config.RegisterFlags(cmd.Flags())

	cmd.AddCommand(newServeCommand(logger))
	cmd.AddCommand(newCallCommand())
	cmd.AddCommand(newRoutesCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newServeCommand(logger zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, logger)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, logger zerolog.Logger) error {
	cmd.SilenceUsage = true
	v, err := config.NewViper(cmd.Flags())
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(v, logger)
	if err != nil {
		return err
	}

	logger = observability.NewLogger(os.Stdout, "trpc", observability.LogOptions{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	log.Logger = logger
	if logger.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := routers.NewAppRouter()
	if err != nil {
		return err
	}
	srv, err := server.New(cfg, router, logger)
	if err != nil {
		return err
	}
	logger.Info().
		Int("port", cfg.Port).
		Str("prefix", cfg.Prefix).
		Strs("cors_origins", cfg.CORSOrigins).
		Str("max_body", humanize.IBytes(uint64(cfg.MaxBodySize))).
		Int("max_batch", cfg.MaxBatchSize).
		Str("grpc_addr", cfg.GRPCAddr).
		Msg("starting")
	return srv.Run(cmd.Context())
}
