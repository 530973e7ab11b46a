// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package server hosts an application router behind a gin engine with CORS,
// request logging and metrics, plus an optional gRPC listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/luxfi/trpc"
	"github.com/luxfi/trpc/internal/config"
	"github.com/luxfi/trpc/internal/observability"
)

// RootMessage is the body of GET /.
const RootMessage = "tRPC API Server"

type Server struct {
	cfg     config.Config
	logger  zerolog.Logger
	engine  *gin.Engine
	handler http.Handler
	grpc    *grpc.Server
}

// New builds the server for router. opts are applied after the options
// derived from cfg, so callers can override the context factory or codec.
func New(cfg config.Config, router *trpc.Router, logger zerolog.Logger, opts ...trpc.ServerOption) (*Server, error) {
	if router == nil {
		return nil, errors.New("server: nil router")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	rpcOpts := append([]trpc.ServerOption{
		trpc.WithServerLogger(logger),
		trpc.WithObserver(observability.RPCMetrics{}),
		trpc.WithPrefix(cfg.Prefix),
		trpc.WithMaxBatchSize(cfg.MaxBatchSize),
		trpc.WithMaxBodySize(cfg.MaxBodySize),
	}, opts...)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		observability.RequestID(),
		observability.RequestLogger(logger),
		observability.RequestMetricsMiddleware(),
		corsMiddleware(cfg.CORSOrigins),
	)

	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": RootMessage})
	})

	rpc := trpc.NewHTTPHandler(router, rpcOpts...)
	engine.Any(cfg.Prefix+"/*path", gin.WrapH(rpc))

	if cfg.JSONRPCPath != "" {
		jsonrpc, err := trpc.NewJSONRPCHandler(router, rpcOpts...)
		if err != nil {
			return nil, err
		}
		engine.POST(cfg.JSONRPCPath, gin.WrapH(jsonrpc))
	}
	if cfg.MetricsPath != "" {
		engine.GET(cfg.MetricsPath, gin.WrapH(observability.MetricsHandler()))
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		engine:  engine,
		handler: otelhttp.NewHandler(engine, "trpc"),
	}
	if cfg.GRPCAddr != "" {
		var grpcOpts []grpc.ServerOption
		if cfg.MaxBodySize > 0 {
			grpcOpts = append(grpcOpts, grpc.MaxRecvMsgSize(int(cfg.MaxBodySize)))
		}
		s.grpc = grpc.NewServer(grpcOpts...)
		trpc.RegisterGRPC(s.grpc, router, rpcOpts...)
	}
	return s, nil
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type"},
		ExposeHeaders: []string{observability.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cc.AllowAllOrigins = true
			return cc
		}
	}
	cc.AllowOrigins = origins
	return cc
}

// corsMiddleware applies the CORS policy to allowed origins only. Requests
// from other origins are served without any Access-Control headers.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := corsConfig(origins)
	handler := cors.New(cc)
	allowed := make(map[string]struct{}, len(cc.AllowOrigins))
	for _, origin := range cc.AllowOrigins {
		allowed[origin] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok || origin == "" || cc.AllowAllOrigins {
			handler(c)
			return
		}
		c.Next()
	}
}

// Handler is the instrumented HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on the configured addresses and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	var grpcLn net.Listener
	if s.grpc != nil {
		if grpcLn, err = net.Listen("tcp", s.cfg.GRPCAddr); err != nil {
			httpLn.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
	}
	s.logger.Info().Msgf("Server running on http://localhost:%d", s.cfg.Port)
	return s.Serve(ctx, httpLn, grpcLn)
}

// Serve serves on the given listeners until ctx is done, then shuts both
// down within the configured timeout. grpcLn may be nil.
func (s *Server) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", httpLn.Addr().String()).Msg("http listening")
		if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	if grpcLn != nil && s.grpc != nil {
		g.Go(func() error {
			s.logger.Info().Str("addr", grpcLn.Addr().String()).Msg("grpc listening")
			if err := s.grpc.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve grpc: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown(httpSrv)
	})
	return g.Wait()
}

func (s *Server) shutdown(httpSrv *http.Server) error {
	ctx := context.Background()
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	s.logger.Info().Msg("shutting down")

	if s.grpc != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpc.Stop()
		}
	}
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}
