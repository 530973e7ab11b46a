// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config resolves the server configuration from defaults, an
// optional TOML file, the environment and command-line flags.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const (
	DefaultPort            = 3001
	DefaultPrefix          = "/trpc"
	DefaultMaxBatchSize    = 64
	DefaultMaxBodySize     = "1MiB"
	DefaultJSONRPCPath     = "/jsonrpc"
	DefaultMetricsPath     = "/metrics"
	DefaultShutdownTimeout = 10 * time.Second
)

// DefaultCORSOrigins are the web and desktop front ends.
var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:1420",
}

type Config struct {
	Port         int
	Prefix       string
	CORSOrigins  []string
	MaxBatchSize int
	MaxBodySize  int64
	JSONRPCPath  string // empty disables the JSON-RPC bridge
	MetricsPath  string // empty disables /metrics
	// GRPCAddr is the gRPC listen address; empty disables gRPC.
	GRPCAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

func Default() Config {
	size, _ := humanize.ParseBytes(DefaultMaxBodySize)
	return Config{
		Port:            DefaultPort,
		Prefix:          DefaultPrefix,
		CORSOrigins:     append([]string(nil), DefaultCORSOrigins...),
		MaxBatchSize:    DefaultMaxBatchSize,
		MaxBodySize:     int64(size),
		JSONRPCPath:     DefaultJSONRPCPath,
		MetricsPath:     DefaultMetricsPath,
		ShutdownTimeout: DefaultShutdownTimeout,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// ParsePort validates a raw port value. Anything that is not an integer in
// 1..65535 yields DefaultPort and false.
func ParsePort(raw string) (int, bool) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port < 1 || port > 65535 {
		return DefaultPort, false
	}
	return port, true
}

// ResolvePort is ParsePort with the fallback logged.
func ResolvePort(raw string, logger zerolog.Logger) int {
	port, ok := ParsePort(raw)
	if !ok && strings.TrimSpace(raw) != "" {
		logger.Warn().Str("value", raw).Int("fallback", DefaultPort).Msg("invalid port, using default")
	}
	return port
}

// ParseSize parses a byte size such as "1MiB" or "512kB".
func ParseSize(raw string) (int64, error) {
	size, err := humanize.ParseBytes(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	return int64(size), nil
}

type fileConfig struct {
	Port            any      `toml:"port"`
	Prefix          string   `toml:"prefix"`
	CORSOrigins     []string `toml:"cors_origins"`
	MaxBatchSize    int      `toml:"max_batch_size"`
	MaxBodySize     string   `toml:"max_body_size"`
	JSONRPCPath     string   `toml:"jsonrpc_path"`
	MetricsPath     string   `toml:"metrics_path"`
	GRPCAddr        string   `toml:"grpc_addr"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`
	LogLevel        string   `toml:"log_level"`
	LogFormat       string   `toml:"log_format"`
}

// LoadFile applies the keys set in the TOML file at path on top of base.
// Unknown keys are logged and ignored.
func LoadFile(path string, base Config, logger zerolog.Logger) (Config, error) {
	cfg := base

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	for _, key := range meta.Undecoded() {
		logger.Warn().Str("path", path).Str("key", key.String()).Msg("unknown config key")
	}

	if meta.IsDefined("port") {
		cfg.Port = ResolvePort(fmt.Sprint(raw.Port), logger)
	}
	if meta.IsDefined("prefix") {
		cfg.Prefix = strings.TrimSpace(raw.Prefix)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.CORSOrigins)
	}
	if meta.IsDefined("max_batch_size") {
		cfg.MaxBatchSize = raw.MaxBatchSize
	}
	if meta.IsDefined("max_body_size") {
		size, err := ParseSize(raw.MaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("parse max_body_size: %w", err)
		}
		cfg.MaxBodySize = size
	}
	if meta.IsDefined("jsonrpc_path") {
		cfg.JSONRPCPath = strings.TrimSpace(raw.JSONRPCPath)
	}
	if meta.IsDefined("metrics_path") {
		cfg.MetricsPath = strings.TrimSpace(raw.MetricsPath)
	}
	if meta.IsDefined("grpc_addr") {
		cfg.GRPCAddr = strings.TrimSpace(raw.GRPCAddr)
	}
	if meta.IsDefined("shutdown_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ShutdownTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse shutdown_timeout: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_format") {
		cfg.LogFormat = strings.TrimSpace(raw.LogFormat)
	}
	return cfg, nil
}

// normalizeOrigins trims entries, splits comma-separated values and drops
// empties and duplicates.
func normalizeOrigins(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, origin := range strings.Split(entry, ",") {
			origin = strings.TrimRight(strings.TrimSpace(origin), "/")
			if origin == "" {
				continue
			}
			if _, dup := seen[origin]; dup {
				continue
			}
			seen[origin] = struct{}{}
			out = append(out, origin)
		}
	}
	return out
}

func Validate(cfg Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Port)
	}
	if !strings.HasPrefix(cfg.Prefix, "/") || cfg.Prefix == "/" {
		return fmt.Errorf("prefix %q must start with / and name a path", cfg.Prefix)
	}
	if len(cfg.CORSOrigins) == 0 {
		return fmt.Errorf("at least one cors origin is required")
	}
	for i, origin := range cfg.CORSOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("cors_origins[%d] invalid: %w", i, err)
		}
	}
	if cfg.MaxBatchSize < 0 {
		return fmt.Errorf("max_batch_size must not be negative")
	}
	if cfg.MaxBodySize < 0 {
		return fmt.Errorf("max_body_size must not be negative")
	}
	for name, path := range map[string]string{"jsonrpc_path": cfg.JSONRPCPath, "metrics_path": cfg.MetricsPath} {
		if path == "" {
			continue
		}
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s %q must start with /", name, path)
		}
		if path == "/" || path == cfg.Prefix || strings.HasPrefix(path, cfg.Prefix+"/") {
			return fmt.Errorf("%s %q collides with the rpc prefix", name, path)
		}
	}
	if cfg.JSONRPCPath != "" && cfg.JSONRPCPath == cfg.MetricsPath {
		return fmt.Errorf("jsonrpc_path and metrics_path must differ")
	}
	if cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative")
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format %q must be console or json", cfg.LogFormat)
	}
	return nil
}

func validateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin %q must be http or https", origin)
	}
	if u.Host == "" || (u.Path != "" && u.Path != "/") {
		return fmt.Errorf("origin %q must be scheme://host[:port]", origin)
	}
	return nil
}
