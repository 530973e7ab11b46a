// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (TRPC_MAX_BATCH_SIZE, ...).
// The port is also read from the bare PORT variable.
const EnvPrefix = "TRPC"

const (
	keyConfig          = "config"
	keyPort            = "port"
	keyPrefix          = "prefix"
	keyCORSOrigin      = "cors-origin"
	keyMaxBatchSize    = "max-batch-size"
	keyMaxBodySize     = "max-body-size"
	keyJSONRPCPath     = "jsonrpc-path"
	keyMetricsPath     = "metrics-path"
	keyGRPCAddr        = "grpc-addr"
	keyShutdownTimeout = "shutdown-timeout"
	keyLogLevel        = "log-level"
	keyLogFormat       = "log-format"
)

// RegisterFlags adds the server flags to fs. Defaults are documented only;
// unset flags never override the file or the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(keyConfig, "", "path to a TOML config file")
	fs.String(keyPort, "", fmt.Sprintf("HTTP listen port (default %d, env PORT)", d.Port))
	fs.String(keyPrefix, d.Prefix, "path the tRPC handler is mounted under")
	fs.StringSlice(keyCORSOrigin, d.CORSOrigins, "allowed CORS origins")
	fs.Int(keyMaxBatchSize, d.MaxBatchSize, "maximum calls per inbound batch (0 = unlimited)")
	fs.String(keyMaxBodySize, DefaultMaxBodySize, "maximum request body size (e.g. 512KiB, 4MB)")
	fs.String(keyJSONRPCPath, d.JSONRPCPath, "JSON-RPC endpoint path (empty disables)")
	fs.String(keyMetricsPath, d.MetricsPath, "prometheus endpoint path (empty disables)")
	fs.String(keyGRPCAddr, d.GRPCAddr, "gRPC listen address (empty disables)")
	fs.Duration(keyShutdownTimeout, d.ShutdownTimeout, "graceful shutdown timeout")
	fs.String(keyLogLevel, d.LogLevel, "log level (trace, debug, info, warn, error)")
	fs.String(keyLogFormat, d.LogFormat, "log format (console or json)")
}

// NewViper binds fs and the environment to a fresh viper instance.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(keyPort, EnvPrefix+"_PORT", "PORT"); err != nil {
		return nil, err
	}
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Resolve layers defaults, the config file, the environment and flags, in
// that order, and validates the result.
func Resolve(v *viper.Viper, logger zerolog.Logger) (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(v.GetString(keyConfig)); path != "" {
		var err error
		if cfg, err = LoadFile(path, cfg, logger); err != nil {
			return Config{}, err
		}
		logger.Info().Str("path", path).Msg("loaded config file")
	}

	if v.IsSet(keyPort) {
		cfg.Port = ResolvePort(v.GetString(keyPort), logger)
	}
	if v.IsSet(keyPrefix) {
		cfg.Prefix = strings.TrimSpace(v.GetString(keyPrefix))
	}
	if v.IsSet(keyCORSOrigin) {
		cfg.CORSOrigins = normalizeOrigins(v.GetStringSlice(keyCORSOrigin))
	}
	if v.IsSet(keyMaxBatchSize) {
		cfg.MaxBatchSize = v.GetInt(keyMaxBatchSize)
	}
	if v.IsSet(keyMaxBodySize) {
		size, err := ParseSize(v.GetString(keyMaxBodySize))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", keyMaxBodySize, err)
		}
		cfg.MaxBodySize = size
	}
	if v.IsSet(keyJSONRPCPath) {
		cfg.JSONRPCPath = strings.TrimSpace(v.GetString(keyJSONRPCPath))
	}
	if v.IsSet(keyMetricsPath) {
		cfg.MetricsPath = strings.TrimSpace(v.GetString(keyMetricsPath))
	}
	if v.IsSet(keyGRPCAddr) {
		cfg.GRPCAddr = strings.TrimSpace(v.GetString(keyGRPCAddr))
	}
	if v.IsSet(keyShutdownTimeout) {
		cfg.ShutdownTimeout = v.GetDuration(keyShutdownTimeout)
	}
	if v.IsSet(keyLogLevel) {
		cfg.LogLevel = strings.TrimSpace(v.GetString(keyLogLevel))
	}
	if v.IsSet(keyLogFormat) {
		cfg.LogFormat = strings.TrimSpace(v.GetString(keyLogFormat))
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
