// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel  = "TRPC_LOG_LEVEL"
	EnvLogFormat = "TRPC_LOG_FORMAT"
)

// LogOptions selects the level and output format of a logger.
type LogOptions struct {
	Level  string // trace, debug, info, warn, error; default info
	Format string // console or json; default console
}

// LogOptionsFromEnv reads TRPC_LOG_LEVEL and TRPC_LOG_FORMAT.
func LogOptionsFromEnv() LogOptions {
	return LogOptions{
		Level:  os.Getenv(EnvLogLevel),
		Format: os.Getenv(EnvLogFormat),
	}
}

// InitLogger builds the process logger from the environment and installs
// it as the zerolog global.
func InitLogger(app string) zerolog.Logger {
	logger := NewLogger(os.Stdout, app, LogOptionsFromEnv())
	log.Logger = logger
	return logger
}

// NewLogger builds a logger writing to w.
func NewLogger(w io.Writer, app string, opts LogOptions) zerolog.Logger {
	output := w
	if !strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(output).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Str("app", app).Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown or empty names
// are info.
func ParseLevel(raw string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
