// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/trpc"
)

type callOptions struct {
	url       string
	transport string
	codec     string
	mutation  bool
	headers   []string
	timeout   time.Duration
}

func newCallCommand() *cobra.Command {
	var opts callOptions
	cmd := &cobra.Command{
		Use:   "call PATH [JSON]",
		Short: "Call a procedure on a running server and print its result",
		Example: `
  trpc call hello.greet
  trpc call --transport jsonrpc --url http://localhost:3001/jsonrpc hello.greet
  trpc call --mutation posts.create '{"title":"hi"}'
`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			var input any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &input); err != nil {
					return fmt.Errorf("parse input: %w", err)
				}
			}
			out, err := runCall(cmd.Context(), opts, args[0], input)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.url, "url", "http://localhost:3001/trpc", "server endpoint (host:port for grpc)")
	flags.StringVar(&opts.transport, "transport", trpc.DefaultTransport, "transport: "+strings.Join(trpc.AvailableTransports(), ", "))
	flags.StringVar(&opts.codec, "codec", "superjson", "payload codec (superjson or json)")
	flags.BoolVar(&opts.mutation, "mutation", false, "call the procedure as a mutation")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "extra request header as key=value (repeatable)")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall call timeout")
	return cmd
}

func runCall(ctx context.Context, opts callOptions, path string, input any) (any, error) {
	codec, err := trpc.CodecByName(opts.codec)
	if err != nil {
		return nil, err
	}
	dialOpts := []trpc.DialOption{
		trpc.WithTransport(opts.transport),
		trpc.WithCodec(codec),
	}
	for _, h := range opts.headers {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid header %q, want key=value", h)
		}
		dialOpts = append(dialOpts, trpc.WithHeader(strings.TrimSpace(k), strings.TrimSpace(v)))
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	client, err := trpc.Dial(ctx, opts.url, dialOpts...)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var out any
	if opts.mutation {
		err = client.Mutate(ctx, path, input, &out)
	} else {
		err = client.Query(ctx, path, input, &out)
	}
	return out, err
}
