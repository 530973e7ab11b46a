// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/luxfi/trpc"
	"github.com/luxfi/trpc/internal/routers"
)

type routeView struct {
	Path      string `json:"path"`
	Type      string `json:"type"`
	Protected bool   `json:"protected"`
	Input     string `json:"input"`
	Output    string `json:"output"`
}

func routeViews(router *trpc.Router) []routeView {
	procs := router.Procedures()
	out := make([]routeView, len(procs))
	for i, p := range procs {
		out[i] = routeView{
			Path:      p.Path,
			Type:      string(p.Kind),
			Protected: p.Protected,
			Input:     p.Input.String(),
			Output:    p.Output.String(),
		}
	}
	return out
}

func newRoutesCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the procedures of the application router",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			router, err := routers.NewAppRouter()
			if err != nil {
				return err
			}
			views := routeViews(router)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tTYPE\tPROTECTED\tINPUT\tOUTPUT")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", v.Path, v.Type, v.Protected, v.Input, v.Output)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
