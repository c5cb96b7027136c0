// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phosphornet/ipc"
)

func newDescribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "List the instances and methods the host exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			h, err := buildHost(cfg, zap.NewNop())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeRegistry(h.registry))
			return nil
		},
	}
}

func describeRegistry(reg *ipc.Registry) string {
	var rows [][]string
	for _, inst := range reg.Instances() {
		for _, m := range inst.Methods() {
			params := make([]string, 0, len(m.Params()))
			for _, p := range m.Params() {
				params = append(params, p.Type.String())
			}
			mode := "sync"
			if m.Async() {
				mode = "async"
			}
			rows = append(rows, []string{inst.Name(), m.Name(), strings.Join(params, ", "), mode})
		}
	}
	return renderTable([]string{"Instance", "Method", "Parameters", "Mode"}, rows)
}
