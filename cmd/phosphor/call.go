// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phosphornet/ipc"
)

func newCallCommand(ctx *commandContext) *cobra.Command {
	var (
		transport string
		addr      string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call <instance> <method> [json-args...]",
		Short: "Invoke a method on a running host and print the response envelope",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Transports()[transport]
			}
			if addr == "" {
				return fmt.Errorf("no address for transport %q: pass --addr or configure %s_addr", transport, transport)
			}

			req, err := buildRequest(uuid.NewString(), args[0], args[1], args[2:])
			if err != nil {
				return err
			}

			callCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, err := ipc.Dial(callCtx, addr, ipc.WithTransport(transport))
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Invoke(callCtx, req)
			if err != nil {
				return err
			}
			out, err := json.Marshal(resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return resp.Err()
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", ipc.DefaultTransport, "Transport to use (stream, http, grpc, socketio)")
	cmd.Flags().StringVar(&addr, "addr", "", "Host address (defaults to the configured address of the transport)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall call timeout")
	return cmd
}

// buildRequest turns positional command line arguments into an envelope. Each
// argument must be a JSON value; strings need their quotes.
func buildRequest(id, instance, method string, args []string) (ipc.Request, error) {
	req := ipc.Request{UUID: id, Instance: instance, Method: method, Args: make([]json.RawMessage, 0, len(args))}
	for i, arg := range args {
		if !json.Valid([]byte(arg)) {
			return ipc.Request{}, fmt.Errorf("argument %d is not valid JSON: %s", i+1, arg)
		}
		req.Args = append(req.Args, json.RawMessage(arg))
	}
	return req, nil
}
