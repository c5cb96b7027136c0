// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phosphornet/ipc"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the registered instances on every configured transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			ipc.SetLogger(logger)

			h, err := buildHost(cfg, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(runCtx, h, cfg.Transports(), logger)
		},
	}
}

// serve listens on every transport and blocks until ctx ends or one of them
// fails.
func serve(ctx context.Context, h *host, transports map[string]string, logger *zap.Logger) error {
	names := make([]string, 0, len(transports))
	for name := range transports {
		names = append(names, name)
	}
	sort.Strings(names)

	servers := make([]ipc.Server, 0, len(names))
	for _, name := range names {
		srv, err := ipc.Listen(transports[name], h.dispatcher,
			ipc.WithServerTransport(name),
			ipc.WithServerLogger(logger),
			ipc.WithMetricsHandler(h.metrics),
		)
		if err != nil {
			for _, s := range servers {
				_ = s.Close()
			}
			return err
		}
		logger.Info("transport listening", zap.String("transport", name), zap.String("addr", srv.Addr()))
		servers = append(servers, srv)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error { return srv.Serve(gctx) })
	}
	return g.Wait()
}
