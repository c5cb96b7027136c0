// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/phosphornet/ipc"
	"github.com/phosphornet/ipc/internal/config"
	"github.com/phosphornet/ipc/internal/demo"
)

const calculatorInstance = "calc"

// host is the frozen registry plus everything serving needs.
type host struct {
	registry   *ipc.Registry
	dispatcher *ipc.Dispatcher
	metrics    http.Handler
}

func buildHost(cfg *config.Config, logger *zap.Logger) (*host, error) {
	b := ipc.NewBuilder(ipc.WithBuilderLogger(logger))
	if err := b.Register(calculatorInstance, demo.NewCalculator()); err != nil {
		return nil, fmt.Errorf("register %s: %w", calculatorInstance, err)
	}
	if cfg.HTTPHelper {
		client := &http.Client{Timeout: cfg.HTTPTimeout()}
		if err := b.RegisterHTTP(cfg.HTTPHelperName, client); err != nil {
			return nil, fmt.Errorf("register %s: %w", cfg.HTTPHelperName, err)
		}
	}

	h := &host{registry: b.Freeze()}
	opts := []ipc.DispatcherOption{ipc.WithLogger(logger)}
	if cfg.Metrics {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector())
		m, err := ipc.NewMetrics(promReg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ipc.WithMetrics(m))
		h.metrics = promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})
	}
	h.dispatcher = ipc.NewDispatcher(h.registry, opts...)
	return h, nil
}
