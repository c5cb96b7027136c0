// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records every invocation in m.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher turns request envelopes into response envelopes against a frozen
// registry. It is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
	metrics  *Metrics
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: reg}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = componentLogger(d.logger, "dispatcher")
	return d
}

// Registry returns the registry the dispatcher serves.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Invoke handles one raw envelope. It always returns a response: every
// failure, including a malformed envelope, becomes a Failure.
func (d *Dispatcher) Invoke(ctx context.Context, raw []byte) (resp Response) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	req, err := ParseRequest(raw)
	if err != nil {
		var malformed *MalformedMessageError
		errors.As(err, &malformed)
		d.logger.Warn("malformed envelope",
			zap.String("reason", malformed.Reason),
			zap.Bool("has_uuid", malformed.ID != nil))
		d.metrics.observe(unknownLabel, unknownLabel, OutcomeMalformed, time.Since(started))
		return Failure(malformed.ID, malformed.Error())
	}

	// Metric labels only carry registered names so callers cannot grow the
	// series set.
	id := req.UUID
	instLabel, methodLabel := unknownLabel, unknownLabel
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			d.logger.Error("dispatch panicked", zap.String("uuid", id), zap.Error(err))
			d.metrics.observe(instLabel, methodLabel, OutcomeFault, time.Since(started))
			resp = Failure(&id, err.Error())
		}
	}()

	var result json.RawMessage
	inst, err := d.registry.Lookup(req.Instance)
	if err == nil {
		instLabel = inst.name
		var m *ExposedMethod
		if m, err = inst.Method(req.Method); err == nil {
			methodLabel = m.name
			result, err = d.call(ctx, inst, m, req.Args)
		}
	}

	elapsed := time.Since(started)
	d.metrics.observe(instLabel, methodLabel, outcomeOf(err), elapsed)
	if err != nil {
		d.logger.Debug("invocation failed",
			zap.String("uuid", id),
			zap.String("instance", req.Instance),
			zap.String("method", req.Method),
			zap.Duration("latency", elapsed),
			zap.Error(err))
		return Failure(&id, err.Error())
	}

	d.logger.Debug("invocation succeeded",
		zap.String("uuid", id),
		zap.String("instance", req.Instance),
		zap.String("method", req.Method),
		zap.Duration("latency", elapsed))
	return Success(id, result)
}

// InvokeString is Invoke for string transports; it returns the serialized
// response.
func (d *Dispatcher) InvokeString(ctx context.Context, raw string) string {
	out, err := json.Marshal(d.Invoke(ctx, []byte(raw)))
	if err != nil {
		d.logger.Error("encode response", zap.Error(err))
		return ""
	}
	return string(out)
}

func (d *Dispatcher) call(ctx context.Context, inst *Instance, m *ExposedMethod, args []json.RawMessage) (json.RawMessage, error) {
	value, err := m.invoke(ctx, inst.name, args)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, &TargetInvocationFault{
			Instance: inst.name,
			Method:   m.name,
			Cause:    fmt.Errorf("encode result: %w", err),
		}
	}
	return data, nil
}
