// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Invocation outcomes recorded by Metrics.
const (
	OutcomeSuccess    = "success"
	OutcomeMalformed  = "malformed"
	OutcomeNotFound   = "not_found"
	OutcomeConversion = "conversion"
	OutcomeFault      = "fault"
)

// unknownLabel stands in for instance and method names that did not resolve.
const unknownLabel = "unknown"

// Metrics holds the dispatcher's prometheus collectors.
type Metrics struct {
	invocations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phosphor",
			Subsystem: "ipc",
			Name:      "invocations_total",
			Help:      "Invocation requests by instance, method and outcome.",
		}, []string{"instance", "method", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "phosphor",
			Subsystem: "ipc",
			Name:      "invocation_seconds",
			Help:      "Time from envelope receipt to response, awaited results included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"instance", "method"}),
	}
	if reg == nil {
		return m, nil
	}
	if err := reg.Register(m.invocations); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		m.invocations = already.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(m.latency); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		m.latency = already.ExistingCollector.(*prometheus.HistogramVec)
	}
	return m, nil
}

func (m *Metrics) observe(instance, method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(instance, method, outcome).Inc()
	m.latency.WithLabelValues(instance, method).Observe(elapsed.Seconds())
}

// outcomeOf maps a dispatch error onto an outcome label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrMalformedMessage):
		return OutcomeMalformed
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrUnsupportedConversion):
		return OutcomeConversion
	default:
		return OutcomeFault
	}
}
