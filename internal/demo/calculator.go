// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package demo holds the sample instances registered by phosphor serve.
package demo

import (
	"context"
	"errors"
	"time"

	"github.com/phosphornet/ipc"
)

// ErrDivideByZero is returned by Divide.
var ErrDivideByZero = errors.New("division by zero")

// Calculator is exposed whole through ipc.ExposeAll.
type Calculator struct {
	ipc.ExposeAll

	// Delay is how long AddAsync waits before completing.
	Delay time.Duration
}

// NewCalculator returns a calculator whose AddAsync completes after one second.
func NewCalculator() *Calculator {
	return &Calculator{Delay: time.Second}
}

func (c *Calculator) Add(a, b int32) int32 {
	return a + b
}

// AddAsync completes after Delay. Cancelling ctx abandons the sum.
func (c *Calculator) AddAsync(ctx context.Context, a, b int32) *ipc.Future[int32] {
	return ipc.Go(func() (int32, error) {
		timer := time.NewTimer(c.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			return a + b, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})
}

func (c *Calculator) Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, ErrDivideByZero
	}
	return a / b, nil
}

func (c *Calculator) Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
