// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU compute backend.
//
// Matrix products run on gonum BLAS; batched products spread their
// independent slices over a bounded set of goroutines.
//
//	backend := cpu.New(cpu.WithWorkers(4))
package cpu

import (
	"github.com/born-ml/vivqa/internal/backend/cpu"
)

// CPUBackend computes tensor operations on the host.
type CPUBackend = cpu.CPUBackend

// Option configures a CPUBackend.
type Option = cpu.Option

// New creates a CPU backend.
func New(opts ...Option) *CPUBackend {
	return cpu.New(opts...)
}

// WithWorkers limits the goroutines used by batched operations.
// n <= 0 uses one per CPU.
func WithWorkers(n int) Option {
	return cpu.WithWorkers(n)
}
