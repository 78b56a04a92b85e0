// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation as a
// backend decorator.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := x.Mul(x)
//	grads := autodiff.Backward(y, backend)
package autodiff

import (
	"github.com/born-ml/vivqa/internal/autodiff"
	"github.com/born-ml/vivqa/internal/tensor"
)

// AutodiffBackend wraps a backend and records operations on a tape.
type AutodiffBackend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// BackwardCapable is implemented by backends that can run a backward pass.
type BackwardCapable = autodiff.BackwardCapable

// GradientTape records operations for the backward pass.
type GradientTape = autodiff.GradientTape

// New wraps backend with gradient recording.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return autodiff.New(backend)
}

// Backward returns the gradient of t with respect to every tensor that
// contributed to it.
func Backward[B BackwardCapable](t *tensor.Tensor[B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
