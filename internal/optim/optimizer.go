// Package optim implements the optimizers used to train the ViVQA decoder.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - AdamW: Adam with decoupled weight decay
//   - LinearSchedule: linear warmup followed by linear decay to zero
//
// Example usage:
//
//	optimizer := optim.NewAdamW(model.Parameters(), optim.AdamWConfig{LR: 1e-5})
//	schedule := optim.NewLinearSchedule(optimizer, warmup, totalSteps)
//
//	backend.Tape().StartRecording()
//	loss := lossFunc.Forward(model.Forward(...), targets)
//	grads := autodiff.Backward(loss, backend)
//	optimizer.Step(grads)
//	schedule.Step()
package optim

import (
	"github.com/born-ml/vivqa/internal/nn"
	"github.com/born-ml/vivqa/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters in place.
	//
	// Takes the gradient map returned by autodiff.Backward.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate (used by schedules).
	SetLR(lr float32)
}

// getGradient safely retrieves gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
