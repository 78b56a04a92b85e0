// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizer and learning rate schedule used to
// train the answer decoder.
//
//	opt := optim.NewAdamW(model.Parameters(), optim.DefaultAdamWConfig())
//	sched := optim.NewLinearSchedule(opt, 0, totalSteps)
//	opt.Step(grads)
//	sched.Step()
package optim

import (
	"github.com/born-ml/vivqa/internal/nn"
	"github.com/born-ml/vivqa/internal/optim"
	"github.com/born-ml/vivqa/internal/tensor"
)

// Optimizer updates parameters from gradients.
type Optimizer = optim.Optimizer

// AdamW is Adam with decoupled weight decay.
type AdamW[B tensor.Backend] = optim.AdamW[B]

// AdamWConfig holds AdamW hyperparameters.
type AdamWConfig = optim.AdamWConfig

// LinearSchedule is a linear warmup then linear decay schedule.
type LinearSchedule = optim.LinearSchedule

// DefaultAdamWConfig returns lr 1e-5, betas (0.9, 0.999), eps 1e-8 and weight decay 0.01.
func DefaultAdamWConfig() AdamWConfig {
	return optim.DefaultAdamWConfig()
}

// NewAdamW creates an AdamW optimizer over params.
func NewAdamW[B tensor.Backend](params []*nn.Parameter[B], config AdamWConfig) *AdamW[B] {
	return optim.NewAdamW(params, config)
}

// NewLinearSchedule attaches a linear schedule to optimizer.
func NewLinearSchedule(optimizer Optimizer, warmup, total int) *LinearSchedule {
	return optim.NewLinearSchedule(optimizer, warmup, total)
}
