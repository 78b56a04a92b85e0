// Package nn implements the neural network modules of the ViVQA answer decoder.
//
// This package provides building blocks for the transformer decoder and the
// fusion module that feeds it:
//   - Module interface: Base interface for single-input components
//   - Parameter: Trainable parameters with gradient tracking
//   - Linear, LayerNorm, Dropout, activations
//   - Attention: scaled dot-product, multi-head self and cross attention
//   - DecoderLayer, Decoder: the post-norm decoder stack
//   - StackedAttention: question-guided attention over image patches
//   - CrossEntropyLoss with an ignore index
//
// Every module receives its backend explicitly at construction; tensors
// carry that backend through Forward.
package nn

import (
	"github.com/born-ml/vivqa/internal/tensor"
)

// Module is the base interface for single-input neural network components.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[B]) *tensor.Tensor[B]

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter[B]
}

// Stateful is implemented by modules whose parameters can be exported and
// restored by name.
//
// Names follow the dotted module path of the reference PyTorch model
// ("layers.0.norm1.gamma"), so exported weights load unchanged.
type Stateful interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Trainable is implemented by modules whose behaviour differs between
// training and inference (dropout).
type Trainable interface {
	Train(training bool)
}
