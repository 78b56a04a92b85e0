// Package ops defines operation interfaces and implementations for automatic differentiation.
//
// Each operation implements the Operation interface, which provides:
//   - Forward pass: computed by the backend
//   - Backward pass: computes gradients for inputs given output gradient
//
// Supported operations:
//   - AddOp, SubOp, MulOp: element-wise arithmetic with broadcasting
//   - MatMulOp, BatchMatMulOp: (batched) matrix products
//   - ReshapeOp, TransposeOp, ExpandOp, ChunkOp: shape manipulation
//   - MulScalarOp, AddScalarOp, RsqrtOp: element-wise math
//   - ReLUOp, GELUOp, SoftmaxOp: activations
//   - SumDimOp, MeanDimOp: reductions
//   - CrossEntropyOp: fused softmax + negative log-likelihood with ignore index
package ops

import "github.com/born-ml/vivqa/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	//
	// Example for AddOp:
	//   inputs: [a, b]
	//   outputGrad: dL/d(a+b)
	//   returns: [dL/d(a+b), dL/d(a+b)] (gradient flows equally to both inputs)
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// MultiOutputOperation represents an operation that produces multiple outputs,
// such as Chunk.
//
// The tape collects gradients for ALL outputs before calling BackwardMulti.
type MultiOutputOperation interface {
	Operation

	// Outputs returns all output tensors produced by this operation.
	Outputs() []*tensor.RawTensor

	// BackwardMulti computes gradients for inputs given gradients for ALL outputs.
	// Missing output gradients are passed as zero tensors.
	BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
}

// unary is embedded by single-input operations.
type unary struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the input tensor.
func (u unary) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{u.input}
}

// Output returns the output tensor.
func (u unary) Output() *tensor.RawTensor {
	return u.output
}

// binary is embedded by two-input operations.
type binary struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func newBinary(a, b, output *tensor.RawTensor) binary {
	return binary{inputs: []*tensor.RawTensor{a, b}, output: output}
}

// Inputs returns the input tensors [a, b].
func (op binary) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op binary) Output() *tensor.RawTensor {
	return op.output
}
