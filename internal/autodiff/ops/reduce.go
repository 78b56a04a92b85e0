package ops

import "github.com/born-ml/vivqa/internal/tensor"

// SumDimOp represents a sum along dim. The gradient is broadcast back over
// the reduced dimension.
type SumDimOp struct {
	unary
	dim int
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(input, output *tensor.RawTensor, dim int) *SumDimOp {
	return &SumDimOp{unary{input, output}, input.Shape().Axis(dim)}
}

// Backward expands the gradient to the input shape.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expandReduced(outputGrad, op.input.Shape(), op.dim, backend)}
}

// MeanDimOp represents a mean along dim.
type MeanDimOp struct {
	unary
	dim int
}

// NewMeanDimOp creates a new MeanDimOp.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int) *MeanDimOp {
	return &MeanDimOp{unary{input, output}, input.Shape().Axis(dim)}
}

// Backward expands the gradient and divides by the reduced size.
func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	grad := expandReduced(outputGrad, shape, op.dim, backend)
	return []*tensor.RawTensor{backend.MulScalar(grad, 1/float32(shape[op.dim]))}
}

func expandReduced(grad *tensor.RawTensor, inputShape tensor.Shape, dim int, backend tensor.Backend) *tensor.RawTensor {
	kept := backend.Reshape(grad, keepDimShape(inputShape, dim))
	return backend.Expand(kept, inputShape)
}
