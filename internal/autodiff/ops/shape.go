package ops

import "github.com/born-ml/vivqa/internal/tensor"

// ReshapeOp represents a reshape. The gradient is reshaped back.
type ReshapeOp struct{ unary }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{unary{input, output}}
}

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}

// TransposeOp represents an axis permutation. The gradient is permuted with
// the inverse permutation.
type TransposeOp struct {
	unary
	axes []int
}

// NewTransposeOp creates a new TransposeOp. Empty axes mean full reversal.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	ndim := len(input.Shape())
	perm := make([]int, ndim)
	if len(axes) == 0 {
		for i := range perm {
			perm[i] = ndim - 1 - i
		}
	} else {
		copy(perm, axes)
	}
	return &TransposeOp{unary{input, output}, perm}
}

// Backward applies the inverse permutation to the gradient.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}

// ExpandOp represents a broadcast to a larger shape. The gradient is summed
// over the broadcast dimensions.
type ExpandOp struct{ unary }

// NewExpandOp creates a new ExpandOp.
func NewExpandOp(input, output *tensor.RawTensor) *ExpandOp {
	return &ExpandOp{unary{input, output}}
}

// Backward reduces the gradient to the input shape.
func (op *ExpandOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{reduceBroadcast(outputGrad, op.input.Shape(), backend)}
}

// ChunkOp represents a split of the input into n equal parts along dim.
//
// Backward concatenates all output gradients back together along dim.
type ChunkOp struct {
	input   *tensor.RawTensor
	dim     int
	outputs []*tensor.RawTensor
}

// NewChunkOp creates a new chunk operation. dim must already be resolved
// to a non-negative axis.
func NewChunkOp(input *tensor.RawTensor, dim int, outputs []*tensor.RawTensor) *ChunkOp {
	return &ChunkOp{input: input, dim: dim, outputs: outputs}
}

// Inputs returns the input tensor.
func (op *ChunkOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the first output chunk.
func (op *ChunkOp) Output() *tensor.RawTensor {
	return op.outputs[0]
}

// Outputs returns all output tensors (implements MultiOutputOperation).
func (op *ChunkOp) Outputs() []*tensor.RawTensor {
	return op.outputs
}

// Backward panics: the tape always routes multi-output operations through
// BackwardMulti.
func (op *ChunkOp) Backward(_ *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	panic("ChunkOp.Backward: multi-output operations require BackwardMulti")
}

// BackwardMulti concatenates the chunk gradients along dim.
func (op *ChunkOp) BackwardMulti(outputGrads []*tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zerosLike(op.input)
	out := grad.Data()
	outer, size, inner := op.input.Shape().Split(op.dim)
	chunk := size / len(outputGrads)
	block := chunk * inner

	for p, g := range outputGrads {
		src := g.Data()
		for o := 0; o < outer; o++ {
			dst := o*size*inner + p*block
			copy(out[dst:dst+block], src[o*block:(o+1)*block])
		}
	}
	return []*tensor.RawTensor{grad}
}
