package ops

import (
	"github.com/born-ml/vivqa/internal/tensor"
)

// CrossEntropyOp represents the fused cross-entropy loss over (N, V) logits
// with integer targets and an ignore index.
//
// Forward:
//
//	L = -1/M · Σ_{i: t_i ≠ ignore} log softmax(z_i)[t_i]
//
// with M the number of non-ignored rows.
//
// Backward:
//
//	∂L/∂z_i = (softmax(z_i) - onehot(t_i)) / M   for non-ignored rows
//	∂L/∂z_i = 0                                   for ignored rows
type CrossEntropyOp struct {
	unary
	targets     []int32
	ignoreIndex int
}

// NewCrossEntropyOp creates a new CrossEntropyOp.
func NewCrossEntropyOp(logits, output *tensor.RawTensor, targets []int32, ignoreIndex int) *CrossEntropyOp {
	t := make([]int32, len(targets))
	copy(t, targets)
	return &CrossEntropyOp{unary{logits, output}, t, ignoreIndex}
}

// Backward computes the gradient with respect to the logits.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	valid := 0
	for _, t := range op.targets {
		if int(t) != op.ignoreIndex {
			valid++
		}
	}
	if valid == 0 {
		return []*tensor.RawTensor{zerosLike(op.input)}
	}

	grad := backend.Softmax(op.input, -1)
	data := grad.Data()
	v := op.input.Shape()[1]
	scale := outputGrad.Data()[0] / float32(valid)

	for i, t := range op.targets {
		row := data[i*v : (i+1)*v]
		if int(t) == op.ignoreIndex {
			clear(row)
			continue
		}
		row[t]--
		for j := range row {
			row[j] *= scale
		}
	}
	return []*tensor.RawTensor{grad}
}
