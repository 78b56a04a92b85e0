package ops

import (
	"math"

	"github.com/born-ml/vivqa/internal/tensor"
)

// ReLUOp represents output = max(0, x).
// Backward: grad flows only where x > 0.
type ReLUOp struct{ unary }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{unary{input, output}}
}

// Backward masks the gradient with x > 0.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zerosLike(op.input)
	g, x, out := outputGrad.Data(), op.input.Data(), grad.Data()
	for i := range out {
		if x[i] > 0 {
			out[i] = g[i]
		}
	}
	return []*tensor.RawTensor{grad}
}

// GELUOp represents output = x·Φ(x).
// Backward: Φ(x) + x·φ(x), with φ the standard normal density.
type GELUOp struct{ unary }

// NewGELUOp creates a new GELUOp.
func NewGELUOp(input, output *tensor.RawTensor) *GELUOp {
	return &GELUOp{unary{input, output}}
}

// Backward computes the exact GELU derivative.
func (op *GELUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zerosLike(op.input)
	g, x, out := outputGrad.Data(), op.input.Data(), grad.Data()
	invSqrt2Pi := 1 / math.Sqrt(2*math.Pi)
	for i := range out {
		v := float64(x[i])
		cdf := 0.5 * (1 + math.Erf(v/math.Sqrt2))
		pdf := invSqrt2Pi * math.Exp(-0.5*v*v)
		out[i] = g[i] * float32(cdf+v*pdf)
	}
	return []*tensor.RawTensor{grad}
}

// SoftmaxOp represents softmax along a dimension.
//
// The Jacobian of softmax is ∂y_i/∂x_j = y_i(δ_ij - y_j), which gives
//
//	∂L/∂x_j = y_j · (∂L/∂y_j - Σ_i ∂L/∂y_i · y_i)
//
// along the softmax dimension.
type SoftmaxOp struct {
	unary
	dim int
}

// NewSoftmaxOp creates a new softmax operation over dim.
func NewSoftmaxOp(input, output *tensor.RawTensor, dim int) *SoftmaxOp {
	return &SoftmaxOp{unary{input, output}, input.Shape().Axis(dim)}
}

// Backward computes the gradient with respect to input.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zerosLike(op.input)
	g, y, out := outputGrad.Data(), op.output.Data(), grad.Data()
	outer, size, inner := op.input.Shape().Split(op.dim)

	for o := 0; o < outer; o++ {
		for j := 0; j < inner; j++ {
			base := o*size*inner + j
			var dot float32
			for s := 0; s < size; s++ {
				idx := base + s*inner
				dot += g[idx] * y[idx]
			}
			for s := 0; s < size; s++ {
				idx := base + s*inner
				out[idx] = y[idx] * (g[idx] - dot)
			}
		}
	}
	return []*tensor.RawTensor{grad}
}
