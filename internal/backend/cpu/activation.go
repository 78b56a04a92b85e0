package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/vivqa/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// GELU applies x·Φ(x) with the exact error-function formulation.
func (cpu *CPUBackend) GELU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float32) float32 {
		f := float64(v)
		return float32(0.5 * f * (1 + math.Erf(f/math.Sqrt2)))
	})
}

// Softmax computes exp(x - max) / sum(exp(x - max)) along dim.
//
// A slice whose entries are all -Inf has no defined distribution; it can only
// come from a malformed attention mask and panics.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	outer, size, inner := shape.Split(dim)

	result := tensor.MustRaw(shape, cpu.device)
	out, in := result.Data(), x.Data()
	negInf := float32(math.Inf(-1))

	for o := 0; o < outer; o++ {
		for j := 0; j < inner; j++ {
			base := o*size*inner + j

			maxVal := negInf
			for s := 0; s < size; s++ {
				if v := in[base+s*inner]; v > maxVal {
					maxVal = v
				}
			}
			if maxVal == negInf {
				panic(fmt.Sprintf("CPUBackend.Softmax: slice %d of %v is entirely -Inf", o*inner+j, shape))
			}

			var sum float64
			for s := 0; s < size; s++ {
				e := math.Exp(float64(in[base+s*inner] - maxVal))
				out[base+s*inner] = float32(e)
				sum += e
			}
			inv := float32(1 / sum)
			for s := 0; s < size; s++ {
				out[base+s*inner] *= inv
			}
		}
	}
	return result
}
