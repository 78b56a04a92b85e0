package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/vivqa/internal/tensor"
)

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return cpu.unary(x, func(v float32) float32 { return v * scalar })
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return cpu.unary(x, func(v float32) float32 { return v + scalar })
}

// Rsqrt computes 1/sqrt(x) element-wise. Panics on non-positive input.
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float32) float32 {
		if v <= 0 {
			panic(fmt.Sprintf("CPUBackend.Rsqrt: non-positive input %v", v))
		}
		return float32(1 / math.Sqrt(float64(v)))
	})
}

func (cpu *CPUBackend) unary(x *tensor.RawTensor, f func(float32) float32) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape(), cpu.device)
	out, in := result.Data(), x.Data()
	for i, v := range in {
		out[i] = f(v)
	}
	return result
}
