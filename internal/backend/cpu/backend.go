// Package cpu implements the CPU backend with gonum BLAS matrix products.
package cpu

import (
	"fmt"

	"github.com/born-ml/vivqa/internal/parallel"
	"github.com/born-ml/vivqa/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithWorkers limits the number of goroutines used by batched operations.
// n <= 0 uses one worker per CPU.
func WithWorkers(n int) Option {
	return func(cpu *CPUBackend) {
		cpu.par = parallel.WithWorkers(n)
	}
}

// New creates a new CPU backend.
func New(opts ...Option) *CPUBackend {
	cpu := &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(cpu)
	}
	return cpu
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the configured worker limit.
func (cpu *CPUBackend) Workers() int {
	return cpu.par.NumWorkers
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("Add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("Sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("Mul", a, b, func(x, y float32) float32 { return x * y })
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("CPUBackend.%s: %v", op, err))
	}

	result := tensor.MustRaw(outShape, cpu.device)
	out, ad, bd := result.Data(), a.Data(), b.Data()

	if !needsBroadcast {
		for i := range out {
			out[i] = f(ad[i], bd[i])
		}
		return result
	}

	// Scalar right operand is the common case for biases and masks.
	if len(bd) == 1 && a.Shape().Equal(outShape) {
		for i := range out {
			out[i] = f(ad[i], bd[0])
		}
		return result
	}

	as := tensor.BroadcastStrides(a.Shape(), outShape)
	bs := tensor.BroadcastStrides(b.Shape(), outShape)
	forEachIndex(outShape, as, bs, func(i, ai, bi int) {
		out[i] = f(ad[ai], bd[bi])
	})
	return result
}

// forEachIndex walks shape in row-major order, reporting the linear output
// index together with the offsets into two operands read with strides as
// and bs.
func forEachIndex(shape tensor.Shape, as, bs []int, f func(i, ai, bi int)) {
	n := shape.NumElements()
	ndim := len(shape)
	idx := make([]int, ndim)
	ai, bi := 0, 0
	for i := 0; i < n; i++ {
		f(i, ai, bi)
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			ai += as[d]
			bi += bs[d]
			if idx[d] < shape[d] {
				break
			}
			ai -= as[d] * shape[d]
			bi -= bs[d] * shape[d]
			idx[d] = 0
		}
	}
}
