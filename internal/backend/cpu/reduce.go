package cpu

import (
	"github.com/born-ml/vivqa/internal/tensor"
)

// SumDim sums x along dim. With keepDim the reduced dimension stays as size 1.
// Supports negative dim indexing.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.Axis(dim)
	outer, size, inner := shape.Split(dim)

	result := tensor.MustRaw(reducedShape(shape, dim, keepDim), cpu.device)
	out, in := result.Data(), x.Data()
	for o := 0; o < outer; o++ {
		for s := 0; s < size; s++ {
			src := in[(o*size+s)*inner : (o*size+s+1)*inner]
			dst := out[o*inner : (o+1)*inner]
			for j, v := range src {
				dst[j] += v
			}
		}
	}
	return result
}

// MeanDim averages x along dim.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	sum := cpu.SumDim(x, dim, keepDim)
	n := x.Shape()[x.Shape().Axis(dim)]
	data := sum.Data()
	inv := 1 / float32(n)
	for i := range data {
		data[i] *= inv
	}
	return sum
}

func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	out := make(tensor.Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != dim:
			out = append(out, d)
		case keepDim:
			out = append(out, 1)
		}
	}
	return out
}
