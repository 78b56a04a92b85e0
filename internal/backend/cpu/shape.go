package cpu

import (
	"fmt"

	"github.com/born-ml/vivqa/internal/tensor"
)

// Reshape returns a view with the same data but a different shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("CPUBackend.Reshape: invalid shape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("CPUBackend.Reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}
	return t.View(newShape)
}

// Transpose transposes the tensor by permuting its dimensions.
// With no axes, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("CPUBackend.Transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("CPUBackend.Transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("CPUBackend.Transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	srcStrides := make([]int, ndim)
	inStrides := t.Strides()
	for i, ax := range axes {
		newShape[i] = shape[ax]
		srcStrides[i] = inStrides[ax]
	}

	result := tensor.MustRaw(newShape, cpu.device)
	out, in := result.Data(), t.Data()
	forEachIndex(newShape, srcStrides, make([]int, ndim), func(i, si, _ int) {
		out[i] = in[si]
	})
	return result
}

// Expand broadcasts x to newShape following NumPy rules.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	target, _, err := tensor.BroadcastShapes(x.Shape(), newShape)
	if err != nil || !target.Equal(newShape) {
		panic(fmt.Sprintf("CPUBackend.Expand: cannot expand %v to %v", x.Shape(), newShape))
	}

	result := tensor.MustRaw(newShape, cpu.device)
	out, in := result.Data(), x.Data()
	xs := tensor.BroadcastStrides(x.Shape(), newShape)
	forEachIndex(newShape, xs, make([]int, len(newShape)), func(i, xi, _ int) {
		out[i] = in[xi]
	})
	return result
}

// Chunk splits x into n equal parts along dim.
// The dimension size must be divisible by n. Supports negative dim indexing.
func (cpu *CPUBackend) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	shape := x.Shape()
	dim = shape.Axis(dim)
	if n <= 0 || shape[dim]%n != 0 {
		panic(fmt.Sprintf("CPUBackend.Chunk: dimension %d (size %d) is not divisible into %d chunks", dim, shape[dim], n))
	}

	outer, size, inner := shape.Split(dim)
	chunk := size / n
	partShape := shape.Clone()
	partShape[dim] = chunk

	in := x.Data()
	parts := make([]*tensor.RawTensor, n)
	for p := 0; p < n; p++ {
		part := tensor.MustRaw(partShape, cpu.device)
		out := part.Data()
		block := chunk * inner
		for o := 0; o < outer; o++ {
			src := o*size*inner + p*block
			copy(out[o*block:(o+1)*block], in[src:src+block])
		}
		parts[p] = part
	}
	return parts
}

// Cat concatenates tensors along dim. All other dimensions must match.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("CPUBackend.Cat: at least one tensor required")
	}
	first := tensors[0].Shape()
	dim = first.Axis(dim)

	outShape := first.Clone()
	outShape[dim] = 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("CPUBackend.Cat: rank mismatch %v vs %v", first, s))
		}
		for i := range s {
			if i != dim && s[i] != first[i] {
				panic(fmt.Sprintf("CPUBackend.Cat: shape mismatch %v vs %v at dim %d", first, s, i))
			}
		}
		outShape[dim] += s[dim]
	}

	result := tensor.MustRaw(outShape, cpu.device)
	out := result.Data()
	outer, total, inner := outShape.Split(dim)
	offset := 0
	for _, t := range tensors {
		size := t.Shape()[dim]
		in := t.Data()
		block := size * inner
		for o := 0; o < outer; o++ {
			dst := o*total*inner + offset*inner
			copy(out[dst:dst+block], in[o*block:(o+1)*block])
		}
		offset += size
	}
	return result
}
