package cpu

import (
	"fmt"

	"github.com/born-ml/vivqa/internal/parallel"
	"github.com/born-ml/vivqa/internal/tensor"
)

// BatchMatMul performs batched matrix multiplication.
// Supports 3D and 4D tensors with batch dimensions.
//
// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
//
// The last two dimensions are treated as matrix dimensions and all leading
// dimensions must match. Each batch slice is independent, so slices are
// multiplied concurrently.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()
	ndim := len(aShape)

	if ndim < 3 || ndim > 4 {
		panic(fmt.Sprintf("CPUBackend.BatchMatMul: inputs must be 3D or 4D, got %dD", ndim))
	}
	if len(bShape) != ndim {
		panic(fmt.Sprintf("CPUBackend.BatchMatMul: dimension mismatch, got %dD and %dD", ndim, len(bShape)))
	}
	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("CPUBackend.BatchMatMul: batch dimension mismatch at dim %d: %d vs %d", i, aShape[i], bShape[i]))
		}
	}

	m, k := aShape[ndim-2], aShape[ndim-1]
	k2, n := bShape[ndim-2], bShape[ndim-1]
	if k != k2 {
		panic(fmt.Sprintf("CPUBackend.BatchMatMul: inner dimension mismatch: %d vs %d", k, k2))
	}

	batchSize := 1
	for i := 0; i < ndim-2; i++ {
		batchSize *= aShape[i]
	}

	outShape := make(tensor.Shape, ndim)
	copy(outShape, aShape[:ndim-2])
	outShape[ndim-2] = m
	outShape[ndim-1] = n

	result := tensor.MustRaw(outShape, cpu.device)
	c, ad, bd := result.Data(), a.Data(), b.Data()
	sa, sb, sc := m*k, k*n, m*n

	parallel.ForChunked(batchSize, 1, func(i int) {
		gemm(c[i*sc:(i+1)*sc], ad[i*sa:(i+1)*sa], bd[i*sb:(i+1)*sb], m, k, n)
	}, cpu.par)

	return result
}
