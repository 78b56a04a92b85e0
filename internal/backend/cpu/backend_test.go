package cpu

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vivqa/internal/tensor"
)

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.RawFromSlice(data, tensor.Shape(shape), tensor.CPU)
	require.NoError(t, err)
	return r
}

func TestCPUBackend_Metadata(t *testing.T) {
	b := New(WithWorkers(2))
	assert.Equal(t, "CPU", b.Name())
	assert.Equal(t, tensor.CPU, b.Device())
	assert.Equal(t, 2, b.Workers())
}

func TestAdd_SameShape(t *testing.T) {
	b := New()
	got := b.Add(raw(t, []float32{1, 2, 3, 4}, 2, 2), raw(t, []float32{10, 20, 30, 40}, 2, 2))
	assert.Equal(t, []float32{11, 22, 33, 44}, got.Data())
}

func TestAdd_Broadcast(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3}, 3, 1)
	c := raw(t, []float32{10, 20}, 2)
	got := b.Add(a, c)

	if diff := cmp.Diff(tensor.Shape{3, 2}, got.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float32{11, 21, 12, 22, 13, 23}, got.Data())
}

func TestSubMul_Broadcast(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	row := raw(t, []float32{1, 2, 3}, 3)

	assert.Equal(t, []float32{0, 0, 0, 3, 3, 3}, b.Sub(a, row).Data())
	assert.Equal(t, []float32{1, 4, 9, 4, 10, 18}, b.Mul(a, row).Data())
}

func TestAdd_IncompatiblePanics(t *testing.T) {
	b := New()
	assert.Panics(t, func() {
		b.Add(raw(t, make([]float32, 6), 2, 3), raw(t, make([]float32, 4), 2, 2))
	})
}

func TestMatMul(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	c := raw(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)
	got := b.MatMul(a, c)

	assert.Equal(t, tensor.Shape{2, 2}, got.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, got.Data())
}

func TestMatMul_ShapeMismatchPanics(t *testing.T) {
	b := New()
	assert.Panics(t, func() {
		b.MatMul(raw(t, make([]float32, 6), 2, 3), raw(t, make([]float32, 4), 2, 2))
	})
}

func TestBatchMatMul_4D(t *testing.T) {
	b := New(WithWorkers(4))
	// Two (batch, head) slices: identity and doubling.
	a := raw(t, []float32{
		1, 0, 0, 1,
		2, 0, 0, 2,
	}, 1, 2, 2, 2)
	c := raw(t, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}, 1, 2, 2, 2)
	got := b.BatchMatMul(a, c)

	assert.Equal(t, tensor.Shape{1, 2, 2, 2}, got.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 10, 12, 14, 16}, got.Data())
}

func TestBatchMatMul_MatchesMatMul(t *testing.T) {
	b := New(WithWorkers(3))
	const batch, m, k, n = 5, 3, 4, 2
	aData := make([]float32, batch*m*k)
	bData := make([]float32, batch*k*n)
	for i := range aData {
		aData[i] = float32(i%7) - 3
	}
	for i := range bData {
		bData[i] = float32(i%5) * 0.5
	}
	got := b.BatchMatMul(raw(t, aData, batch, m, k), raw(t, bData, batch, k, n))

	for i := 0; i < batch; i++ {
		want := b.MatMul(raw(t, aData[i*m*k:(i+1)*m*k], m, k), raw(t, bData[i*k*n:(i+1)*k*n], k, n))
		assert.InDeltaSlice(t, want.Data(), got.Data()[i*m*n:(i+1)*m*n], 1e-5)
	}
}

func TestReshape_SharesData(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	y := b.Reshape(x, tensor.Shape{3, 2})

	assert.Equal(t, tensor.Shape{3, 2}, y.Shape())
	assert.Equal(t, x.Data(), y.Data())
	assert.Panics(t, func() { b.Reshape(x, tensor.Shape{4, 2}) })
}

func TestTranspose(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	got := b.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, got.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, got.Data())

	y := raw(t, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, 2, 3, 2)
	p := b.Transpose(y, 1, 0, 2)
	assert.Equal(t, tensor.Shape{3, 2, 2}, p.Shape())
	assert.Equal(t, []float32{0, 1, 6, 7, 2, 3, 8, 9, 4, 5, 10, 11}, p.Data())

	assert.Panics(t, func() { b.Transpose(y, 0, 0, 1) })
}

func TestExpand(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2}, 2, 1)
	got := b.Expand(x, tensor.Shape{3, 2, 2})
	assert.Equal(t, []float32{1, 1, 2, 2, 1, 1, 2, 2, 1, 1, 2, 2}, got.Data())
	assert.Panics(t, func() { b.Expand(x, tensor.Shape{3, 3}) })
}

func TestChunkAndCat(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, 2, 6)
	parts := b.Chunk(x, 3, -1)

	require.Len(t, parts, 3)
	assert.Equal(t, []float32{1, 2, 7, 8}, parts[0].Data())
	assert.Equal(t, []float32{3, 4, 9, 10}, parts[1].Data())
	assert.Equal(t, []float32{5, 6, 11, 12}, parts[2].Data())

	back := b.Cat(parts, 1)
	assert.Equal(t, x.Data(), back.Data())
	assert.Panics(t, func() { b.Chunk(x, 4, 1) })
}

func TestSoftmax_RowsSumToOne(t *testing.T) {
	b := New()
	negInf := float32(math.Inf(-1))
	x := raw(t, []float32{1, 2, 3, 0, negInf, negInf}, 2, 3)
	got := b.Softmax(x, -1).Data()

	assert.InDelta(t, 1.0, got[0]+got[1]+got[2], 1e-6)
	assert.InDelta(t, 1.0, got[3], 1e-6)
	assert.Zero(t, got[4])
	assert.Zero(t, got[5])
}

func TestSoftmax_MiddleDim(t *testing.T) {
	b := New()
	x := raw(t, []float32{0, 0, 0, 0}, 2, 2, 1)
	got := b.Softmax(x, 1).Data()
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.5, 0.5}, got, 1e-6)
}

func TestSoftmax_FullyMaskedPanics(t *testing.T) {
	b := New()
	negInf := float32(math.Inf(-1))
	assert.Panics(t, func() {
		b.Softmax(raw(t, []float32{negInf, negInf}, 1, 2), -1)
	})
}

func TestActivations(t *testing.T) {
	b := New()
	x := raw(t, []float32{-1, 0, 2}, 3)
	assert.Equal(t, []float32{0, 0, 2}, b.ReLU(x).Data())

	g := b.GELU(x).Data()
	assert.InDelta(t, -0.158655, g[0], 1e-5)
	assert.InDelta(t, 0, g[1], 1e-7)
	assert.InDelta(t, 1.954500, g[2], 1e-5)
}

func TestScalarAndRsqrt(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 4, 16}, 3)
	assert.Equal(t, []float32{2, 8, 32}, b.MulScalar(x, 2).Data())
	assert.Equal(t, []float32{0, 3, 15}, b.AddScalar(x, -1).Data())
	assert.InDeltaSlice(t, []float32{1, 0.5, 0.25}, b.Rsqrt(x).Data(), 1e-6)
}

func TestReductions(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	s0 := b.SumDim(x, 0, false)
	assert.Equal(t, tensor.Shape{3}, s0.Shape())
	assert.Equal(t, []float32{5, 7, 9}, s0.Data())

	s1 := b.SumDim(x, -1, true)
	assert.Equal(t, tensor.Shape{2, 1}, s1.Shape())
	assert.Equal(t, []float32{6, 15}, s1.Data())

	m := b.MeanDim(x, 1, true)
	assert.InDeltaSlice(t, []float32{2, 5}, m.Data(), 1e-6)
}

func TestCrossEntropy_IgnoreIndex(t *testing.T) {
	b := New()
	logits := raw(t, []float32{
		0, 0, 0, 0,
		10, -10, -10, -10,
		0, 0, 0, 0,
	}, 3, 4)

	loss := b.CrossEntropy(logits, []int32{0, 1, 1}, 1)
	// Only the first row counts: -log(1/4).
	assert.InDelta(t, math.Log(4), loss.Data()[0], 1e-5)

	all := b.CrossEntropy(logits, []int32{1, 1, 1}, 1)
	assert.Zero(t, all.Data()[0])

	assert.Panics(t, func() { b.CrossEntropy(logits, []int32{9, 0, 0}, 1) })
}
