package autodiff_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/vivqa/internal/autodiff"
	"github.com/born-ml/vivqa/internal/backend/cpu"
	"github.com/born-ml/vivqa/internal/tensor"
)

type scalarFn func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend]

// weightedSum reduces y to a scalar with fixed, non-uniform weights so that
// every output element contributes a distinct gradient.
func weightedSum(b adBackend, y *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
	n := y.NumElements()
	w := make([]float32, n)
	for i := range w {
		w[i] = float32(i%5)*0.3 - 0.5
	}
	wt, err := tensor.FromSlice(w, y.Shape(), b)
	if err != nil {
		panic(err)
	}
	return y.Mul(wt).Reshape(n).SumDim(0, false)
}

// checkGradient compares autodiff gradients of f at x against central finite differences.
func checkGradient(t *testing.T, name string, x []float32, shape tensor.Shape, f scalarFn) {
	t.Helper()
	const eps = 1e-2
	const tol = 2e-2

	backend := autodiff.New(cpu.New())
	tape := backend.Tape()
	tape.StartRecording()

	xt, err := tensor.FromSlice(x, shape, backend)
	require.NoError(t, err)
	out := f(backend, xt)
	grads := autodiff.Backward(out, backend)
	analytic := grads[xt.Raw()]
	require.NotNil(t, analytic, "%s: no gradient for input", name)
	tape.StopRecording()
	tape.Clear()

	eval := func(v []float32) float64 {
		p, _ := tensor.FromSlice(v, shape, backend)
		return float64(f(backend, p).Item())
	}

	for i := range x {
		plus := append([]float32(nil), x...)
		minus := append([]float32(nil), x...)
		plus[i] += eps
		minus[i] -= eps
		numeric := (eval(plus) - eval(minus)) / (2 * eps)
		got := float64(analytic.Data()[i])
		if math.Abs(got-numeric) > tol*math.Max(1, math.Abs(numeric)) {
			t.Errorf("%s: grad[%d] = %.5f, numerical %.5f", name, i, got, numeric)
		}
	}
}

func TestGradientCheck_Ops(t *testing.T) {
	x := []float32{0.3, -1.2, 0.8, 1.5, -0.4, 0.1}
	shape := tensor.Shape{2, 3}

	other := func(b adBackend, s tensor.Shape) *tensor.Tensor[adBackend] {
		data := make([]float32, s.NumElements())
		for i := range data {
			data[i] = float32(i)*0.25 - 0.6
		}
		t, _ := tensor.FromSlice(data, s, b)
		return t
	}

	cases := []struct {
		name string
		f    scalarFn
	}{
		{"add_broadcast", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, x.Add(other(b, tensor.Shape{3})))
		}},
		{"sub", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, other(b, tensor.Shape{2, 3}).Sub(x))
		}},
		{"mul_self", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, x.Mul(x))
		}},
		{"matmul", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, x.MatMul(other(b, tensor.Shape{3, 4})))
		}},
		{"batch_matmul", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			x3 := x.Reshape(2, 1, 3)
			return weightedSum(b, x3.BatchMatMul(x3.Transpose(0, 2, 1)))
		}},
		{"transpose", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, x.T())
		}},
		{"expand", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, x.Unsqueeze(0).Expand(tensor.Shape{3, 2, 3}))
		}},
		{"chunk", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			p := x.Chunk(3, 1)
			return weightedSum(b, p[0].Mul(p[2]).Add(p[1]))
		}},
		{"scalar", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, x.MulScalar(3).AddScalar(1))
		}},
		{"rsqrt", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, x.Mul(x).AddScalar(1).Rsqrt())
		}},
		{"relu", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, x.ReLU())
		}},
		{"gelu", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, x.GELU())
		}},
		{"softmax_last", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, x.Softmax(-1))
		}},
		{"softmax_first", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return weightedSum(b, x.Softmax(0))
		}},
		{"sum_mean", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			s := x.SumDim(1, true)
			m := x.MeanDim(0, false)
			return weightedSum(b, x.Mul(s).Add(m))
		}},
		{"cross_entropy", func(b adBackend, x *tensor.Tensor[adBackend]) *tensor.Tensor[adBackend] {
			return tensor.New(b.CrossEntropy(x.Raw(), []int32{2, 0}, 1), b).Reshape()
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkGradient(t, tc.name, x, shape, tc.f)
		})
	}
}
