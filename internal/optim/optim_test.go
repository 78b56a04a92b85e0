package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vivqa/internal/autodiff"
	"github.com/born-ml/vivqa/internal/backend/cpu"
	"github.com/born-ml/vivqa/internal/nn"
	"github.com/born-ml/vivqa/internal/optim"
	"github.com/born-ml/vivqa/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func scalarParam(t *testing.T, backend adBackend, value float32) *nn.Parameter[adBackend] {
	t.Helper()
	x, err := tensor.FromSlice([]float32{value}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	return nn.NewParameter("x", x)
}

func gradOf(t *testing.T, param *nn.Parameter[adBackend], g float32) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	raw, err := tensor.RawFromSlice([]float32{g}, tensor.Shape{1}, tensor.CPU)
	require.NoError(t, err)
	return map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): raw}
}

func TestAdamW_FirstStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, 1)
	opt := optim.NewAdamW([]*nn.Parameter[adBackend]{param}, optim.AdamWConfig{LR: 0.1, WeightDecay: 0.01})

	opt.Step(gradOf(t, param, 0.5))

	// decay: 1 * (1 - 0.1*0.01) = 0.999; bias-corrected m_hat/sqrt(v_hat) = 1
	want := 0.999 - 0.1*(0.5/(0.5+1e-8))
	assert.InDelta(t, want, param.Tensor().Data()[0], 1e-6)
	assert.Equal(t, 1, opt.GetTimestep())
}

func TestAdamW_NoDecayMatchesAdam(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, 2)
	opt := optim.NewAdamW([]*nn.Parameter[adBackend]{param}, optim.AdamWConfig{LR: 0.01, WeightDecay: -1})

	for range 3 {
		opt.Step(gradOf(t, param, 1))
	}
	// a constant gradient gives m_hat/sqrt(v_hat) = 1 at every step
	assert.InDelta(t, 2-3*0.01, param.Tensor().Data()[0], 1e-5)
}

func TestAdamW_SkipsParametersWithoutGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	used := scalarParam(t, backend, 1)
	unused := scalarParam(t, backend, 1)
	opt := optim.NewAdamW([]*nn.Parameter[adBackend]{used, unused}, optim.DefaultAdamWConfig())

	opt.Step(gradOf(t, used, 1))
	assert.Less(t, used.Tensor().Data()[0], float32(1))
	assert.Equal(t, float32(1), unused.Tensor().Data()[0])
}

func TestAdamW_MinimizesQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, 3)
	opt := optim.NewAdamW([]*nn.Parameter[adBackend]{param}, optim.AdamWConfig{LR: 0.1, WeightDecay: -1})

	for range 200 {
		backend.Tape().StartRecording()
		x := param.Tensor()
		loss := x.Mul(x)
		grads := autodiff.Backward(loss, backend)
		backend.Tape().Clear()
		opt.Step(grads)
	}
	backend.Tape().StopRecording()

	assert.Less(t, math.Abs(float64(param.Tensor().Data()[0])), 0.5)
}

func TestLinearSchedule(t *testing.T) {
	backend := autodiff.New(cpu.New())
	opt := optim.NewAdamW([]*nn.Parameter[adBackend]{scalarParam(t, backend, 0)}, optim.AdamWConfig{LR: 1})

	s := optim.NewLinearSchedule(opt, 2, 6)
	assert.Equal(t, float32(0), opt.GetLR(), "warmup starts at zero")

	want := []float32{0.5, 1, 0.75, 0.5, 0.25, 0, 0}
	for i, w := range want {
		s.Step()
		assert.InDelta(t, w, opt.GetLR(), 1e-6, "step %d", i+1)
	}
	assert.Equal(t, len(want), s.CurrentStep())
}

func TestLinearSchedule_NoWarmup(t *testing.T) {
	backend := autodiff.New(cpu.New())
	opt := optim.NewAdamW([]*nn.Parameter[adBackend]{scalarParam(t, backend, 0)}, optim.AdamWConfig{LR: 1e-5})

	s := optim.NewLinearSchedule(opt, 0, 4)
	assert.InDelta(t, 1e-5, opt.GetLR(), 1e-12)
	s.Step()
	assert.InDelta(t, 0.75e-5, opt.GetLR(), 1e-12)
}
