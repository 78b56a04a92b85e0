package nn_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vivqa/internal/backend/cpu"
	"github.com/born-ml/vivqa/internal/nn"
	"github.com/born-ml/vivqa/internal/tensor"
)

func zeroParam(p *nn.Parameter[*cpu.CPUBackend]) {
	clear(p.Tensor().Data())
}

func assertShape(t *testing.T, want tensor.Shape, got tensor.Shape) {
	t.Helper()
	if diff := cmp.Diff([]int(want), []int(got)); diff != "" {
		t.Fatalf("shape mismatch (-want +got):\n%s", diff)
	}
}

func TestLinear_ForwardND(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(3, 2, backend)
	copy(layer.Weight().Tensor().Data(), []float32{1, 0, 0, 0, 1, 1})
	copy(layer.Bias().Tensor().Data(), []float32{0.5, -1})

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{1, 2, 3}, backend)
	require.NoError(t, err)

	y := layer.Forward(x)
	assertShape(t, tensor.Shape{1, 2, 2}, y.Shape())
	assert.InDeltaSlice(t, []float32{1.5, 4, 4.5, 10}, y.Data(), 1e-6)
}

func TestLinear_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	src := nn.NewLinear(4, 3, backend)
	dst := nn.NewLinear(4, 3, backend)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t, src.Weight().Tensor().Data(), dst.Weight().Tensor().Data())

	bad := nn.NewLinear(3, 3, backend)
	assert.Error(t, bad.LoadStateDict(src.StateDict()))
}

func TestLayerNorm_ZeroMeanUnitVariance(t *testing.T) {
	backend := cpu.New()
	norm := nn.NewLayerNorm(tensor.Shape{16}, nn.DefaultLayerNormEps, backend)

	x := tensor.RandNormal(tensor.Shape{3, 5, 16}, 4, 3, backend)
	y := norm.Forward(x)
	assertShape(t, x.Shape(), y.Shape())

	data := y.Data()
	for row := 0; row < 15; row++ {
		vals := data[row*16 : (row+1)*16]
		var mean, sq float64
		for _, v := range vals {
			mean += float64(v)
		}
		mean /= 16
		for _, v := range vals {
			sq += (float64(v) - mean) * (float64(v) - mean)
		}
		assert.InDelta(t, 0, mean, 1e-4, "row %d mean", row)
		assert.InDelta(t, 1, sq/16, 1e-3, "row %d variance", row)
	}
}

func TestLayerNorm_MultiDimNormalizedShape(t *testing.T) {
	backend := cpu.New()
	norm := nn.NewLayerNorm(tensor.Shape{2, 3}, nn.DefaultLayerNormEps, backend)
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{1, 2, 3}, backend)
	require.NoError(t, err)

	y := norm.Forward(x).Data()
	var sum float32
	for _, v := range y {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-4)
	assert.Less(t, y[0], y[5])

	assert.Panics(t, func() { norm.Forward(tensor.Ones(tensor.Shape{2, 3, 2}, backend)) })
}

func TestScaledDotProductAttention_WeightsSumToOne(t *testing.T) {
	backend := cpu.New()
	q := tensor.Randn(tensor.Shape{2, 3, 5, 4}, backend)
	k := tensor.Randn(tensor.Shape{2, 3, 7, 4}, backend)
	v := tensor.Randn(tensor.Shape{2, 3, 7, 6}, backend)

	out, weights := nn.ScaledDotProductAttention(q, k, v, nil)
	assertShape(t, tensor.Shape{2, 3, 5, 6}, out.Shape())
	assertShape(t, tensor.Shape{2, 3, 5, 7}, weights.Shape())

	data := weights.Data()
	for row := 0; row < len(data)/7; row++ {
		var sum float64
		for _, w := range data[row*7 : (row+1)*7] {
			sum += float64(w)
		}
		assert.InDelta(t, 1, sum, 1e-5)
	}
}

func TestScaledDotProductAttention_Validation(t *testing.T) {
	backend := cpu.New()
	q := tensor.Randn(tensor.Shape{1, 1, 3, 4}, backend)
	k := tensor.Randn(tensor.Shape{1, 1, 3, 4}, backend)

	assert.Panics(t, func() {
		nn.ScaledDotProductAttention(q, tensor.Randn(tensor.Shape{1, 1, 3, 5}, backend), k, nil)
	}, "head_dim mismatch")
	assert.Panics(t, func() {
		nn.ScaledDotProductAttention(q, k, tensor.Randn(tensor.Shape{1, 1, 2, 4}, backend), nil)
	}, "key/value length mismatch")
	assert.Panics(t, func() {
		nn.ScaledDotProductAttention(q, k, k, nn.CausalMask(4, backend))
	}, "mask shape mismatch")
	assert.Panics(t, func() {
		nn.ScaledDotProductAttention(q, k, k, tensor.Zeros(tensor.Shape{2, 1, 3, 3}, backend))
	}, "per-batch masks are not supported")

	assert.NotPanics(t, func() {
		nn.ScaledDotProductAttention(q, k, k, nn.CausalMask(3, backend).Reshape(1, 1, 3, 3))
	})
}

func TestCausalMask(t *testing.T) {
	backend := cpu.New()
	mask := nn.CausalMask(3, backend)
	assertShape(t, tensor.Shape{3, 3}, mask.Shape())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if j > i {
				assert.True(t, math.IsInf(float64(mask.At(i, j)), -1))
			} else {
				assert.Equal(t, float32(0), mask.At(i, j))
			}
		}
	}
}

func TestMultiHeadAttention_ShapeAndCausality(t *testing.T) {
	// batch 2, seq 4, d_model 8, heads 2
	backend := cpu.New()
	mha := nn.NewMultiHeadAttention(8, 2, backend)
	x := tensor.Randn(tensor.Shape{2, 4, 8}, backend)

	out, weights := mha.ForwardWithWeights(x, nn.CausalMask(4, backend))
	assertShape(t, tensor.Shape{2, 4, 8}, out.Shape())
	assertShape(t, tensor.Shape{2, 2, 4, 4}, weights.Shape())

	for b := 0; b < 2; b++ {
		for h := 0; h < 2; h++ {
			assert.InDelta(t, 1, weights.At(b, h, 0, 0), 1e-6, "position 0 attends only to itself")
			for i := 0; i < 4; i++ {
				for j := i + 1; j < 4; j++ {
					assert.Equal(t, float32(0), weights.At(b, h, i, j), "future weight (%d,%d,%d,%d)", b, h, i, j)
				}
			}
		}
	}
}

func TestMultiHeadAttention_Validation(t *testing.T) {
	backend := cpu.New()
	assert.Panics(t, func() { nn.NewMultiHeadAttention(10, 3, backend) })

	mha := nn.NewMultiHeadAttention(8, 4, backend)
	assert.Panics(t, func() { mha.Forward(tensor.Randn(tensor.Shape{2, 4, 6}, backend), nil) })
}

func TestMultiHeadAttention_HeadsStayAtTheirPositions(t *testing.T) {
	// With identity projections and a single key per query the output must
	// equal the input: each position only receives its own values.
	backend := cpu.New()
	mha := nn.NewMultiHeadAttention(4, 2, backend)

	// qkv_layer rows are laid out per head as [q_h | k_h | v_h].
	w := mha.QKV.Weight().Tensor()
	clear(w.Data())
	for h := 0; h < 2; h++ {
		for j := 0; j < 2; j++ {
			feature := h*2 + j
			for part := 0; part < 3; part++ {
				w.Set(1, h*6+part*2+j, feature)
			}
		}
	}
	zeroParam(mha.QKV.Bias())
	clear(mha.Out.Weight().Tensor().Data())
	for i := 0; i < 4; i++ {
		mha.Out.Weight().Tensor().Set(1, i, i)
	}

	// A diagonal mask lets every position see only itself.
	mask := tensor.Full(tensor.Shape{3, 3}, float32(math.Inf(-1)), backend)
	for i := 0; i < 3; i++ {
		mask.Set(0, i, i)
	}

	x := tensor.Randn(tensor.Shape{2, 3, 4}, backend)
	out := mha.Forward(x, mask)
	assert.InDeltaSlice(t, x.Data(), out.Data(), 1e-5)
}

func TestMultiHeadCrossAttention_DifferentLengths(t *testing.T) {
	backend := cpu.New()
	cross := nn.NewMultiHeadCrossAttention(8, 2, backend)
	x := tensor.Randn(tensor.Shape{2, 6, 8}, backend)
	y := tensor.Randn(tensor.Shape{2, 3, 8}, backend)

	out, weights := cross.ForwardWithWeights(x, y)
	assertShape(t, tensor.Shape{2, 3, 8}, out.Shape())
	assertShape(t, tensor.Shape{2, 2, 3, 6}, weights.Shape())

	assert.Panics(t, func() { cross.Forward(x, tensor.Randn(tensor.Shape{1, 3, 8}, backend)) })
}

func TestPositionwiseFeedForward_DeterministicInInference(t *testing.T) {
	backend := cpu.New()
	ffn := nn.NewPositionwiseFeedForward(8, 16, 0.5, backend)
	x := tensor.Randn(tensor.Shape{2, 3, 8}, backend)

	a := ffn.Forward(x).Data()
	b := ffn.Forward(x).Data()
	assert.Equal(t, a, b)

	ffn.Train(true)
	ffn.Dropout.Seed(1)
	c := ffn.Forward(x).Data()
	ffn.Dropout.Seed(1)
	d := ffn.Forward(x).Data()
	assert.Equal(t, c, d, "seeded dropout masks repeat")
}

func TestDropout(t *testing.T) {
	backend := cpu.New()
	drop := nn.NewDropout(0.5, backend)
	x := tensor.Ones(tensor.Shape{1000}, backend)

	assert.Equal(t, x.Data(), drop.Forward(x).Data(), "identity in inference mode")

	drop.Train(true)
	drop.Seed(7)
	zeros := 0
	for _, v := range drop.Forward(x).Data() {
		if v == 0 {
			zeros++
		} else {
			assert.Equal(t, float32(2), v)
		}
	}
	assert.InDelta(t, 500, zeros, 80)

	assert.Panics(t, func() { nn.NewDropout(1, backend) })
}

func testDecoderConfig(layers int) nn.DecoderConfig {
	return nn.DecoderConfig{DModel: 8, NumHeads: 2, FFNHidden: 16, DropProb: 0.1, NumLayers: layers}
}

func TestDecoderConfig_Validate(t *testing.T) {
	require.NoError(t, testDecoderConfig(2).Validate())

	cfg := testDecoderConfig(2)
	cfg.NumHeads = 3
	require.ErrorIs(t, cfg.Validate(), nn.ErrHeadsNotDivisible)

	cfg = testDecoderConfig(0)
	require.Error(t, cfg.Validate())

	cfg = testDecoderConfig(1)
	cfg.DropProb = 1
	require.Error(t, cfg.Validate())

	_, err := nn.NewDecoder(nn.DecoderConfig{DModel: 10, NumHeads: 4, FFNHidden: 8, NumLayers: 1}, cpu.New())
	require.ErrorIs(t, err, nn.ErrHeadsNotDivisible)
}

func TestDecoderLayer_DisabledSublayersReduceToNorm(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewDecoderLayer(testDecoderConfig(1), backend)
	for _, p := range []*nn.Parameter[*cpu.CPUBackend]{
		layer.SelfAttention.Out.Weight(), layer.SelfAttention.Out.Bias(),
		layer.CrossAttention.Out.Weight(), layer.CrossAttention.Out.Bias(),
		layer.FFN.Linear2.Weight(), layer.FFN.Linear2.Bias(),
	} {
		zeroParam(p)
	}

	x := tensor.Randn(tensor.Shape{2, 5, 8}, backend)
	y := tensor.Randn(tensor.Shape{2, 4, 8}, backend)

	got := layer.Forward(x, y, nn.CausalMask(4, backend))
	want := layer.Norm1.Forward(y)
	assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-3)
}

func TestDecoderLayer_ChainsResidualsInOrder(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewDecoderLayer(testDecoderConfig(1), backend)
	layer.Train(false)

	x := tensor.Randn(tensor.Shape{2, 5, 8}, backend)
	y := tensor.Randn(tensor.Shape{2, 4, 8}, backend)
	mask := nn.CausalMask(4, backend)

	n1 := layer.Norm1.Forward(layer.SelfAttention.Forward(y, mask).Add(y))
	n2 := layer.Norm2.Forward(layer.CrossAttention.Forward(x, n1).Add(n1))
	want := layer.Norm3.Forward(layer.FFN.Forward(n2).Add(n2))

	got := layer.Forward(x, y, mask)
	assertShape(t, want.Shape(), got.Shape())
	assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-5)

	// every residual taken from the layer input instead of the previous sub-layer
	s1 := layer.Norm1.Forward(layer.SelfAttention.Forward(y, mask).Add(y))
	s2 := layer.Norm2.Forward(layer.CrossAttention.Forward(x, s1).Add(y))
	unchained := layer.Norm3.Forward(layer.FFN.Forward(s2).Add(y))
	assert.False(t, closeTo(unchained.Data(), got.Data(), 1e-3), "output must depend on the chained residuals")
}

func closeTo(a, b []float32, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > tol {
			return false
		}
	}
	return true
}

func TestDecoder_SingleLayerMatchesLayer(t *testing.T) {
	backend := cpu.New()
	dec, err := nn.NewDecoder(testDecoderConfig(1), backend)
	require.NoError(t, err)
	require.Len(t, dec.Layers, 1)

	x := tensor.Randn(tensor.Shape{2, 5, 8}, backend)
	y := tensor.Randn(tensor.Shape{2, 4, 8}, backend)
	mask := nn.CausalMask(4, backend)

	assert.Equal(t, dec.Layers[0].Forward(x, y, mask).Data(), dec.Forward(x, y, mask).Data())
}

func TestDecoder_StackShapeAndIndependentLayers(t *testing.T) {
	backend := cpu.New()
	dec, err := nn.NewDecoder(testDecoderConfig(3), backend)
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{2, 5, 8}, backend)
	y := tensor.Randn(tensor.Shape{2, 4, 8}, backend)
	out := dec.Forward(x, y, nn.CausalMask(4, backend))
	assertShape(t, tensor.Shape{2, 4, 8}, out.Shape())

	// per layer: 4 self-attention, 6 cross-attention, 4 feed-forward, 6 norm parameters
	assert.Len(t, dec.Parameters(), 3*(4+6+4+6))
	assert.NotSame(t, dec.Layers[0].Norm1.Gamma, dec.Layers[1].Norm1.Gamma)
}

func TestDecoder_StateDictNames(t *testing.T) {
	backend := cpu.New()
	dec, err := nn.NewDecoder(testDecoderConfig(2), backend)
	require.NoError(t, err)

	state := dec.StateDict()
	for _, key := range []string{
		"layers.0.self_attention.qkv_layer.weight",
		"layers.0.self_attention.linear_layer.bias",
		"layers.1.norm1.gamma",
		"layers.1.norm3.beta",
		"layers.0.encoder_decoder_attention.kv_layer.weight",
		"layers.0.encoder_decoder_attention.q_layer.bias",
		"layers.1.ffn.linear2.weight",
	} {
		assert.Contains(t, state, key)
	}
	assertShape(t, tensor.Shape{24, 8}, state["layers.0.self_attention.qkv_layer.weight"].Shape())
	assertShape(t, tensor.Shape{16, 8}, state["layers.0.encoder_decoder_attention.kv_layer.weight"].Shape())

	other, err := nn.NewDecoder(testDecoderConfig(2), backend)
	require.NoError(t, err)
	require.NoError(t, other.LoadStateDict(state))

	x := tensor.Randn(tensor.Shape{1, 2, 8}, backend)
	y := tensor.Randn(tensor.Shape{1, 3, 8}, backend)
	mask := nn.CausalMask(3, backend)
	assert.Equal(t, dec.Forward(x, y, mask).Data(), other.Forward(x, y, mask).Data())

	delete(state, "layers.1.norm2.gamma")
	assert.ErrorContains(t, other.LoadStateDict(state), "norm2")
}

func TestStackedAttention_UniformWeights(t *testing.T) {
	backend := cpu.New()
	san := nn.NewStackedAttention(4, 3, 0.5, backend)
	zeroParam(san.FFAttention.Weight())

	image, err := tensor.FromSlice([]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
	}, tensor.Shape{1, 2, 4}, backend)
	require.NoError(t, err)
	question, err := tensor.FromSlice([]float32{0, 0, 1, 1}, tensor.Shape{1, 4}, backend)
	require.NoError(t, err)

	u, weights := san.ForwardWithWeights(image, question)
	assertShape(t, tensor.Shape{1, 4}, u.Shape())
	assert.InDeltaSlice(t, []float32{0.5, 0.5}, weights.Data(), 1e-6)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 1, 1}, u.Data(), 1e-6)

	assert.Panics(t, func() { san.Forward(image, tensor.Ones(tensor.Shape{2, 4}, backend)) })
}

func TestStackedAttention_StateDict(t *testing.T) {
	backend := cpu.New()
	san := nn.NewStackedAttention(8, 4, 0.5, backend)
	state := san.StateDict()
	assert.Len(t, state, 6)
	assertShape(t, tensor.Shape{1, 4}, state["ff_attention.weight"].Shape())
	require.NoError(t, nn.NewStackedAttention(8, 4, 0.5, backend).LoadStateDict(state))
}

func TestCrossEntropyLoss(t *testing.T) {
	backend := cpu.New()
	loss := nn.NewCrossEntropyLoss[*cpu.CPUBackend](1)

	logits := tensor.Zeros(tensor.Shape{1, 2, 4}, backend)
	got := loss.Forward(logits, []int32{0, 1})
	assert.InDelta(t, math.Log(4), got.Item(), 1e-6, "uniform logits, pad row ignored")

	got = loss.Forward(logits, []int32{1, 1})
	assert.Equal(t, float32(0), got.Item())

	got = loss.Forward(logits, []int32{0, 2})
	assert.InDelta(t, math.Log(4), got.Item(), 1e-6, "mean over valid rows, not divided by their count again")
}

var _ nn.Module[*cpu.CPUBackend] = (*nn.Linear[*cpu.CPUBackend])(nil)
