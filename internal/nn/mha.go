package nn

import (
	"fmt"

	"github.com/born-ml/vivqa/internal/tensor"
)

// MultiHeadAttention implements multi-head self-attention with a combined
// query/key/value projection.
//
// Architecture:
//
//	qkv  = x W_qkv                          [B, S, 3d]
//	q, k, v split per head                  [B, H, S, hd] each
//	head = SDPA(q, k, v, mask)              [B, H, S, hd]
//	out  = concat(heads) W_o                [B, S, d]
//
// The projection output is laid out per head as [q_h | k_h | v_h], i.e. it is
// reshaped to [B, S, H, 3*hd] before the three-way split, matching weights
// exported from the reference implementation.
//
// Example:
//
//	mha := nn.NewMultiHeadAttention(768, 8, backend)
//	out := mha.Forward(x, nn.CausalMask(seq, backend))
type MultiHeadAttention[B tensor.Backend] struct {
	QKV      *Linear[B] // qkv_layer [d_model -> 3*d_model]
	Out      *Linear[B] // linear_layer [d_model -> d_model]
	NumHeads int
	HeadDim  int
	DModel   int
}

// NewMultiHeadAttention creates a new multi-head self-attention module.
// Panics if dModel is not divisible by numHeads.
func NewMultiHeadAttention[B tensor.Backend](dModel, numHeads int, backend B) *MultiHeadAttention[B] {
	if numHeads <= 0 || dModel%numHeads != 0 {
		panic(fmt.Sprintf("MultiHeadAttention: d_model (%d) must be divisible by num_heads (%d)", dModel, numHeads))
	}
	return &MultiHeadAttention[B]{
		QKV:      NewLinear(dModel, 3*dModel, backend),
		Out:      NewLinear(dModel, dModel, backend),
		NumHeads: numHeads,
		HeadDim:  dModel / numHeads,
		DModel:   dModel,
	}
}

// Forward computes self-attention over x [batch, seq, d_model].
// mask may be nil; otherwise it is applied identically to every head.
func (m *MultiHeadAttention[B]) Forward(x, mask *tensor.Tensor[B]) *tensor.Tensor[B] {
	out, _ := m.ForwardWithWeights(x, mask)
	return out
}

// ForwardWithWeights is like Forward but also returns the attention weights
// [batch, heads, seq, seq].
func (m *MultiHeadAttention[B]) ForwardWithWeights(x, mask *tensor.Tensor[B]) (*tensor.Tensor[B], *tensor.Tensor[B]) {
	batch, seq := m.checkInput("MultiHeadAttention.Forward", x)

	qkv := splitHeads(m.QKV.Forward(x), batch, seq, m.NumHeads, 3*m.HeadDim)
	parts := qkv.Chunk(3, -1)

	values, weights := ScaledDotProductAttention(parts[0], parts[1], parts[2], mask)
	return m.Out.Forward(mergeHeads(values, batch, seq, m.DModel)), weights
}

func (m *MultiHeadAttention[B]) checkInput(op string, x *tensor.Tensor[B]) (batch, seq int) {
	s := x.Shape()
	if len(s) != 3 || s[2] != m.DModel {
		panic(fmt.Sprintf("%s: expected [batch, seq, %d], got %v", op, m.DModel, s))
	}
	return s[0], s[1]
}

// Parameters returns the projection parameters.
func (m *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	return append(m.QKV.Parameters(), m.Out.Parameters()...)
}

// StateDict returns qkv_layer.* and linear_layer.* entries.
func (m *MultiHeadAttention[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	mergeState(state, "qkv_layer", m.QKV.StateDict())
	mergeState(state, "linear_layer", m.Out.StateDict())
	return state
}

// LoadStateDict loads qkv_layer.* and linear_layer.* entries.
func (m *MultiHeadAttention[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadChild(stateDict, "qkv_layer", m.QKV); err != nil {
		return err
	}
	return loadChild(stateDict, "linear_layer", m.Out)
}

// splitHeads turns a projection [B, S, H*w] into [B, H, S, w].
func splitHeads[B tensor.Backend](x *tensor.Tensor[B], batch, seq, heads, width int) *tensor.Tensor[B] {
	return x.Reshape(batch, seq, heads, width).Transpose(0, 2, 1, 3)
}

// mergeHeads turns per-head values [B, H, S, hd] back into [B, S, H*hd].
// Heads are moved next to head_dim before flattening so that each position
// only receives its own values.
func mergeHeads[B tensor.Backend](values *tensor.Tensor[B], batch, seq, dModel int) *tensor.Tensor[B] {
	return values.Transpose(0, 2, 1, 3).Reshape(batch, seq, dModel)
}
