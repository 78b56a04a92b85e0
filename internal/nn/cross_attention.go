package nn

import (
	"fmt"

	"github.com/born-ml/vivqa/internal/tensor"
)

// MultiHeadCrossAttention attends from a query sequence to a context sequence.
//
// Keys and values come from the context x through one combined projection
// (kv_layer, laid out per head as [k_h | v_h]); queries come from y
// (q_layer). No mask is applied: every query position may see every
// context position.
type MultiHeadCrossAttention[B tensor.Backend] struct {
	KV       *Linear[B] // kv_layer [d_model -> 2*d_model]
	Q        *Linear[B] // q_layer [d_model -> d_model]
	Out      *Linear[B] // linear_layer [d_model -> d_model]
	NumHeads int
	HeadDim  int
	DModel   int
}

// NewMultiHeadCrossAttention creates a cross-attention module.
// Panics if dModel is not divisible by numHeads.
func NewMultiHeadCrossAttention[B tensor.Backend](dModel, numHeads int, backend B) *MultiHeadCrossAttention[B] {
	if numHeads <= 0 || dModel%numHeads != 0 {
		panic(fmt.Sprintf("MultiHeadCrossAttention: d_model (%d) must be divisible by num_heads (%d)", dModel, numHeads))
	}
	return &MultiHeadCrossAttention[B]{
		KV:       NewLinear(dModel, 2*dModel, backend),
		Q:        NewLinear(dModel, dModel, backend),
		Out:      NewLinear(dModel, dModel, backend),
		NumHeads: numHeads,
		HeadDim:  dModel / numHeads,
		DModel:   dModel,
	}
}

// Forward computes cross-attention.
//
//   - x: context [batch, seq_x, d_model] (keys and values)
//   - y: queries [batch, seq_y, d_model]
//
// Returns [batch, seq_y, d_model].
func (m *MultiHeadCrossAttention[B]) Forward(x, y *tensor.Tensor[B]) *tensor.Tensor[B] {
	out, _ := m.ForwardWithWeights(x, y)
	return out
}

// ForwardWithWeights also returns the attention weights [batch, heads, seq_y, seq_x].
func (m *MultiHeadCrossAttention[B]) ForwardWithWeights(x, y *tensor.Tensor[B]) (*tensor.Tensor[B], *tensor.Tensor[B]) {
	xs, ys := x.Shape(), y.Shape()
	if len(xs) != 3 || len(ys) != 3 || xs[2] != m.DModel || ys[2] != m.DModel || xs[0] != ys[0] {
		panic(fmt.Sprintf("MultiHeadCrossAttention.Forward: expected [batch, seq, %d] inputs, got %v and %v", m.DModel, xs, ys))
	}
	batch, seqX, seqY := xs[0], xs[1], ys[1]

	kv := splitHeads(m.KV.Forward(x), batch, seqX, m.NumHeads, 2*m.HeadDim).Chunk(2, -1)
	q := splitHeads(m.Q.Forward(y), batch, seqY, m.NumHeads, m.HeadDim)

	values, weights := ScaledDotProductAttention(q, kv[0], kv[1], nil)
	return m.Out.Forward(mergeHeads(values, batch, seqY, m.DModel)), weights
}

// Parameters returns the projection parameters.
func (m *MultiHeadCrossAttention[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 6)
	params = append(params, m.KV.Parameters()...)
	params = append(params, m.Q.Parameters()...)
	return append(params, m.Out.Parameters()...)
}

// StateDict returns kv_layer.*, q_layer.* and linear_layer.* entries.
func (m *MultiHeadCrossAttention[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	mergeState(state, "kv_layer", m.KV.StateDict())
	mergeState(state, "q_layer", m.Q.StateDict())
	mergeState(state, "linear_layer", m.Out.StateDict())
	return state
}

// LoadStateDict loads the three projections.
func (m *MultiHeadCrossAttention[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, c := range []struct {
		prefix string
		l      *Linear[B]
	}{{"kv_layer", m.KV}, {"q_layer", m.Q}, {"linear_layer", m.Out}} {
		if err := loadChild(stateDict, c.prefix, c.l); err != nil {
			return err
		}
	}
	return nil
}
