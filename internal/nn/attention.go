package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/vivqa/internal/tensor"
)

// ScaledDotProductAttention computes attention with the scaled dot-product mechanism:
//
//	Attention(Q, K, V) = softmax(QK^T / sqrt(d_k) + mask) V
//
// Shapes:
//   - query: [batch, heads, seq_q, head_dim]
//   - key:   [batch, heads, seq_k, head_dim]
//   - value: [batch, heads, seq_k, head_dim]
//   - mask:  nil, [seq_q, seq_k] or [1, 1, seq_q, seq_k] (additive, -inf for blocked)
//
// Returns:
//   - output: [batch, heads, seq_q, head_dim]
//   - weights: [batch, heads, seq_q, seq_k], each row summing to 1
//
// The same mask is added to every batch entry and every head.
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[B],
	mask *tensor.Tensor[B],
) (*tensor.Tensor[B], *tensor.Tensor[B]) {
	validateAttentionInputs(query, key, value, mask)

	headDim := query.Shape()[3]
	scale := float32(1.0 / math.Sqrt(float64(headDim)))

	// [B, H, Sq, hd] @ [B, H, hd, Sk] -> [B, H, Sq, Sk]
	scores := query.BatchMatMul(key.Transpose(0, 1, 3, 2)).MulScalar(scale)
	if mask != nil {
		scores = scores.Add(mask)
	}

	weights := scores.Softmax(-1)
	return weights.BatchMatMul(value), weights
}

// validateAttentionInputs validates the input tensors for attention.
func validateAttentionInputs[B tensor.Backend](query, key, value, mask *tensor.Tensor[B]) {
	q, k, v := query.Shape(), key.Shape(), value.Shape()
	if len(q) != 4 || len(k) != 4 || len(v) != 4 {
		panic(fmt.Sprintf("ScaledDotProductAttention: q, k, v must be 4D [batch, heads, seq, head_dim], got %v, %v, %v", q, k, v))
	}
	if q[3] != k[3] {
		panic(fmt.Sprintf("ScaledDotProductAttention: query head_dim %d != key head_dim %d", q[3], k[3]))
	}
	if k[2] != v[2] {
		panic(fmt.Sprintf("ScaledDotProductAttention: key length %d != value length %d", k[2], v[2]))
	}
	if mask == nil {
		return
	}

	m := mask.Shape()
	valid := len(m) >= 2 && m[len(m)-2] == q[2] && m[len(m)-1] == k[2]
	switch len(m) {
	case 2:
	case 4:
		valid = valid && m[0] == 1 && m[1] == 1
	default:
		valid = false
	}
	if !valid {
		panic(fmt.Sprintf("ScaledDotProductAttention: mask shape %v incompatible with scores [.., .., %d, %d]", m, q[2], k[2]))
	}
}

// CausalMask creates the additive causal (autoregressive) attention mask.
//
// Position (i, j) is -inf when j > i (a strictly future token) and 0
// otherwise, so every query can attend to itself and earlier positions only.
//
// Shape: [seq_len, seq_len] (broadcasts over batch and heads)
//
// Example for seq_len=4:
//
//	[[0,   -inf, -inf, -inf],
//	 [0,   0,    -inf, -inf],
//	 [0,   0,    0,    -inf],
//	 [0,   0,    0,    0   ]]
func CausalMask[B tensor.Backend](seqLen int, backend B) *tensor.Tensor[B] {
	mask := tensor.Zeros(tensor.Shape{seqLen, seqLen}, backend)

	negInf := float32(math.Inf(-1))
	data := mask.Data()
	for i := 0; i < seqLen; i++ {
		for j := i + 1; j < seqLen; j++ {
			data[i*seqLen+j] = negInf
		}
	}
	return mask
}
