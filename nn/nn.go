// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/vivqa/internal/nn"
	"github.com/born-ml/vivqa/internal/tensor"
)

// Module is the interface of single-input layers.
type Module[B tensor.Backend] = nn.Module[B]

// Stateful is implemented by modules with named parameters.
type Stateful = nn.Stateful

// Parameter is a trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// ErrHeadsNotDivisible is returned when d_model is not a multiple of the head count.
var ErrHeadsNotDivisible = nn.ErrHeadsNotDivisible

// DefaultLayerNormEps is the LayerNorm epsilon of the decoder.
const DefaultLayerNormEps = nn.DefaultLayerNormEps

// Layers

// Linear is a fully connected layer with weight [out, in].
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier initialization.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// LayerNorm normalizes over the trailing dimensions.
type LayerNorm[B tensor.Backend] = nn.LayerNorm[B]

// NewLayerNorm creates a layer normalization over normalizedShape.
func NewLayerNorm[B tensor.Backend](normalizedShape tensor.Shape, epsilon float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNorm(normalizedShape, epsilon, backend)
}

// Dropout zeroes activations during training.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a dropout layer with drop probability p.
func NewDropout[B tensor.Backend](p float64, backend B) *Dropout[B] {
	return nn.NewDropout(p, backend)
}

// PositionwiseFeedForward is linear, ReLU, dropout, linear at every position.
type PositionwiseFeedForward[B tensor.Backend] = nn.PositionwiseFeedForward[B]

// NewPositionwiseFeedForward creates a feed-forward block.
func NewPositionwiseFeedForward[B tensor.Backend](dModel, hidden int, dropProb float64, backend B) *PositionwiseFeedForward[B] {
	return nn.NewPositionwiseFeedForward(dModel, hidden, dropProb, backend)
}

// Attention

// ScaledDotProductAttention computes softmax(q·kᵀ/sqrt(d) + mask)·v and the weights.
func ScaledDotProductAttention[B tensor.Backend](query, key, value, mask *tensor.Tensor[B]) (*tensor.Tensor[B], *tensor.Tensor[B]) {
	return nn.ScaledDotProductAttention(query, key, value, mask)
}

// CausalMask returns the additive [seqLen, seqLen] mask hiding future positions.
func CausalMask[B tensor.Backend](seqLen int, backend B) *tensor.Tensor[B] {
	return nn.CausalMask(seqLen, backend)
}

// MultiHeadAttention is self-attention with a combined QKV projection.
type MultiHeadAttention[B tensor.Backend] = nn.MultiHeadAttention[B]

// NewMultiHeadAttention creates self-attention. Panics if dModel % numHeads != 0.
func NewMultiHeadAttention[B tensor.Backend](dModel, numHeads int, backend B) *MultiHeadAttention[B] {
	return nn.NewMultiHeadAttention(dModel, numHeads, backend)
}

// MultiHeadCrossAttention attends from a query sequence to a context sequence.
type MultiHeadCrossAttention[B tensor.Backend] = nn.MultiHeadCrossAttention[B]

// NewMultiHeadCrossAttention creates cross-attention. Panics if dModel % numHeads != 0.
func NewMultiHeadCrossAttention[B tensor.Backend](dModel, numHeads int, backend B) *MultiHeadCrossAttention[B] {
	return nn.NewMultiHeadCrossAttention(dModel, numHeads, backend)
}

// Decoder

// DecoderConfig holds the decoder hyperparameters.
type DecoderConfig = nn.DecoderConfig

// DecoderLayer is one post-norm decoder layer.
type DecoderLayer[B tensor.Backend] = nn.DecoderLayer[B]

// NewDecoderLayer creates a decoder layer. Panics on an invalid configuration.
func NewDecoderLayer[B tensor.Backend](cfg DecoderConfig, backend B) *DecoderLayer[B] {
	return nn.NewDecoderLayer(cfg, backend)
}

// Decoder is an ordered stack of decoder layers.
type Decoder[B tensor.Backend] = nn.Decoder[B]

// NewDecoder validates cfg and creates the stack.
func NewDecoder[B tensor.Backend](cfg DecoderConfig, backend B) (*Decoder[B], error) {
	return nn.NewDecoder(cfg, backend)
}

// Fusion and loss

// StackedAttention fuses a question embedding with image patch embeddings.
type StackedAttention[B tensor.Backend] = nn.StackedAttention[B]

// NewStackedAttention creates the fusion module.
func NewStackedAttention[B tensor.Backend](dModel, hidden int, dropProb float64, backend B) *StackedAttention[B] {
	return nn.NewStackedAttention(dModel, hidden, dropProb, backend)
}

// CrossEntropyLoss is the mean negative log-likelihood with an ignore index.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// NewCrossEntropyLoss creates the loss ignoring targets equal to ignoreIndex.
func NewCrossEntropyLoss[B tensor.Backend](ignoreIndex int) *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss[B](ignoreIndex)
}

// CollectGrads assigns backward-pass gradients to params.
func CollectGrads[B tensor.Backend](params []*Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) {
	nn.CollectGrads(params, grads)
}
