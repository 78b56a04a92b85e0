package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/vivqa/internal/tensor"
)

// ErrHeadsNotDivisible is returned when d_model is not a multiple of the head count.
var ErrHeadsNotDivisible = errors.New("d_model must be divisible by num_heads")

// DecoderConfig holds the hyperparameters of a decoder stack.
type DecoderConfig struct {
	DModel    int     // Embedding width (768 for ViVQA)
	NumHeads  int     // Attention heads per layer
	FFNHidden int     // Feed-forward hidden width
	DropProb  float64 // Dropout after every sub-layer and inside the FFN
	NumLayers int     // Number of stacked layers
}

// Validate checks the configuration before any layer is built.
func (c DecoderConfig) Validate() error {
	switch {
	case c.DModel <= 0 || c.NumHeads <= 0 || c.FFNHidden <= 0 || c.NumLayers <= 0:
		return fmt.Errorf("decoder: sizes must be positive: %+v", c)
	case c.DModel%c.NumHeads != 0:
		return fmt.Errorf("decoder: d_model=%d num_heads=%d: %w", c.DModel, c.NumHeads, ErrHeadsNotDivisible)
	case c.DropProb < 0 || c.DropProb >= 1:
		return fmt.Errorf("decoder: drop_prob %v outside [0, 1)", c.DropProb)
	}
	return nil
}

// DecoderLayer is one post-norm transformer decoder layer.
//
// Sub-layers run in a fixed order, each wrapped as
// norm(dropout(sublayer(y)) + y) where y is the previous sub-layer's output:
//
//	y = norm1(dropout1(selfAttn(y, mask)) + y)
//	y = norm2(dropout2(crossAttn(x, y)) + y)
//	y = norm3(dropout3(ffn(y)) + y)
type DecoderLayer[B tensor.Backend] struct {
	SelfAttention  *MultiHeadAttention[B]
	CrossAttention *MultiHeadCrossAttention[B]
	FFN            *PositionwiseFeedForward[B]
	Norm1          *LayerNorm[B]
	Norm2          *LayerNorm[B]
	Norm3          *LayerNorm[B]
	Dropout1       *Dropout[B]
	Dropout2       *Dropout[B]
	Dropout3       *Dropout[B]
}

// NewDecoderLayer creates a decoder layer. Panics on an invalid configuration;
// call cfg.Validate first to get an error instead.
func NewDecoderLayer[B tensor.Backend](cfg DecoderConfig, backend B) *DecoderLayer[B] {
	normShape := tensor.Shape{cfg.DModel}
	return &DecoderLayer[B]{
		SelfAttention:  NewMultiHeadAttention(cfg.DModel, cfg.NumHeads, backend),
		CrossAttention: NewMultiHeadCrossAttention(cfg.DModel, cfg.NumHeads, backend),
		FFN:            NewPositionwiseFeedForward(cfg.DModel, cfg.FFNHidden, cfg.DropProb, backend),
		Norm1:          NewLayerNorm(normShape, DefaultLayerNormEps, backend),
		Norm2:          NewLayerNorm(normShape, DefaultLayerNormEps, backend),
		Norm3:          NewLayerNorm(normShape, DefaultLayerNormEps, backend),
		Dropout1:       NewDropout(cfg.DropProb, backend),
		Dropout2:       NewDropout(cfg.DropProb, backend),
		Dropout3:       NewDropout(cfg.DropProb, backend),
	}
}

// Forward runs the layer.
//
//   - x: context [batch, seq_x, d_model], the source of cross-attention keys/values
//   - y: target [batch, seq_y, d_model]
//   - mask: additive self-attention mask [seq_y, seq_y], or nil
func (l *DecoderLayer[B]) Forward(x, y, mask *tensor.Tensor[B]) *tensor.Tensor[B] {
	residual := y
	y = l.SelfAttention.Forward(y, mask)
	y = l.Norm1.Forward(l.Dropout1.Forward(y).Add(residual))

	residual = y
	y = l.CrossAttention.Forward(x, y)
	y = l.Norm2.Forward(l.Dropout2.Forward(y).Add(residual))

	residual = y
	y = l.FFN.Forward(y)
	return l.Norm3.Forward(l.Dropout3.Forward(y).Add(residual))
}

// Train toggles every dropout in the layer.
func (l *DecoderLayer[B]) Train(training bool) {
	l.Dropout1.Train(training)
	l.Dropout2.Train(training)
	l.Dropout3.Train(training)
	l.FFN.Train(training)
}

// Parameters returns all learnable parameters of the layer.
func (l *DecoderLayer[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	params = append(params, l.SelfAttention.Parameters()...)
	params = append(params, l.Norm1.Parameters()...)
	params = append(params, l.CrossAttention.Parameters()...)
	params = append(params, l.Norm2.Parameters()...)
	params = append(params, l.FFN.Parameters()...)
	params = append(params, l.Norm3.Parameters()...)
	return params
}

func (l *DecoderLayer[B]) children() []struct {
	prefix string
	module Stateful
} {
	return []struct {
		prefix string
		module Stateful
	}{
		{"self_attention", l.SelfAttention},
		{"norm1", l.Norm1},
		{"encoder_decoder_attention", l.CrossAttention},
		{"norm2", l.Norm2},
		{"ffn", l.FFN},
		{"norm3", l.Norm3},
	}
}

// StateDict returns the layer's parameters under their module-tree names.
func (l *DecoderLayer[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for _, c := range l.children() {
		mergeState(state, c.prefix, c.module.StateDict())
	}
	return state
}

// LoadStateDict restores the layer's parameters.
func (l *DecoderLayer[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, c := range l.children() {
		if err := loadChild(stateDict, c.prefix, c.module); err != nil {
			return err
		}
	}
	return nil
}

// Decoder is an ordered stack of decoder layers. It owns no parameters of
// its own.
type Decoder[B tensor.Backend] struct {
	Layers []*DecoderLayer[B]
	config DecoderConfig
}

// NewDecoder creates a decoder with cfg.NumLayers independent layers.
func NewDecoder[B tensor.Backend](cfg DecoderConfig, backend B) (*Decoder[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layers := make([]*DecoderLayer[B], cfg.NumLayers)
	for i := range layers {
		layers[i] = NewDecoderLayer(cfg, backend)
	}
	return &Decoder[B]{Layers: layers, config: cfg}, nil
}

// Config returns the configuration the decoder was built with.
func (d *Decoder[B]) Config() DecoderConfig {
	return d.config
}

// Forward passes y through every layer in order. Every layer sees the same
// context x and mask; each layer's output is the next layer's y.
func (d *Decoder[B]) Forward(x, y, mask *tensor.Tensor[B]) *tensor.Tensor[B] {
	for _, layer := range d.Layers {
		y = layer.Forward(x, y, mask)
	}
	return y
}

// Train toggles dropout in every layer.
func (d *Decoder[B]) Train(training bool) {
	for _, layer := range d.Layers {
		layer.Train(training)
	}
}

// Parameters returns the parameters of all layers in order.
func (d *Decoder[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, layer := range d.Layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// StateDict returns layers.{i}.* entries.
func (d *Decoder[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for i, layer := range d.Layers {
		mergeState(state, fmt.Sprintf("layers.%d", i), layer.StateDict())
	}
	return state
}

// LoadStateDict restores layers.{i}.* entries.
func (d *Decoder[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, layer := range d.Layers {
		if err := loadChild(stateDict, fmt.Sprintf("layers.%d", i), layer); err != nil {
			return err
		}
	}
	return nil
}
