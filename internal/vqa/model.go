// Package vqa assembles the answer decoder model and trains and evaluates it
// on embeddings produced by the frozen encoders.
package vqa

import (
	"fmt"
	"strings"

	"github.com/born-ml/vivqa/internal/nn"
	"github.com/born-ml/vivqa/internal/tensor"
)

// ModelConfig holds the hyperparameters of the trainable part of the model.
type ModelConfig struct {
	Decoder       nn.DecoderConfig
	FusionHidden  int     // Attention width of the fusion module
	FusionDropout float64 // Dropout inside the fusion module
	VocabSize     int     // Output vocabulary
}

// Validate checks the configuration before any module is built.
func (c ModelConfig) Validate() error {
	if err := c.Decoder.Validate(); err != nil {
		return err
	}
	switch {
	case c.FusionHidden <= 0:
		return fmt.Errorf("model: fusion hidden width %d must be positive", c.FusionHidden)
	case c.FusionDropout < 0 || c.FusionDropout >= 1:
		return fmt.Errorf("model: fusion dropout %v outside [0, 1)", c.FusionDropout)
	case c.VocabSize <= 0:
		return fmt.Errorf("model: vocab size %d must be positive", c.VocabSize)
	}
	return nil
}

// Model maps frozen image, question and answer embeddings to answer logits.
//
//	u      = Fusion(image, question)            [B, d]
//	ctx    = expand(u)                          [B, L, d]
//	h      = Decoder(ctx, answer, causal(L))    [B, L, d]
//	logits = Projection(h)                      [B, L, V]
type Model[B tensor.Backend] struct {
	Fusion     *nn.StackedAttention[B]
	Decoder    *nn.Decoder[B]
	Projection *nn.Linear[B]

	cfg     ModelConfig
	backend B
}

// NewModel builds a randomly initialised model on backend.
func NewModel[B tensor.Backend](cfg ModelConfig, backend B) (*Model[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	decoder, err := nn.NewDecoder(cfg.Decoder, backend)
	if err != nil {
		return nil, err
	}
	d := cfg.Decoder.DModel
	return &Model[B]{
		Fusion:     nn.NewStackedAttention(d, cfg.FusionHidden, cfg.FusionDropout, backend),
		Decoder:    decoder,
		Projection: nn.NewLinear(d, cfg.VocabSize, backend),
		cfg:        cfg,
		backend:    backend,
	}, nil
}

// Config returns the model's hyperparameters.
func (m *Model[B]) Config() ModelConfig {
	return m.cfg
}

// Backend returns the backend the model computes on.
func (m *Model[B]) Backend() B {
	return m.backend
}

// Forward returns logits [batch, answer_len, vocab].
//
//   - image: patch embeddings [batch, patches, d]
//   - question: sentence embeddings [batch, d]
//   - answer: answer token embeddings [batch, answer_len, d]
func (m *Model[B]) Forward(image, question, answer *tensor.Tensor[B]) *tensor.Tensor[B] {
	as := answer.Shape()
	if len(as) != 3 || as[2] != m.cfg.Decoder.DModel {
		panic(fmt.Sprintf("Model.Forward: expected answer [B, L, %d], got %v", m.cfg.Decoder.DModel, as))
	}
	batch, length := as[0], as[1]

	fused := m.Fusion.Forward(image, question)
	contextSeq := fused.Unsqueeze(1).Expand(tensor.Shape{batch, length, m.cfg.Decoder.DModel})
	mask := nn.CausalMask(length, m.backend)

	hidden := m.Decoder.Forward(contextSeq, answer, mask)
	return m.Projection.Forward(hidden)
}

// Train toggles dropout in every module.
func (m *Model[B]) Train(training bool) {
	m.Fusion.Train(training)
	m.Decoder.Train(training)
}

// Seed makes every dropout mask of the model reproducible.
func (m *Model[B]) Seed(seed uint64) {
	m.Fusion.Dropout.Seed(seed)
	for i, l := range m.Decoder.Layers {
		base := seed + uint64(4*(i+1)) //nolint:gosec // i is a small layer index
		l.Dropout1.Seed(base)
		l.Dropout2.Seed(base + 1)
		l.Dropout3.Seed(base + 2)
		l.FFN.Dropout.Seed(base + 3)
	}
}

// Parameters returns the fusion, decoder and projection parameters.
// The frozen encoders contribute none.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, m.Fusion.Parameters()...)
	params = append(params, m.Decoder.Parameters()...)
	return append(params, m.Projection.Parameters()...)
}

// NumParameters returns the number of trainable scalars.
func (m *Model[B]) NumParameters() int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.Tensor().NumElements()
	}
	return n
}

func (m *Model[B]) children() []struct {
	prefix string
	module nn.Stateful
} {
	return []struct {
		prefix string
		module nn.Stateful
	}{
		{"san_model", m.Fusion},
		{"decoder", m.Decoder},
		{"linear_layer", m.Projection},
	}
}

// StateDict returns san_model.*, decoder.* and linear_layer.* entries.
func (m *Model[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for _, c := range m.children() {
		for k, v := range c.module.StateDict() {
			state[c.prefix+"."+k] = v
		}
	}
	return state
}

// LoadStateDict restores every module from a state dict.
func (m *Model[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, c := range m.children() {
		sub := make(map[string]*tensor.RawTensor)
		prefix := c.prefix + "."
		for k, v := range stateDict {
			if rest, ok := strings.CutPrefix(k, prefix); ok {
				sub[rest] = v
			}
		}
		if err := c.module.LoadStateDict(sub); err != nil {
			return fmt.Errorf("%s: %w", c.prefix, err)
		}
	}
	return nil
}
