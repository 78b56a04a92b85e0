// Package generate turns decoder logits into answer token ids.
//
// The answer decoder is trained with teacher forcing and read out in a
// single pass: every position's logits are decoded independently, then the
// sequence is cut at the first end-of-sequence token.
package generate

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/vivqa/internal/tensor"
)

// Argmax returns the index of the largest logit (the first one on ties).
func Argmax(logits []float32) int32 {
	row := make([]float64, len(logits))
	for i, v := range logits {
		row[i] = float64(v)
	}
	return int32(floats.MaxIdx(row)) //nolint:gosec // vocab size is bounded by model architecture
}

// Decode picks one token per position from logits [batch, seq, vocab] and
// returns ids [batch][seq].
func Decode(logits *tensor.RawTensor, sampler *Sampler) [][]int32 {
	shape := logits.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("generate.Decode: logits must be [batch, seq, vocab], got %v", shape))
	}
	batch, seq, vocab := shape[0], shape[1], shape[2]

	data := logits.Data()
	ids := make([][]int32, batch)
	for b := range ids {
		ids[b] = make([]int32, seq)
		for s := range seq {
			off := (b*seq + s) * vocab
			ids[b][s] = sampler.Sample(data[off : off+vocab])
		}
	}
	return ids
}

// Greedy is Decode with argmax at every position.
func Greedy(logits *tensor.RawTensor) [][]int32 {
	return Decode(logits, NewSampler(GreedyConfig()))
}

// TrimAtEOS returns ids up to, but excluding, the first eos token.
func TrimAtEOS(ids []int32, eos int32) []int32 {
	for i, id := range ids {
		if id == eos {
			return ids[:i]
		}
	}
	return ids
}
