package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vivqa/internal/tensor"
)

func TestGreedySampling(t *testing.T) {
	sampler := NewSampler(GreedyConfig())

	logits := []float32{-1, 0, 1}
	for i := 0; i < 10; i++ {
		assert.Equal(t, int32(2), sampler.Sample(logits), "Greedy should always pick max")
	}
}

func TestArgmax_FirstOnTies(t *testing.T) {
	assert.Equal(t, int32(1), Argmax([]float32{0, 3, 3, -1}))
}

func TestTopKSampling(t *testing.T) {
	sampler := NewSampler(SamplingConfig{Temperature: 1.0, TopK: 2, TopP: 1, Seed: 42})

	logits := []float32{1, 2, 3, 4, 5}
	counts := make(map[int32]int)
	for i := 0; i < 100; i++ {
		counts[sampler.Sample(logits)]++
	}

	assert.Equal(t, 0, counts[0]+counts[1]+counts[2], "Should not sample from filtered tokens")
	assert.Equal(t, 100, counts[3]+counts[4])
}

func TestTopPSampling(t *testing.T) {
	sampler := NewSampler(SamplingConfig{Temperature: 1.0, TopP: 0.5, Seed: 42})

	logits := []float32{-10, -10, -10, 0, 5}
	counts := make(map[int32]int)
	for i := 0; i < 100; i++ {
		counts[sampler.Sample(logits)]++
	}
	assert.Equal(t, 100, counts[4], "only the dominant token survives the nucleus")
}

func TestSampler_SeedIsReproducible(t *testing.T) {
	cfg := SamplingConfig{Temperature: 1.5, TopP: 1, Seed: 7}
	logits := []float32{0.1, 0.2, 0.3, 0.4}

	a, b := NewSampler(cfg), NewSampler(cfg)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Sample(logits), b.Sample(logits))
	}
}

func TestGreedy_DecodesEveryPosition(t *testing.T) {
	logits, err := tensor.RawFromSlice([]float32{
		// batch 0
		0, 5, 1,
		9, 0, 0,
		// batch 1
		0, 0, 2,
		1, 0, 0,
	}, tensor.Shape{2, 2, 3}, tensor.CPU)
	require.NoError(t, err)

	assert.Equal(t, [][]int32{{1, 0}, {2, 0}}, Greedy(logits))
	assert.Panics(t, func() { Greedy(logits.View(tensor.Shape{4, 3})) })
}

func TestTrimAtEOS(t *testing.T) {
	assert.Equal(t, []int32{5, 6}, TrimAtEOS([]int32{5, 6, 2, 7}, 2))
	assert.Equal(t, []int32{}, TrimAtEOS([]int32{2, 5}, 2))
	assert.Equal(t, []int32{5}, TrimAtEOS([]int32{5}, 2))
}
