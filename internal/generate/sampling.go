package generate

import (
	"math"
	"math/rand/v2"
	"sort"
)

// SamplingConfig configures how a token is picked from one row of logits.
type SamplingConfig struct {
	// Temperature controls randomness. 0 = greedy, 1 = normal, >1 = more random.
	Temperature float32

	// TopK limits sampling to top K tokens. 0 = disabled.
	TopK int

	// TopP (nucleus sampling) limits to tokens with cumulative prob < P. 1.0 = disabled.
	TopP float32

	// Seed for reproducibility. -1 = random.
	Seed int64
}

// GreedyConfig returns the configuration used for training metrics and
// evaluation: plain argmax.
func GreedyConfig() SamplingConfig {
	return SamplingConfig{Temperature: 0, TopP: 1.0, Seed: -1}
}

// Sampler samples tokens from logits using configurable strategies.
type Sampler struct {
	config SamplingConfig
	rng    *rand.Rand
}

// NewSampler creates a new sampler with the given configuration.
func NewSampler(config SamplingConfig) *Sampler {
	seed := uint64(config.Seed) //nolint:gosec // sign is irrelevant for seeding
	if config.Seed < 0 {
		seed = rand.Uint64()
	}
	return &Sampler{
		config: config,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)), //nolint:gosec // sampling is not security-sensitive
	}
}

// Sample returns the next token ID from one row of logits.
//
// The sampling process:
//  1. Apply temperature scaling
//  2. Apply Top-K filtering
//  3. Apply Top-P (nucleus) filtering
//  4. Sample from distribution (or argmax if temperature=0)
func (s *Sampler) Sample(logits []float32) int32 {
	if s.config.Temperature == 0 {
		return Argmax(logits)
	}

	// Make a copy to avoid modifying the caller's logits
	logits = append([]float32{}, logits...)
	if s.config.Temperature != 1.0 {
		for i := range logits {
			logits[i] /= s.config.Temperature
		}
	}

	if s.config.TopK > 0 && s.config.TopK < len(logits) {
		logits = s.topKFilter(logits)
	}

	if s.config.TopP < 1.0 && s.config.TopP > 0 {
		logits = s.topPFilter(logits)
	}

	return s.multinomial(softmax(logits))
}

// topKFilter keeps only top K logits, sets rest to -inf.
func (s *Sampler) topKFilter(logits []float32) []float32 {
	sorted := append([]float32{}, logits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	threshold := sorted[s.config.TopK-1]

	for i := range logits {
		if logits[i] < threshold {
			logits[i] = float32(math.Inf(-1))
		}
	}
	return logits
}

// topPFilter implements nucleus sampling.
func (s *Sampler) topPFilter(logits []float32) []float32 {
	probs := softmax(logits)

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return probs[order[i]] > probs[order[j]] })

	// Keep the smallest prefix whose mass exceeds TopP (at least one token).
	keep := make([]bool, len(logits))
	cumSum := float32(0)
	for _, idx := range order {
		keep[idx] = true
		cumSum += probs[idx]
		if cumSum > s.config.TopP {
			break
		}
	}

	for i := range logits {
		if !keep[i] {
			logits[i] = float32(math.Inf(-1))
		}
	}
	return logits
}

// multinomial samples from a categorical distribution.
func (s *Sampler) multinomial(probs []float32) int32 {
	r := s.rng.Float32()

	cumSum := float32(0)
	for i, p := range probs {
		cumSum += p
		if r < cumSum {
			return int32(i) //nolint:gosec // vocab size is bounded by model architecture
		}
	}

	// Return last token if rounding errors
	return int32(len(probs) - 1) //nolint:gosec // vocab size is bounded by model architecture
}

// softmax converts logits to probabilities.
func softmax(logits []float32) []float32 {
	maxVal := float32(math.Inf(-1))
	for _, v := range logits {
		if v > maxVal {
			maxVal = v
		}
	}

	probs := make([]float32, len(logits))
	sum := float32(0)
	for i, v := range logits {
		probs[i] = float32(math.Exp(float64(v - maxVal)))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
