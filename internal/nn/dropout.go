package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/vivqa/internal/tensor"
)

// Dropout zeroes elements with probability P during training and scales the
// survivors by 1/(1-P). In inference mode it is the identity.
//
// Modules start in inference mode; call Train(true) before training.
type Dropout[B tensor.Backend] struct {
	P        float64
	training bool
	rng      *rand.Rand
	backend  B
}

// NewDropout creates a dropout layer. Panics if p is outside [0, 1).
func NewDropout[B tensor.Backend](p float64, backend B) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("Dropout: probability must be in [0, 1), got %v", p))
	}
	return &Dropout[B]{
		P:       p,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // masks are not security-sensitive
		backend: backend,
	}
}

// Train switches between training (stochastic) and inference (identity) mode.
func (d *Dropout[B]) Train(training bool) {
	d.training = training
}

// Training reports whether the layer is in training mode.
func (d *Dropout[B]) Training() bool {
	return d.training
}

// Seed makes the dropout masks reproducible.
func (d *Dropout[B]) Seed(seed uint64) {
	d.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // masks are not security-sensitive
}

// Forward applies dropout.
func (d *Dropout[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	if !d.training || d.P == 0 {
		return input
	}

	mask := tensor.Zeros(input.Shape(), d.backend)
	keep := float32(1 / (1 - d.P))
	data := mask.Data()
	for i := range data {
		if d.rng.Float64() >= d.P {
			data[i] = keep
		}
	}
	return input.Mul(mask)
}

// Parameters returns an empty slice.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}
