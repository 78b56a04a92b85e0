package nn

import (
	"github.com/born-ml/vivqa/internal/tensor"
)

// ReLU applies the element-wise function f(x) = max(0, x).
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU.
func (r *ReLU[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.ReLU()
}

// Parameters returns an empty slice.
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// GELU applies the Gaussian error linear unit, x·Φ(x), in its exact form.
type GELU[B tensor.Backend] struct{}

// NewGELU creates a new GELU activation.
func NewGELU[B tensor.Backend]() *GELU[B] {
	return &GELU[B]{}
}

// Forward applies GELU.
func (g *GELU[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.GELU()
}

// Parameters returns an empty slice.
func (g *GELU[B]) Parameters() []*Parameter[B] {
	return nil
}
