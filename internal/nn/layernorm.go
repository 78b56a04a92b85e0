package nn

import (
	"fmt"

	"github.com/born-ml/vivqa/internal/tensor"
)

// DefaultLayerNormEps is the epsilon used by the decoder's normalization layers.
const DefaultLayerNormEps = 1e-5

// LayerNorm applies Layer Normalization over the trailing dimensions of its input.
//
// Formula: Y = gamma * (X - mean(X)) / sqrt(var(X) + eps) + beta
//
// Mean and (biased) variance are computed over exactly the trailing
// len(normalizedShape) dimensions, which must equal normalizedShape.
//
// Example:
//
//	norm := nn.NewLayerNorm(tensor.Shape{768}, 1e-5, backend)
//	output := norm.Forward(hidden) // [..., 768] -> [..., 768]
type LayerNorm[B tensor.Backend] struct {
	Gamma   *Parameter[B] // learnable scale, shape normalizedShape
	Beta    *Parameter[B] // learnable shift, shape normalizedShape
	Epsilon float32       // numerical stability constant

	normalizedShape tensor.Shape
}

// NewLayerNorm creates a new LayerNorm layer.
// The gamma parameter is initialized to ones, beta to zeros.
func NewLayerNorm[B tensor.Backend](normalizedShape tensor.Shape, epsilon float32, backend B) *LayerNorm[B] {
	if err := normalizedShape.Validate(); err != nil || len(normalizedShape) == 0 {
		panic(fmt.Sprintf("LayerNorm: invalid normalized shape %v", normalizedShape))
	}
	return &LayerNorm[B]{
		Gamma:           NewParameter("gamma", tensor.Ones(normalizedShape, backend)),
		Beta:            NewParameter("beta", tensor.Zeros(normalizedShape, backend)),
		Epsilon:         epsilon,
		normalizedShape: normalizedShape.Clone(),
	}
}

// Forward applies LayerNorm to the input tensor.
//
// Algorithm:
//  1. Flatten to [outer, n] with n = prod(normalizedShape)
//  2. mean = mean(x) over n, variance = mean((x - mean)^2)
//  3. x_norm = (x - mean) * rsqrt(variance + eps)
//  4. Restore the input shape, output = gamma * x_norm + beta
func (l *LayerNorm[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := x.Shape()
	k := len(l.normalizedShape)
	if len(shape) < k || !shape[len(shape)-k:].Equal(l.normalizedShape) {
		panic(fmt.Sprintf("LayerNorm.Forward: input %v does not end with normalized shape %v", shape, l.normalizedShape))
	}

	n := l.normalizedShape.NumElements()
	flat := x.Reshape(shape.NumElements()/n, n)

	mean := flat.MeanDim(-1, true)
	centered := flat.Sub(mean)
	variance := centered.Mul(centered).MeanDim(-1, true)
	normed := centered.Mul(variance.AddScalar(l.Epsilon).Rsqrt())

	return normed.Reshape(shape...).Mul(l.Gamma.Tensor()).Add(l.Beta.Tensor())
}

// NormalizedShape returns the trailing shape this layer normalizes over.
func (l *LayerNorm[B]) NormalizedShape() tensor.Shape {
	return l.normalizedShape
}

// Parameters returns the learnable parameters (gamma and beta).
func (l *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.Gamma, l.Beta}
}

// StateDict returns {"gamma", "beta"}.
func (l *LayerNorm[B]) StateDict() map[string]*tensor.RawTensor {
	return paramState(l.Gamma, l.Beta)
}

// LoadStateDict loads gamma and beta.
func (l *LayerNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(stateDict, l.Gamma, l.Beta)
}
