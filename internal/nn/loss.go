package nn

import (
	"fmt"

	"github.com/born-ml/vivqa/internal/tensor"
)

// crossEntropyBackend is implemented by backends with a fused cross-entropy
// kernel (the CPU backend and the autodiff decorator over it).
type crossEntropyBackend interface {
	CrossEntropy(logits *tensor.RawTensor, targets []int32, ignoreIndex int) *tensor.RawTensor
}

// CrossEntropyLoss is the mean negative log-likelihood of integer targets
// under softmax(logits). Rows whose target equals IgnoreIndex contribute
// neither loss nor gradient; when every row is ignored the loss is 0.
type CrossEntropyLoss[B tensor.Backend] struct {
	IgnoreIndex int
}

// NewCrossEntropyLoss creates the loss with the given ignore index (the pad id).
func NewCrossEntropyLoss[B tensor.Backend](ignoreIndex int) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{IgnoreIndex: ignoreIndex}
}

// Forward computes the loss of logits [N, V] (or [B, L, V], flattened) against
// targets of length N. Returns a single-element tensor.
func (l *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[B], targets []int32) *tensor.Tensor[B] {
	shape := logits.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("CrossEntropyLoss.Forward: logits must be at least 2D, got %v", shape))
	}
	vocab := shape[len(shape)-1]
	if len(shape) != 2 {
		logits = logits.Reshape(shape.NumElements()/vocab, vocab)
	}

	backend := logits.Backend()
	ce, ok := any(backend).(crossEntropyBackend)
	if !ok {
		panic(fmt.Sprintf("CrossEntropyLoss.Forward: backend %s has no cross-entropy kernel", backend.Name()))
	}
	return tensor.New(ce.CrossEntropy(logits.Raw(), targets, l.IgnoreIndex), backend)
}
