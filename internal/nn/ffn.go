package nn

import "github.com/born-ml/vivqa/internal/tensor"

// PositionwiseFeedForward applies the same two-layer MLP to every position:
//
//	FFN(x) = linear2(dropout(ReLU(linear1(x))))
type PositionwiseFeedForward[B tensor.Backend] struct {
	Linear1 *Linear[B] // [d_model -> hidden]
	Linear2 *Linear[B] // [hidden -> d_model]
	Dropout *Dropout[B]
}

// NewPositionwiseFeedForward creates a feed-forward block.
func NewPositionwiseFeedForward[B tensor.Backend](dModel, hidden int, dropProb float64, backend B) *PositionwiseFeedForward[B] {
	return &PositionwiseFeedForward[B]{
		Linear1: NewLinear(dModel, hidden, backend),
		Linear2: NewLinear(hidden, dModel, backend),
		Dropout: NewDropout(dropProb, backend),
	}
}

// Forward maps [..., d_model] to [..., d_model].
func (f *PositionwiseFeedForward[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	h := f.Linear1.Forward(x).ReLU()
	return f.Linear2.Forward(f.Dropout.Forward(h))
}

// Train toggles dropout.
func (f *PositionwiseFeedForward[B]) Train(training bool) {
	f.Dropout.Train(training)
}

// Parameters returns the parameters of both linear layers.
func (f *PositionwiseFeedForward[B]) Parameters() []*Parameter[B] {
	return append(f.Linear1.Parameters(), f.Linear2.Parameters()...)
}

// StateDict returns linear1.* and linear2.* entries.
func (f *PositionwiseFeedForward[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	mergeState(state, "linear1", f.Linear1.StateDict())
	mergeState(state, "linear2", f.Linear2.StateDict())
	return state
}

// LoadStateDict loads linear1.* and linear2.* entries.
func (f *PositionwiseFeedForward[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadChild(stateDict, "linear1", f.Linear1); err != nil {
		return err
	}
	return loadChild(stateDict, "linear2", f.Linear2)
}
