package nn

import (
	"fmt"

	"github.com/born-ml/vivqa/internal/tensor"
)

// StackedAttention fuses a question embedding with image patch embeddings.
//
//	hi = W_i v_i                       [B, P, k]
//	hq = W_q v_q                       [B, 1, k]
//	a  = softmax_P(W_a dropout(GELU(hi + hq)))
//	u  = sum_P a * v_i + v_q           [B, d]
type StackedAttention[B tensor.Backend] struct {
	FFImage     *Linear[B] // ff_image [d -> k]
	FFQuestion  *Linear[B] // ff_ques [d -> k]
	FFAttention *Linear[B] // ff_attention [k -> 1]
	Dropout     *Dropout[B]
	dModel      int
}

// NewStackedAttention creates the fusion module with embedding width dModel
// and attention width hidden.
func NewStackedAttention[B tensor.Backend](dModel, hidden int, dropProb float64, backend B) *StackedAttention[B] {
	return &StackedAttention[B]{
		FFImage:     NewLinear(dModel, hidden, backend),
		FFQuestion:  NewLinear(dModel, hidden, backend),
		FFAttention: NewLinear(hidden, 1, backend),
		Dropout:     NewDropout(dropProb, backend),
		dModel:      dModel,
	}
}

// Forward fuses image [batch, patches, d] with question [batch, d] into [batch, d].
func (s *StackedAttention[B]) Forward(image, question *tensor.Tensor[B]) *tensor.Tensor[B] {
	u, _ := s.ForwardWithWeights(image, question)
	return u
}

// ForwardWithWeights also returns the patch attention [batch, patches].
func (s *StackedAttention[B]) ForwardWithWeights(image, question *tensor.Tensor[B]) (*tensor.Tensor[B], *tensor.Tensor[B]) {
	is, qs := image.Shape(), question.Shape()
	if len(is) != 3 || len(qs) != 2 || is[2] != s.dModel || qs[1] != s.dModel || is[0] != qs[0] {
		panic(fmt.Sprintf("StackedAttention.Forward: expected image [B, P, %d] and question [B, %d], got %v and %v",
			s.dModel, s.dModel, is, qs))
	}

	hi := s.FFImage.Forward(image)                    // [B, P, k]
	hq := s.FFQuestion.Forward(question).Unsqueeze(1) // [B, 1, k]
	ha := s.Dropout.Forward(hi.Add(hq).GELU())

	scores := s.FFAttention.Forward(ha).Squeeze(-1) // [B, P]
	weights := scores.Softmax(-1)

	attended := image.Mul(weights.Unsqueeze(-1)).SumDim(1, false) // [B, d]
	return attended.Add(question), weights
}

// Train toggles dropout.
func (s *StackedAttention[B]) Train(training bool) {
	s.Dropout.Train(training)
}

// Parameters returns the three projections' parameters.
func (s *StackedAttention[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	params = append(params, s.FFImage.Parameters()...)
	params = append(params, s.FFQuestion.Parameters()...)
	return append(params, s.FFAttention.Parameters()...)
}

// StateDict returns ff_image.*, ff_ques.* and ff_attention.* entries.
func (s *StackedAttention[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	mergeState(state, "ff_image", s.FFImage.StateDict())
	mergeState(state, "ff_ques", s.FFQuestion.StateDict())
	mergeState(state, "ff_attention", s.FFAttention.StateDict())
	return state
}

// LoadStateDict restores the three projections.
func (s *StackedAttention[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadChild(stateDict, "ff_image", s.FFImage); err != nil {
		return err
	}
	if err := loadChild(stateDict, "ff_ques", s.FFQuestion); err != nil {
		return err
	}
	return loadChild(stateDict, "ff_attention", s.FFAttention)
}
