package vqa

import (
	"context"
	"fmt"

	"github.com/born-ml/vivqa/internal/dataset"
	"github.com/born-ml/vivqa/internal/encoder"
	"github.com/born-ml/vivqa/internal/tensor"
)

// Inputs are the frozen-encoder outputs for one batch.
type Inputs struct {
	Image     *tensor.RawTensor // [batch, patches, d]
	Question  *tensor.RawTensor // [batch, d]
	Answer    *tensor.RawTensor // [batch, answer_len, d]
	AnswerIDs [][]int32         // [batch][answer_len]
}

// Targets flattens the answer ids into the [batch*answer_len] target vector
// of the loss.
func (in *Inputs) Targets() []int32 {
	var targets []int32
	for _, ids := range in.AnswerIDs {
		targets = append(targets, ids...)
	}
	return targets
}

// Embed loads the batch's images and runs the three frozen encoders.
// At most loaders images are decoded concurrently.
func Embed(ctx context.Context, enc *encoder.Encoders, batch []dataset.Sample, loaders int) (*Inputs, error) {
	images, err := encoder.LoadImages(ctx, dataset.ImagePaths(batch), loaders)
	if err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}

	in := &Inputs{}
	if in.Image, err = enc.Image.EmbedImages(ctx, images); err != nil {
		return nil, fmt.Errorf("embed images: %w", err)
	}
	if in.Question, err = enc.Question.EmbedQuestions(ctx, dataset.Questions(batch)); err != nil {
		return nil, fmt.Errorf("embed questions: %w", err)
	}
	if in.AnswerIDs, in.Answer, err = enc.Answer.EmbedAnswers(ctx, dataset.Answers(batch)); err != nil {
		return nil, fmt.Errorf("embed answers: %w", err)
	}

	if err := in.check(len(batch)); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Inputs) check(batch int) error {
	is, qs, as := in.Image.Shape(), in.Question.Shape(), in.Answer.Shape()
	switch {
	case len(is) != 3 || len(qs) != 2 || len(as) != 3:
		return fmt.Errorf("encoder outputs have wrong rank: image %v, question %v, answer %v", is, qs, as)
	case is[0] != batch || qs[0] != batch || as[0] != batch || len(in.AnswerIDs) != batch:
		return fmt.Errorf("encoder outputs disagree on batch size %d: image %v, question %v, answer %v", batch, is, qs, as)
	case is[2] != qs[1] || is[2] != as[2]:
		return fmt.Errorf("encoder outputs disagree on width: image %v, question %v, answer %v", is, qs, as)
	}
	for i, ids := range in.AnswerIDs {
		if len(ids) != as[1] {
			return fmt.Errorf("answer %d has %d ids, embeddings have length %d", i, len(ids), as[1])
		}
	}
	return nil
}

// tensors wraps the inputs on backend.
func tensors[B tensor.Backend](in *Inputs, backend B) (image, question, answer *tensor.Tensor[B]) {
	return tensor.New(in.Image, backend), tensor.New(in.Question, backend), tensor.New(in.Answer, backend)
}
