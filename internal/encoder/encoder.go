// Package encoder defines the frozen encoders that turn raw images, questions
// and answers into embedding tensors, with an ONNX Runtime implementation
// for exported pretrained graphs and a deterministic synthetic one.
//
// Encoders are frozen: their outputs are plain RawTensors that never enter
// a gradient tape.
package encoder

import (
	"context"
	"image"

	"github.com/born-ml/vivqa/internal/tensor"
)

// Special token ids shared by every tokenizer (PhoBERT's layout).
const (
	BOSID int32 = 0
	PadID int32 = 1
	EOSID int32 = 2
	UNKID int32 = 3
)

// ImageEncoder maps a batch of images to patch embeddings [batch, patches, d].
type ImageEncoder interface {
	EmbedImages(ctx context.Context, images []image.Image) (*tensor.RawTensor, error)
}

// QuestionEncoder maps a batch of questions to sentence embeddings [batch, d].
type QuestionEncoder interface {
	EmbedQuestions(ctx context.Context, questions []string) (*tensor.RawTensor, error)
}

// AnswerEmbedder maps a batch of answers to token ids [batch][seq] and token
// embeddings [batch, seq, d]. Sequences are padded to a fixed length.
type AnswerEmbedder interface {
	EmbedAnswers(ctx context.Context, answers []string) ([][]int32, *tensor.RawTensor, error)
}

// Tokenizer maps text to token ids: BOS, the text's tokens, EOS, then PAD up
// to maxLen. Text that does not fit is truncated before EOS.
type Tokenizer interface {
	Encode(text string, maxLen int) []int32
}

// Encoders bundles the three frozen encoders of the model.
type Encoders struct {
	Image    ImageEncoder
	Question QuestionEncoder
	Answer   AnswerEmbedder

	closer func() error
}

// Close releases encoder resources (ONNX sessions). Safe to call on
// encoders that hold none.
func (e *Encoders) Close() error {
	if e.closer == nil {
		return nil
	}
	err := e.closer()
	e.closer = nil
	return err
}

// attentionMask returns 1 for real tokens and 0 for padding.
func attentionMask(ids []int32) []int64 {
	mask := make([]int64, len(ids))
	for i, id := range ids {
		if id != PadID {
			mask[i] = 1
		}
	}
	return mask
}
