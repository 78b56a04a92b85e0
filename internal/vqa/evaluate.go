package vqa

import (
	"context"
	"fmt"

	"github.com/born-ml/vivqa/internal/dataset"
	"github.com/born-ml/vivqa/internal/encoder"
	"github.com/born-ml/vivqa/internal/generate"
	"github.com/born-ml/vivqa/internal/metrics"
	"github.com/born-ml/vivqa/internal/nn"
	"github.com/born-ml/vivqa/internal/tensor"
)

// EvalConfig controls Evaluate.
type EvalConfig struct {
	BatchSize    int
	PadID        int32
	ImageLoaders int
}

// Evaluate runs the model in inference mode over full batches of samples and
// returns the per-batch average of the loss and metrics. The model is left
// in inference mode. Recording backends must not be recording.
func Evaluate[B tensor.Backend](
	ctx context.Context,
	model *Model[B],
	encoders *encoder.Encoders,
	samples []dataset.Sample,
	cfg EvalConfig,
) (metrics.Scores, error) {
	if cfg.BatchSize <= 0 {
		return metrics.Scores{}, fmt.Errorf("evaluate: batch size %d must be positive", cfg.BatchSize)
	}
	model.Train(false)
	loss := nn.NewCrossEntropyLoss[B](int(cfg.PadID))

	var acc metrics.Accumulator
	for i, batch := range dataset.Batches(samples, cfg.BatchSize, nil) {
		if err := ctx.Err(); err != nil {
			return metrics.Scores{}, fmt.Errorf("evaluate: %w", err)
		}
		in, err := Embed(ctx, encoders, batch, cfg.ImageLoaders)
		if err != nil {
			return metrics.Scores{}, fmt.Errorf("evaluate batch %d: %w", i+1, err)
		}
		res := Predict(model, loss, in)
		acc.Add(res.Scores)
	}
	return acc.Mean(), nil
}

// Predict runs one inference pass and scores the greedy predictions.
func Predict[B tensor.Backend](model *Model[B], loss *nn.CrossEntropyLoss[B], in *Inputs) *StepResult {
	image, question, answer := tensors(in, model.Backend())
	logits := model.Forward(image, question, answer)
	value := float64(loss.Forward(logits, in.Targets()).Item())

	predictions := generate.Greedy(logits.Raw())
	return &StepResult{
		Loss:        value,
		Predictions: predictions,
		Scores:      metrics.Score(in.AnswerIDs, predictions, value),
	}
}
