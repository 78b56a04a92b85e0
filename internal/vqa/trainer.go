package vqa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/born-ml/vivqa/internal/autodiff"
	"github.com/born-ml/vivqa/internal/checkpoint"
	"github.com/born-ml/vivqa/internal/dataset"
	"github.com/born-ml/vivqa/internal/encoder"
	"github.com/born-ml/vivqa/internal/generate"
	"github.com/born-ml/vivqa/internal/logutil"
	"github.com/born-ml/vivqa/internal/metrics"
	"github.com/born-ml/vivqa/internal/nn"
	"github.com/born-ml/vivqa/internal/optim"
)

// TrainerConfig controls the training loop.
type TrainerConfig struct {
	Epochs          int
	BatchSize       int
	LearningRate    float32
	WeightDecay     float32
	WarmupSteps     int
	Seed            uint64
	PrintEvery      int              // Log progress every n batches; 0 disables
	CheckpointDir   string           // Write one checkpoint per epoch when set
	CheckpointDType checkpoint.DType // Payload type of checkpoints (default F32)
	PadID           int32            // Ignored by the loss
	ImageLoaders    int              // Concurrent image decoders per batch; 0 is unlimited

	Logger *slog.Logger // Defaults to slog.Default()
	Report io.Writer    // Epoch report table; nil disables it
}

// StepResult is the outcome of one optimizer step.
type StepResult struct {
	Loss        float64
	Predictions [][]int32 // Greedy ids [batch][answer_len]
	Scores      metrics.Scores
}

// EpochResult summarises one epoch.
type EpochResult struct {
	Epoch      int
	Train      metrics.Scores
	Dev        *metrics.Scores // nil without dev samples
	Checkpoint string          // Empty when no checkpoint was written
}

// Trainer runs teacher-forced training of a model on a recording backend.
//
// The encoders are frozen: their outputs enter the model as leaf tensors and
// never reach the optimizer.
type Trainer[B autodiff.BackwardCapable] struct {
	model     *Model[B]
	encoders  *encoder.Encoders
	backend   B
	cfg       TrainerConfig
	optimizer *optim.AdamW[B]
	schedule  *optim.LinearSchedule
	loss      *nn.CrossEntropyLoss[B]
	logger    *slog.Logger
	runID     string
	step      int64
}

// NewTrainer prepares an AdamW optimizer over the model's parameters.
func NewTrainer[B autodiff.BackwardCapable](model *Model[B], encoders *encoder.Encoders, cfg TrainerConfig) *Trainer[B] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CheckpointDType == "" {
		cfg.CheckpointDType = checkpoint.F32
	}

	adamw := optim.DefaultAdamWConfig()
	if cfg.LearningRate > 0 {
		adamw.LR = cfg.LearningRate
	}
	adamw.WeightDecay = cfg.WeightDecay
	if cfg.WeightDecay == 0 {
		adamw.WeightDecay = -1
	}

	model.Seed(cfg.Seed)
	return &Trainer[B]{
		model:     model,
		encoders:  encoders,
		backend:   model.Backend(),
		cfg:       cfg,
		optimizer: optim.NewAdamW(model.Parameters(), adamw),
		loss:      nn.NewCrossEntropyLoss[B](int(cfg.PadID)),
		logger:    logger,
		runID:     checkpoint.NewRunID(),
	}
}

// RunID identifies this training run in checkpoint metadata.
func (t *Trainer[B]) RunID() string {
	return t.runID
}

// Steps returns the number of optimizer steps taken.
func (t *Trainer[B]) Steps() int64 {
	return t.step
}

// LR returns the current learning rate.
func (t *Trainer[B]) LR() float32 {
	return t.optimizer.GetLR()
}

// Step runs one teacher-forced update on batch.
func (t *Trainer[B]) Step(ctx context.Context, batch []dataset.Sample) (*StepResult, error) {
	in, err := Embed(ctx, t.encoders, batch, t.cfg.ImageLoaders)
	if err != nil {
		return nil, err
	}
	return t.StepInputs(in), nil
}

// StepInputs runs one teacher-forced update on already embedded inputs.
func (t *Trainer[B]) StepInputs(in *Inputs) *StepResult {
	t.model.Train(true)
	tape := t.backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	image, question, answer := tensors(in, t.backend)
	logits := t.model.Forward(image, question, answer)
	loss := t.loss.Forward(logits, in.Targets())
	logutil.Trace("forward", "logits", logits.Shape(), "ops", tape.NumOps())

	grads := autodiff.Backward(loss, t.backend)
	tape.StopRecording()

	nn.CollectGrads(t.model.Parameters(), grads)
	t.optimizer.Step(grads)
	if t.schedule != nil {
		t.schedule.Step()
	}
	t.step++

	value := float64(loss.Item())
	predictions := generate.Greedy(logits.Raw())
	return &StepResult{
		Loss:        value,
		Predictions: predictions,
		Scores:      metrics.Score(in.AnswerIDs, predictions, value),
	}
}

// Fit trains for the configured number of epochs over full batches of
// train, shuffled with the configured seed. When dev is non-empty it is
// evaluated after every epoch. Cancellation is checked between batches.
func (t *Trainer[B]) Fit(ctx context.Context, train, dev []dataset.Sample) ([]EpochResult, error) {
	if t.cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("fit: batch size %d must be positive", t.cfg.BatchSize)
	}
	perEpoch := len(train) / t.cfg.BatchSize
	if perEpoch == 0 {
		return nil, fmt.Errorf("fit: %d samples do not fill one batch of %d", len(train), t.cfg.BatchSize)
	}
	t.schedule = optim.NewLinearSchedule(t.optimizer, t.cfg.WarmupSteps, perEpoch*t.cfg.Epochs)

	rng := rand.New(rand.NewPCG(t.cfg.Seed, t.cfg.Seed)) //nolint:gosec // shuffling only
	t.logger.Info("training", "run", t.runID, "samples", len(train), "batches", perEpoch,
		"epochs", t.cfg.Epochs, "parameters", t.model.NumParameters())

	var results []EpochResult
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		res, err := t.epoch(ctx, epoch, dataset.Batches(train, t.cfg.BatchSize, rng), dev)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

func (t *Trainer[B]) epoch(ctx context.Context, epoch int, batches [][]dataset.Sample, dev []dataset.Sample) (*EpochResult, error) {
	start := time.Now()
	var acc metrics.Accumulator
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		res, err := t.Step(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("epoch %d batch %d: %w", epoch, i+1, err)
		}
		acc.Add(res.Scores)

		if t.cfg.PrintEvery > 0 && (i+1)%t.cfg.PrintEvery == 0 {
			t.logProgress(epoch, i+1, len(batches), batch, res)
		}
	}

	result := &EpochResult{Epoch: epoch, Train: acc.Mean()}
	rows := []metrics.Row{{Label: fmt.Sprintf("epoch %d train", epoch), Scores: result.Train}}

	if len(dev) > 0 {
		scores, err := t.Evaluate(ctx, dev)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		result.Dev = &scores
		rows = append(rows, metrics.Row{Label: fmt.Sprintf("epoch %d dev", epoch), Scores: scores})
	}

	if t.cfg.CheckpointDir != "" {
		path, err := t.save(epoch, result.Train.Loss)
		if err != nil {
			return nil, err
		}
		result.Checkpoint = path
	}

	t.logger.Info("epoch done", "epoch", epoch, "loss", result.Train.Loss, "rougeL", result.Train.RougeL,
		"bleu4", result.Train.BLEU[3], "lr", t.optimizer.GetLR(), "elapsed", time.Since(start).Round(time.Millisecond))
	if t.cfg.Report != nil {
		metrics.WriteReport(t.cfg.Report, rows)
	}
	return result, nil
}

func (t *Trainer[B]) logProgress(epoch, batch, batches int, samples []dataset.Sample, res *StepResult) {
	s := res.Scores
	t.logger.Info("progress", "epoch", fmt.Sprintf("%d/%d", epoch, t.cfg.Epochs), "batch", fmt.Sprintf("%d/%d", batch, batches),
		"loss", s.Loss, "rougeL", s.RougeL, "bleu1", s.BLEU[0], "bleu2", s.BLEU[1], "bleu3", s.BLEU[2], "bleu4", s.BLEU[3])
	for i, sample := range samples {
		t.logger.Debug("prediction", "question", sample.Question, "answer", sample.Answer,
			"predicted", metrics.Hypothesis(res.Predictions[i]))
	}
}

// Evaluate scores the model on samples in inference mode without recording.
func (t *Trainer[B]) Evaluate(ctx context.Context, samples []dataset.Sample) (metrics.Scores, error) {
	tape := t.backend.GetTape()
	was := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if was {
			tape.StartRecording()
		}
	}()
	return Evaluate(ctx, t.model, t.encoders, samples, EvalConfig{
		BatchSize:    t.cfg.BatchSize,
		PadID:        t.cfg.PadID,
		ImageLoaders: t.cfg.ImageLoaders,
	})
}

func (t *Trainer[B]) save(epoch int, loss float64) (string, error) {
	if err := os.MkdirAll(t.cfg.CheckpointDir, 0o750); err != nil {
		return "", fmt.Errorf("checkpoint dir: %w", err)
	}
	path := filepath.Join(t.cfg.CheckpointDir, fmt.Sprintf("epoch-%03d.safetensors", epoch))
	meta := checkpoint.NewMetadata(t.runID, epoch, t.step, loss)
	if err := checkpoint.Save(path, t.model, t.cfg.CheckpointDType, meta); err != nil {
		return "", err
	}
	t.logger.Info("checkpoint saved", "path", path, "dtype", t.cfg.CheckpointDType)
	return path, nil
}
