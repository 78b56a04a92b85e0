package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/born-ml/vivqa/internal/autodiff"
	"github.com/born-ml/vivqa/internal/dataset"
	"github.com/born-ml/vivqa/internal/encoder"
	"github.com/born-ml/vivqa/internal/envconfig"
	"github.com/born-ml/vivqa/internal/vqa"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the answer decoder",
		Args:  cobra.NoArgs,
		RunE:  trainHandler,
	}
	addConfigFlags(cmd)
	cmd.Flags().Int("epochs", 0, "Override train.epochs")
	cmd.Flags().Float64("lr", 0, "Override train.learning_rate")
	cmd.Flags().String("checkpoint-dir", "", "Override train.checkpoint_dir")
	return cmd
}

func trainHandler(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Data.TrainCSV == "" {
		return errors.New("train: data.train_csv is not set")
	}

	train, err := dataset.Load(cfg.Data.TrainCSV)
	if err != nil {
		return err
	}
	var dev []dataset.Sample
	if cfg.Data.DevCSV != "" {
		if dev, err = dataset.Load(cfg.Data.DevCSV); err != nil {
			return err
		}
	}

	enc, err := newEncoders(cfg)
	if err != nil {
		return err
	}
	defer closeEncoders(enc)

	backend := autodiff.New(newBackend())
	model, err := vqa.NewModel(modelConfig(cfg), backend)
	if err != nil {
		return err
	}

	trainer := vqa.NewTrainer(model, enc, vqa.TrainerConfig{
		Epochs:          cfg.Train.Epochs,
		BatchSize:       cfg.Train.BatchSize,
		LearningRate:    float32(cfg.Train.LearningRate),
		WeightDecay:     float32(cfg.Train.WeightDecay),
		WarmupSteps:     cfg.Train.WarmupSteps,
		Seed:            cfg.Train.Seed,
		PrintEvery:      cfg.Train.PrintEvery,
		CheckpointDir:   cfg.Train.CheckpointDir,
		CheckpointDType: cfg.DType(),
		PadID:           encoder.PadID,
		ImageLoaders:    envconfig.NumThreads(),
		Logger:          slog.Default(),
		Report:          cmd.OutOrStdout(),
	})

	results, err := trainer.Fit(cmd.Context(), train, dev)
	if err != nil {
		return err
	}
	if n := len(results); n > 0 {
		slog.Info("training finished", "run", trainer.RunID(), "epochs", n,
			"steps", trainer.Steps(), "loss", results[n-1].Train.Loss)
	}
	return nil
}
