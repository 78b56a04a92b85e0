package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/born-ml/vivqa/internal/checkpoint"
	"github.com/born-ml/vivqa/internal/dataset"
	"github.com/born-ml/vivqa/internal/encoder"
	"github.com/born-ml/vivqa/internal/envconfig"
	"github.com/born-ml/vivqa/internal/metrics"
	"github.com/born-ml/vivqa/internal/vqa"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a checkpoint on the test (or dev) split",
		Args:  cobra.NoArgs,
		RunE:  evalHandler,
	}
	addConfigFlags(cmd)
	cmd.Flags().String("checkpoint", "", "SafeTensors checkpoint written by train")
	cmd.Flags().String("split", "test", "Split to evaluate: test or dev")
	_ = cmd.MarkFlagRequired("checkpoint")
	return cmd
}

func evalHandler(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	split, _ := cmd.Flags().GetString("split")
	var path string
	switch split {
	case "test":
		path = cfg.Data.TestCSV
	case "dev":
		path = cfg.Data.DevCSV
	default:
		return fmt.Errorf("eval: unknown split %q", split)
	}
	if path == "" {
		return errors.New("eval: no csv configured for split " + split)
	}

	samples, err := dataset.Load(path)
	if err != nil {
		return err
	}

	enc, err := newEncoders(cfg)
	if err != nil {
		return err
	}
	defer closeEncoders(enc)

	model, err := vqa.NewModel(modelConfig(cfg), newBackend())
	if err != nil {
		return err
	}
	ckpt, _ := cmd.Flags().GetString("checkpoint")
	meta, err := checkpoint.Load(ckpt, model)
	if err != nil {
		return err
	}
	slog.Info("checkpoint loaded", "path", ckpt, "run", meta.RunID, "epoch", meta.Epoch, "step", meta.Step)

	scores, err := vqa.Evaluate(cmd.Context(), model, enc, samples, vqa.EvalConfig{
		BatchSize:    cfg.Train.BatchSize,
		PadID:        encoder.PadID,
		ImageLoaders: envconfig.NumThreads(),
	})
	if err != nil {
		return err
	}
	metrics.WriteReport(cmd.OutOrStdout(), []metrics.Row{{Label: split, Scores: scores}})
	return nil
}
