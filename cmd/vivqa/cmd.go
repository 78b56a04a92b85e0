package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/born-ml/vivqa/internal/backend/cpu"
	"github.com/born-ml/vivqa/internal/config"
	"github.com/born-ml/vivqa/internal/encoder"
	"github.com/born-ml/vivqa/internal/envconfig"
	"github.com/born-ml/vivqa/internal/logutil"
	"github.com/born-ml/vivqa/internal/vqa"
)

const version = "v0.1.0"

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "vivqa",
		Short:         "Vietnamese visual question answering",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
		},
	}

	rootCmd.AddCommand(
		newTrainCmd(),
		newEvalCmd(),
		newDemoCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vivqa version %s\n", version)
			if env, _ := cmd.Flags().GetBool("env"); env {
				vars := envconfig.AsMap()
				names := make([]string, 0, len(vars))
				for name := range vars {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					v := vars[name]
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%v\t%s\n", v.Name, v.Value, v.Description)
				}
			}
		},
	}
	cmd.Flags().Bool("env", false, "Also print the VIVQA_* environment variables")
	return cmd
}

// addConfigFlags registers the flags shared by train and eval.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "YAML configuration file (defaults apply when empty)")
	cmd.Flags().Int("batch-size", 0, "Override train.batch_size")
	cmd.Flags().Uint64("seed", 0, "Override train.seed")
}

// loadConfig reads --config and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("batch-size") {
		cfg.Train.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("seed") {
		cfg.Train.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Lookup("epochs") != nil && flags.Changed("epochs") {
		cfg.Train.Epochs, _ = flags.GetInt("epochs")
	}
	if flags.Lookup("lr") != nil && flags.Changed("lr") {
		cfg.Train.LearningRate, _ = flags.GetFloat64("lr")
	}
	if flags.Lookup("checkpoint-dir") != nil && flags.Changed("checkpoint-dir") {
		cfg.Train.CheckpointDir, _ = flags.GetString("checkpoint-dir")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newBackend() *cpu.CPUBackend {
	return cpu.New(cpu.WithWorkers(envconfig.NumThreads()))
}

func modelConfig(cfg config.Config) vqa.ModelConfig {
	return vqa.ModelConfig{
		Decoder:       cfg.Decoder(),
		FusionHidden:  cfg.Model.FusionHidden,
		FusionDropout: cfg.Model.FusionDropout,
		VocabSize:     cfg.Model.VocabSize,
	}
}

// newEncoders builds the frozen encoders selected by the configuration.
// ONNX text inputs are tokenized with the hashed vocabulary.
func newEncoders(cfg config.Config) (*encoder.Encoders, error) {
	switch cfg.Encoders.Kind {
	case config.EncoderONNX:
		vocab, err := encoder.NewHashVocab(cfg.Model.VocabSize)
		if err != nil {
			return nil, err
		}
		e, err := encoder.NewONNX(encoder.ONNXConfig{
			LibraryPath:       envconfig.ORTLibrary(),
			ImageModel:        cfg.Encoders.ImageModel,
			QuestionModel:     cfg.Encoders.QuestionModel,
			AnswerModel:       cfg.Encoders.AnswerModel,
			ImageSize:         cfg.Encoders.ImageSize,
			MaxQuestionLen:    cfg.Encoders.MaxQuestionLength,
			MaxAnswerLen:      cfg.Model.MaxAnswerLength,
			IntraOpNumThreads: envconfig.NumThreads(),
		}, vocab)
		if err != nil {
			return nil, err
		}
		return e.Encoders(), nil
	default:
		s, err := encoder.NewSynthetic(encoder.SyntheticConfig{
			DModel:       cfg.Model.DModel,
			NumPatches:   cfg.Encoders.NumPatches,
			MaxAnswerLen: cfg.Model.MaxAnswerLength,
			VocabSize:    cfg.Model.VocabSize,
		})
		if err != nil {
			return nil, err
		}
		return s.Encoders(), nil
	}
}

func closeEncoders(enc *encoder.Encoders) {
	if err := enc.Close(); err != nil {
		slog.Warn("closing encoders", "error", err)
	}
}
