// Package config loads the YAML configuration of a training or evaluation run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/vivqa/internal/checkpoint"
	"github.com/born-ml/vivqa/internal/nn"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Encoder kinds.
const (
	EncoderSynthetic = "synthetic"
	EncoderONNX      = "onnx"
)

// Config is the root of the YAML document.
type Config struct {
	Model    Model    `yaml:"model"`
	Train    Train    `yaml:"train"`
	Data     Data     `yaml:"data"`
	Encoders Encoders `yaml:"encoders"`
}

// Model holds the decoder, fusion and vocabulary hyperparameters.
type Model struct {
	DModel          int     `yaml:"d_model"`
	NumHeads        int     `yaml:"num_heads"`
	FFNHidden       int     `yaml:"ffn_hidden"`
	DropProb        float64 `yaml:"drop_prob"`
	NumLayers       int     `yaml:"num_layers"`
	MaxAnswerLength int     `yaml:"max_answer_length"`
	FusionHidden    int     `yaml:"fusion_hidden"`
	FusionDropout   float64 `yaml:"fusion_dropout"`
	VocabSize       int     `yaml:"vocab_size"`
}

// Train holds the optimization settings.
type Train struct {
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	LearningRate    float64 `yaml:"learning_rate"`
	WeightDecay     float64 `yaml:"weight_decay"`
	WarmupSteps     int     `yaml:"warmup_steps"`
	Seed            uint64  `yaml:"seed"`
	PrintEvery      int     `yaml:"print_every"`
	CheckpointDir   string  `yaml:"checkpoint_dir"`
	CheckpointDType string  `yaml:"checkpoint_dtype"`
}

// Data locates the annotation files.
type Data struct {
	TrainCSV string `yaml:"train_csv"`
	DevCSV   string `yaml:"dev_csv"`
	TestCSV  string `yaml:"test_csv"`
}

// Encoders selects and configures the frozen encoders.
type Encoders struct {
	Kind              string `yaml:"kind"`
	ImageModel        string `yaml:"image_model"`
	QuestionModel     string `yaml:"question_model"`
	AnswerModel       string `yaml:"answer_model"`
	ImageSize         int    `yaml:"image_size"`
	NumPatches        int    `yaml:"num_patches"`
	MaxQuestionLength int    `yaml:"max_question_length"`
}

// Default returns the hyperparameters of the reference ViVQA model.
func Default() Config {
	return Config{
		Model: Model{
			DModel:          768,
			NumHeads:        8,
			FFNHidden:       2048,
			DropProb:        0.1,
			NumLayers:       5,
			MaxAnswerLength: 48,
			FusionHidden:    512,
			FusionDropout:   0.5,
			VocabSize:       64001,
		},
		Train: Train{
			Epochs:          10,
			BatchSize:       16,
			LearningRate:    1e-5,
			WeightDecay:     0.01,
			Seed:            42,
			PrintEvery:      500,
			CheckpointDType: "f32",
		},
		Encoders: Encoders{
			Kind:              EncoderSynthetic,
			ImageSize:         224,
			NumPatches:        196,
			MaxQuestionLength: 64,
		},
	}
}

// Load reads path over the defaults and validates the result.
// Relative data, model and checkpoint paths are resolved against the
// directory of path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolve(dir string) {
	for _, p := range []*string{
		&c.Data.TrainCSV, &c.Data.DevCSV, &c.Data.TestCSV,
		&c.Encoders.ImageModel, &c.Encoders.QuestionModel, &c.Encoders.AnswerModel,
		&c.Train.CheckpointDir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Validate rejects configurations no model can be built from.
func (c Config) Validate() error {
	if err := c.Decoder().Validate(); err != nil {
		return fmt.Errorf("%w: model: %w", ErrInvalid, err)
	}

	m, t, e := c.Model, c.Train, c.Encoders
	var problems []error
	check := func(bad bool, format string, args ...any) {
		if bad {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}
	check(m.MaxAnswerLength < 2, "model.max_answer_length %d must be at least 2", m.MaxAnswerLength)
	check(m.FusionHidden <= 0, "model.fusion_hidden %d must be positive", m.FusionHidden)
	check(m.FusionDropout < 0 || m.FusionDropout >= 1, "model.fusion_dropout %v outside [0, 1)", m.FusionDropout)
	check(m.VocabSize <= 4, "model.vocab_size %d must leave room for the special tokens", m.VocabSize)
	check(t.Epochs < 0, "train.epochs %d must not be negative", t.Epochs)
	check(t.BatchSize <= 0, "train.batch_size %d must be positive", t.BatchSize)
	check(t.LearningRate <= 0, "train.learning_rate %v must be positive", t.LearningRate)
	check(t.WeightDecay < 0, "train.weight_decay %v must not be negative", t.WeightDecay)
	check(t.WarmupSteps < 0, "train.warmup_steps %d must not be negative", t.WarmupSteps)
	check(t.PrintEvery < 0, "train.print_every %d must not be negative", t.PrintEvery)
	if _, err := checkpoint.ParseDType(t.CheckpointDType); err != nil {
		problems = append(problems, fmt.Errorf("train.checkpoint_dtype: %w", err))
	}

	switch e.Kind {
	case EncoderSynthetic:
		check(e.NumPatches <= 0, "encoders.num_patches %d must be positive", e.NumPatches)
	case EncoderONNX:
		check(e.ImageModel == "" || e.QuestionModel == "" || e.AnswerModel == "",
			"encoders: onnx needs image_model, question_model and answer_model")
		check(e.ImageSize <= 0, "encoders.image_size %d must be positive", e.ImageSize)
		check(e.MaxQuestionLength < 2, "encoders.max_question_length %d must be at least 2", e.MaxQuestionLength)
	default:
		problems = append(problems, fmt.Errorf("encoders.kind %q must be %q or %q", e.Kind, EncoderSynthetic, EncoderONNX))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(problems...))
	}
	return nil
}

// Decoder returns the decoder stack hyperparameters.
func (c Config) Decoder() nn.DecoderConfig {
	return nn.DecoderConfig{
		DModel:    c.Model.DModel,
		NumHeads:  c.Model.NumHeads,
		FFNHidden: c.Model.FFNHidden,
		DropProb:  c.Model.DropProb,
		NumLayers: c.Model.NumLayers,
	}
}

// DType returns the checkpoint payload type. Validate has already checked it.
func (c Config) DType() checkpoint.DType {
	dtype, _ := checkpoint.ParseDType(c.Train.CheckpointDType)
	return dtype
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
