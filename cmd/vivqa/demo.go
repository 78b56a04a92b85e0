package main

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/vivqa/internal/encoder"
	"github.com/born-ml/vivqa/internal/generate"
	"github.com/born-ml/vivqa/internal/nn"
	"github.com/born-ml/vivqa/internal/tensor"
	"github.com/born-ml/vivqa/internal/vqa"
)

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run one forward pass on synthetic inputs and print shapes and attention",
		Args:  cobra.NoArgs,
		RunE:  demoHandler,
	}
	cmd.Flags().Int("batch", 2, "Batch size")
	cmd.Flags().Int("seq-len", 4, "Answer length")
	cmd.Flags().Int("d-model", 8, "Embedding width")
	cmd.Flags().Int("heads", 2, "Attention heads")
	cmd.Flags().Int("layers", 1, "Decoder layers")
	cmd.Flags().Int("vocab", 32, "Vocabulary size")
	cmd.Flags().Float32("temperature", 0, "Sampling temperature for predicted ids (0 is argmax)")
	cmd.Flags().Int("top-k", 0, "Sample from the k most likely tokens (0 disables)")
	cmd.Flags().Float32("top-p", 1, "Nucleus sampling threshold")
	cmd.Flags().Int64("sample-seed", -1, "Sampler seed (-1 is random)")
	return cmd
}

func demoHandler(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	batch, _ := flags.GetInt("batch")
	seqLen, _ := flags.GetInt("seq-len")
	dModel, _ := flags.GetInt("d-model")
	heads, _ := flags.GetInt("heads")
	layers, _ := flags.GetInt("layers")
	vocab, _ := flags.GetInt("vocab")
	if batch <= 0 {
		return fmt.Errorf("demo: batch %d must be positive", batch)
	}

	backend := newBackend()
	model, err := vqa.NewModel(vqa.ModelConfig{
		Decoder:      nn.DecoderConfig{DModel: dModel, NumHeads: heads, FFNHidden: 4 * dModel, DropProb: 0.1, NumLayers: layers},
		FusionHidden: dModel,
		VocabSize:    vocab,
	}, backend)
	if err != nil {
		return err
	}
	model.Train(false)

	synthetic, err := encoder.NewSynthetic(encoder.SyntheticConfig{
		DModel:       dModel,
		NumPatches:   4,
		MaxAnswerLen: seqLen,
		VocabSize:    vocab,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	images := make([]image.Image, batch)
	questions := make([]string, batch)
	answers := make([]string, batch)
	for i := range images {
		images[i] = solidImage(color.RGBA{uint8(60 * i), 120, 200, 255}) //nolint:gosec // small demo batch
		questions[i] = "màu của bầu trời là gì"
		answers[i] = strings.Repeat("xanh ", i+1)
	}

	img, err := synthetic.EmbedImages(ctx, images)
	if err != nil {
		return err
	}
	q, err := synthetic.EmbedQuestions(ctx, questions)
	if err != nil {
		return err
	}
	ids, ans, err := synthetic.EmbedAnswers(ctx, answers)
	if err != nil {
		return err
	}

	imageT, questionT, answerT := tensor.New(img, backend), tensor.New(q, backend), tensor.New(ans, backend)
	logits := model.Forward(imageT, questionT, answerT)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "image embeddings    %v\n", imageT.Shape())
	fmt.Fprintf(out, "question embeddings %v\n", questionT.Shape())
	fmt.Fprintf(out, "answer embeddings   %v\n", answerT.Shape())
	fmt.Fprintf(out, "logits              %v\n", logits.Shape())
	fmt.Fprintf(out, "parameters          %d\n", model.NumParameters())

	mask := nn.CausalMask(seqLen, backend)
	_, weights := model.Decoder.Layers[0].SelfAttention.ForwardWithWeights(answerT, mask)
	fmt.Fprintf(out, "layer 0 self-attention weights %v\n", weights.Shape())
	for h := 0; h < heads; h++ {
		row := make([]string, seqLen)
		for j := range row {
			row[j] = fmt.Sprintf("%.4f", weights.At(0, h, 0, j))
		}
		fmt.Fprintf(out, "  head %d, position 0: [%s]\n", h, strings.Join(row, " "))
	}

	temperature, _ := flags.GetFloat32("temperature")
	topK, _ := flags.GetInt("top-k")
	topP, _ := flags.GetFloat32("top-p")
	sampleSeed, _ := flags.GetInt64("sample-seed")
	sampler := generate.NewSampler(generate.SamplingConfig{
		Temperature: temperature,
		TopK:        topK,
		TopP:        topP,
		Seed:        sampleSeed,
	})
	for b, pred := range generate.Decode(logits.Raw(), sampler) {
		fmt.Fprintf(out, "sample %d answer ids %v predicted %v\n", b, ids[b], pred)
	}
	return nil
}

func solidImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
