package encoder

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/born-ml/vivqa/internal/tensor"
)

// SyntheticConfig configures the synthetic encoders.
type SyntheticConfig struct {
	DModel       int // Embedding width
	NumPatches   int // Image patches per image (a perfect square)
	MaxAnswerLen int // Answer sequence length
	VocabSize    int // Size of the hashed answer vocabulary
}

// Synthetic implements all three encoder contracts without pretrained
// weights. Embeddings are deterministic functions of their inputs:
//   - an image patch is its mean color projected through a fixed matrix,
//     plus a fixed per-patch position vector
//   - a question is the mean of fixed per-word vectors
//   - an answer token is a fixed per-id vector plus a fixed position vector
//
// Every fixed vector is drawn from a PCG stream seeded with the FNV-1a hash
// of its name, so two processes always produce identical embeddings.
type Synthetic struct {
	cfg   SyntheticConfig
	grid  int
	vocab *HashVocab

	colorProj [3][]float32 // RGB -> d
	patchPos  [][]float32  // per-patch position vectors
	answerPos [][]float32  // per-position answer vectors
}

// NewSynthetic creates the synthetic encoders.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	grid := int(math.Round(math.Sqrt(float64(cfg.NumPatches))))
	switch {
	case cfg.DModel <= 0 || cfg.MaxAnswerLen < 2:
		return nil, fmt.Errorf("synthetic encoder: invalid sizes %+v", cfg)
	case cfg.NumPatches <= 0 || grid*grid != cfg.NumPatches:
		return nil, fmt.Errorf("synthetic encoder: num_patches %d is not a perfect square", cfg.NumPatches)
	}
	vocab, err := NewHashVocab(cfg.VocabSize)
	if err != nil {
		return nil, fmt.Errorf("synthetic encoder: %w", err)
	}

	s := &Synthetic{cfg: cfg, grid: grid, vocab: vocab}
	for c := range s.colorProj {
		s.colorProj[c] = seededVector(fmt.Sprintf("color/%d", c), cfg.DModel)
	}
	s.patchPos = make([][]float32, cfg.NumPatches)
	for p := range s.patchPos {
		s.patchPos[p] = scaled(seededVector(fmt.Sprintf("patch/%d", p), cfg.DModel), 0.1)
	}
	s.answerPos = make([][]float32, cfg.MaxAnswerLen)
	for p := range s.answerPos {
		s.answerPos[p] = scaled(seededVector(fmt.Sprintf("position/%d", p), cfg.DModel), 0.1)
	}
	return s, nil
}

// Encoders returns s wired into all three encoder slots.
func (s *Synthetic) Encoders() *Encoders {
	return &Encoders{Image: s, Question: s, Answer: s}
}

// Vocab returns the answer vocabulary.
func (s *Synthetic) Vocab() *HashVocab {
	return s.vocab
}

// EmbedImages implements ImageEncoder: [batch, num_patches, d].
func (s *Synthetic) EmbedImages(ctx context.Context, images []image.Image) (*tensor.RawTensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, patches := s.cfg.DModel, s.cfg.NumPatches
	out, err := tensor.NewRaw(tensor.Shape{len(images), patches, d}, tensor.CPU)
	if err != nil {
		return nil, err
	}

	data := out.Data()
	for b, img := range images {
		for p, rgb := range s.patchColors(img) {
			row := data[(b*patches+p)*d : (b*patches+p+1)*d]
			copy(row, s.patchPos[p])
			for c, v := range rgb {
				for j, w := range s.colorProj[c] {
					row[j] += v * w
				}
			}
		}
	}
	return out, nil
}

// patchColors returns the normalized mean color of every grid cell.
func (s *Synthetic) patchColors(img image.Image) [][3]float32 {
	size := 8 * s.grid
	pixels := Normalize(Resize(img, size), ImageNetDefaultMean, ImageNetDefaultSTD)
	plane := size * size

	colors := make([][3]float32, s.cfg.NumPatches)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p := (y/8)*s.grid + x/8
			for c := range 3 {
				colors[p][c] += pixels[c*plane+y*size+x] / 64
			}
		}
	}
	return colors
}

// EmbedQuestions implements QuestionEncoder: [batch, d].
func (s *Synthetic) EmbedQuestions(ctx context.Context, questions []string) (*tensor.RawTensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := s.cfg.DModel
	out, err := tensor.NewRaw(tensor.Shape{len(questions), d}, tensor.CPU)
	if err != nil {
		return nil, err
	}

	data := out.Data()
	for b, q := range questions {
		words := strings.Fields(strings.ToLower(q))
		row := data[b*d : (b+1)*d]
		for _, w := range words {
			for j, v := range seededVector("word/"+w, d) {
				row[j] += v / float32(len(words))
			}
		}
	}
	return out, nil
}

// EmbedAnswers implements AnswerEmbedder: ids [batch][max_len] and
// embeddings [batch, max_len, d].
func (s *Synthetic) EmbedAnswers(ctx context.Context, answers []string) ([][]int32, *tensor.RawTensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	d, seq := s.cfg.DModel, s.cfg.MaxAnswerLen
	out, err := tensor.NewRaw(tensor.Shape{len(answers), seq, d}, tensor.CPU)
	if err != nil {
		return nil, nil, err
	}

	ids := make([][]int32, len(answers))
	data := out.Data()
	tokens := make(map[int32][]float32)
	for b, answer := range answers {
		ids[b] = s.vocab.Encode(answer, seq)
		for p, id := range ids[b] {
			vec, ok := tokens[id]
			if !ok {
				vec = seededVector(fmt.Sprintf("token/%d", id), d)
				tokens[id] = vec
			}
			row := data[(b*seq+p)*d : (b*seq+p+1)*d]
			for j := range row {
				row[j] = vec[j] + s.answerPos[p][j]
			}
		}
	}
	return ids, out, nil
}

// seededVector draws a unit-variance normal vector from a stream seeded by
// the FNV-1a hash of name.
func seededVector(name string, n int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed^0x6a09e667f3bcc909)) //nolint:gosec // deterministic embeddings

	v := make([]float32, n)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}

func scaled(v []float32, f float32) []float32 {
	for i := range v {
		v[i] *= f
	}
	return v
}
