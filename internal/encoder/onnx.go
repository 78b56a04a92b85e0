package encoder

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/born-ml/vivqa/internal/tensor"
)

// ONNXConfig locates the exported encoder graphs.
//
// Expected graph signatures:
//   - image:    pixel_values [B, 3, S, S] float32 -> last_hidden_state [B, P, d]
//   - question: input_ids, attention_mask [B, L] int64 -> [B, d] or [B, L, d] (first token used)
//   - answer:   input_ids [B, L] int64 -> embeddings [B, L, d]
type ONNXConfig struct {
	LibraryPath       string // onnxruntime shared library; empty uses the default search
	ImageModel        string
	QuestionModel     string
	AnswerModel       string
	ImageSize         int // Square input resolution (224 for DeiT)
	MaxQuestionLen    int
	MaxAnswerLen      int
	IntraOpNumThreads int
}

var (
	ortMu    sync.Mutex
	ortUsers int
)

// acquireEnvironment initializes the process-wide ONNX Runtime environment
// on first use.
func acquireEnvironment(libraryPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortUsers == 0 {
		if libraryPath == "" {
			libraryPath = findLibrary()
		}
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("onnxruntime init: %w", err)
		}
	}
	ortUsers++
	return nil
}

func releaseEnvironment() error {
	ortMu.Lock()
	defer ortMu.Unlock()
	ortUsers--
	if ortUsers > 0 {
		return nil
	}
	return ort.DestroyEnvironment()
}

func findLibrary() string {
	for _, c := range []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	} {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// onnxSession wraps one graph with its output names.
type onnxSession struct {
	session *ort.DynamicAdvancedSession
	name    string
}

func newSession(path string, inputs []string, opts *ort.SessionOptions) (*onnxSession, error) {
	_, outputInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("%s info: %w", path, err)
	}
	if len(outputInfo) == 0 {
		return nil, fmt.Errorf("%s: graph has no outputs", path)
	}

	session, err := ort.NewDynamicAdvancedSession(path, inputs, []string{outputInfo[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s session: %w", path, err)
	}
	slog.Debug("loaded onnx graph", "path", path, "inputs", inputs, "output", outputInfo[0].Name)
	return &onnxSession{session: session, name: path}, nil
}

// run executes the graph and returns its first output as float32 with its shape.
func (s *onnxSession) run(inputs ...ort.Value) ([]float32, tensor.Shape, error) {
	outputs := []ort.Value{nil}
	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, nil, fmt.Errorf("%s run: %w", s.name, err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("%s: unsupported output tensor type %T", s.name, outputs[0])
	}

	dims := out.GetShape()
	shape := make(tensor.Shape, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	data := make([]float32, len(out.GetData()))
	copy(data, out.GetData())
	return data, shape, nil
}

// sessionOptions is the subset of *ort.SessionOptions the encoders tune.
type sessionOptions interface {
	SetGraphOptimizationLevel(level ort.GraphOptimizationLevel) error
	SetIntraOpNumThreads(n int) error
}

// configureSession enables all graph optimizations and, when threads > 0,
// limits intra-op parallelism.
func configureSession(opts sessionOptions, threads int) error {
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return fmt.Errorf("session options: optimization level: %w", err)
	}
	if threads > 0 {
		if err := opts.SetIntraOpNumThreads(threads); err != nil {
			return fmt.Errorf("session options: intra-op threads %d: %w", threads, err)
		}
	}
	return nil
}

// ONNX implements the encoder contracts with ONNX Runtime sessions.
type ONNX struct {
	cfg       ONNXConfig
	tokenizer Tokenizer

	image    *onnxSession
	question *onnxSession
	answer   *onnxSession
}

// NewONNX loads the three graphs. Text is tokenized by tokenizer.
func NewONNX(cfg ONNXConfig, tokenizer Tokenizer) (*ONNX, error) {
	if err := acquireEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		_ = releaseEnvironment()
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	if err := configureSession(opts, cfg.IntraOpNumThreads); err != nil {
		_ = releaseEnvironment()
		return nil, err
	}

	e := &ONNX{cfg: cfg, tokenizer: tokenizer}
	load := []struct {
		dst    **onnxSession
		path   string
		inputs []string
	}{
		{&e.image, cfg.ImageModel, []string{"pixel_values"}},
		{&e.question, cfg.QuestionModel, []string{"input_ids", "attention_mask"}},
		{&e.answer, cfg.AnswerModel, []string{"input_ids"}},
	}
	for _, l := range load {
		s, err := newSession(l.path, l.inputs, opts)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		*l.dst = s
	}
	return e, nil
}

// Encoders returns e wired into all three encoder slots; closing them closes e.
func (e *ONNX) Encoders() *Encoders {
	return &Encoders{Image: e, Question: e, Answer: e, closer: e.Close}
}

// Close destroys the sessions and releases the runtime environment.
func (e *ONNX) Close() error {
	for _, s := range []*onnxSession{e.image, e.question, e.answer} {
		if s != nil {
			_ = s.session.Destroy()
		}
	}
	e.image, e.question, e.answer = nil, nil, nil
	return releaseEnvironment()
}

// EmbedImages implements ImageEncoder.
func (e *ONNX) EmbedImages(ctx context.Context, images []image.Image) (*tensor.RawTensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := e.cfg.ImageSize
	input, err := ort.NewTensor(ort.NewShape(int64(len(images)), 3, int64(size), int64(size)), PixelValues(images, size))
	if err != nil {
		return nil, fmt.Errorf("pixel tensor: %w", err)
	}
	defer input.Destroy()

	data, shape, err := e.image.run(input)
	if err != nil {
		return nil, err
	}
	if len(shape) != 3 {
		return nil, fmt.Errorf("image encoder: expected [batch, patches, d], got %v", shape)
	}
	return tensor.RawFromSlice(data, shape, tensor.CPU)
}

// EmbedQuestions implements QuestionEncoder.
func (e *ONNX) EmbedQuestions(ctx context.Context, questions []string) (*tensor.RawTensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, mask := e.tokenize(questions, e.cfg.MaxQuestionLen)
	shape := ort.NewShape(int64(len(questions)), int64(e.cfg.MaxQuestionLen))

	idTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	data, outShape, err := e.question.run(idTensor, maskTensor)
	if err != nil {
		return nil, err
	}

	switch len(outShape) {
	case 2:
		return tensor.RawFromSlice(data, outShape, tensor.CPU)
	case 3:
		// [B, L, d] -> first token of every sequence
		b, l, d := outShape[0], outShape[1], outShape[2]
		first := make([]float32, b*d)
		for i := range b {
			copy(first[i*d:(i+1)*d], data[i*l*d:i*l*d+d])
		}
		return tensor.RawFromSlice(first, tensor.Shape{b, d}, tensor.CPU)
	default:
		return nil, fmt.Errorf("question encoder: unexpected output shape %v", outShape)
	}
}

// EmbedAnswers implements AnswerEmbedder.
func (e *ONNX) EmbedAnswers(ctx context.Context, answers []string) ([][]int32, *tensor.RawTensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	seq := e.cfg.MaxAnswerLen
	ids := make([][]int32, len(answers))
	flat := make([]int64, 0, len(answers)*seq)
	for b, a := range answers {
		ids[b] = e.tokenizer.Encode(a, seq)
		for _, id := range ids[b] {
			flat = append(flat, int64(id))
		}
	}

	idTensor, err := ort.NewTensor(ort.NewShape(int64(len(answers)), int64(seq)), flat)
	if err != nil {
		return nil, nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idTensor.Destroy()

	data, shape, err := e.answer.run(idTensor)
	if err != nil {
		return nil, nil, err
	}
	if len(shape) != 3 || shape[0] != len(answers) || shape[1] != seq {
		return nil, nil, fmt.Errorf("answer embedder: expected [%d, %d, d], got %v", len(answers), seq, shape)
	}
	emb, err := tensor.RawFromSlice(data, shape, tensor.CPU)
	return ids, emb, err
}

func (e *ONNX) tokenize(texts []string, maxLen int) (ids, mask []int64) {
	ids = make([]int64, 0, len(texts)*maxLen)
	mask = make([]int64, 0, len(texts)*maxLen)
	for _, t := range texts {
		row := e.tokenizer.Encode(t, maxLen)
		for _, id := range row {
			ids = append(ids, int64(id))
		}
		mask = append(mask, attentionMask(row)...)
	}
	return ids, mask
}
