package encoder

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/born-ml/vivqa/internal/tensor"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestHashVocab_Encode(t *testing.T) {
	v, err := NewHashVocab(100)
	require.NoError(t, err)

	ids := v.Encode("màu đỏ", 6)
	require.Len(t, ids, 6)
	assert.Equal(t, BOSID, ids[0])
	assert.Equal(t, v.ID("màu"), ids[1])
	assert.Equal(t, v.ID("Đỏ"), ids[2], "case-insensitive")
	assert.Equal(t, []int32{EOSID, PadID, PadID}, ids[3:])
	for _, id := range ids[1:3] {
		assert.GreaterOrEqual(t, id, int32(4))
		assert.Less(t, id, int32(100))
	}

	truncated := v.Encode("a b c d e", 4)
	assert.Equal(t, []int32{BOSID, v.ID("a"), v.ID("b"), EOSID}, truncated)

	_, err = NewHashVocab(4)
	assert.Error(t, err)
}

func TestAttentionMask(t *testing.T) {
	assert.Equal(t, []int64{1, 1, 1, 0}, attentionMask([]int32{BOSID, 9, EOSID, PadID}))
}

func TestNormalize_ChannelFirst(t *testing.T) {
	img := solidImage(2, 1, color.RGBA{255, 0, 0, 255})
	got := Normalize(img, [3]float32{0, 0, 0}, [3]float32{1, 1, 1})
	assert.Equal(t, []float32{1, 1, 0, 0, 0, 0}, got)

	pixels := PixelValues([]image.Image{img, img}, 4)
	assert.Len(t, pixels, 2*3*16)
	assert.InDelta(t, (1-0.485)/0.229, pixels[0], 1e-5)
}

func TestComposite_FlattensAlphaOntoWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{0, 0, 0, 0})
	r, g, b, a := Composite(img).At(0, 0).RGBA()
	assert.Equal(t, [4]uint32{0xffff, 0xffff, 0xffff, 0xffff}, [4]uint32{r, g, b, a})
}

func TestLoadImages(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 3)
	for i := range paths {
		paths[i] = filepath.Join(dir, string(rune('a'+i))+".png")
		f, err := os.Create(paths[i])
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, solidImage(3+i, 2, color.RGBA{uint8(i * 100), 0, 0, 255})))
		require.NoError(t, f.Close())
	}

	images, err := LoadImages(context.Background(), paths, 2)
	require.NoError(t, err)
	for i, img := range images {
		assert.Equal(t, 3+i, img.Bounds().Dx(), "order preserved")
	}

	_, err = LoadImages(context.Background(), append(paths, filepath.Join(dir, "missing.png")), 2)
	assert.Error(t, err)
}

func newTestSynthetic(t *testing.T) *Synthetic {
	t.Helper()
	s, err := NewSynthetic(SyntheticConfig{DModel: 8, NumPatches: 4, MaxAnswerLen: 5, VocabSize: 50})
	require.NoError(t, err)
	return s
}

func TestSynthetic_Shapes(t *testing.T) {
	s := newTestSynthetic(t)
	ctx := context.Background()

	images, err := s.EmbedImages(ctx, []image.Image{solidImage(16, 16, color.White), solidImage(16, 16, color.Black)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4, 8}, images.Shape())

	questions, err := s.EmbedQuestions(ctx, []string{"what color", ""})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 8}, questions.Shape())
	assert.Equal(t, make([]float32, 8), questions.Data()[8:], "empty question embeds to zero")

	ids, answers, err := s.EmbedAnswers(ctx, []string{"red", "dark blue"})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 5, 8}, answers.Shape())
	assert.Equal(t, []int32{BOSID, s.Vocab().ID("red"), EOSID, PadID, PadID}, ids[0])
}

func TestSynthetic_Deterministic(t *testing.T) {
	a, b := newTestSynthetic(t), newTestSynthetic(t)
	ctx := context.Background()
	img := []image.Image{solidImage(10, 10, color.RGBA{10, 200, 30, 255})}

	ea, err := a.EmbedImages(ctx, img)
	require.NoError(t, err)
	eb, err := b.EmbedImages(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, ea.Data(), eb.Data())

	other, err := a.EmbedImages(ctx, []image.Image{solidImage(10, 10, color.White)})
	require.NoError(t, err)
	assert.NotEqual(t, ea.Data(), other.Data(), "different images embed differently")
}

func TestSynthetic_InvalidConfig(t *testing.T) {
	_, err := NewSynthetic(SyntheticConfig{DModel: 8, NumPatches: 5, MaxAnswerLen: 5, VocabSize: 50})
	assert.ErrorContains(t, err, "perfect square")

	_, err = NewSynthetic(SyntheticConfig{DModel: 8, NumPatches: 4, MaxAnswerLen: 5, VocabSize: 3})
	assert.Error(t, err)
}

func TestSynthetic_CancelledContext(t *testing.T) {
	s := newTestSynthetic(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.EmbedQuestions(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewONNX_MissingLibrary(t *testing.T) {
	_, err := NewONNX(ONNXConfig{LibraryPath: filepath.Join(t.TempDir(), "libonnxruntime.so")}, nil)
	assert.Error(t, err)
}

type fakeSessionOptions struct {
	levelErr, threadsErr error
	level                ort.GraphOptimizationLevel
	threads              int
}

func (o *fakeSessionOptions) SetGraphOptimizationLevel(level ort.GraphOptimizationLevel) error {
	o.level = level
	return o.levelErr
}

func (o *fakeSessionOptions) SetIntraOpNumThreads(n int) error {
	o.threads = n
	return o.threadsErr
}

func TestConfigureSession(t *testing.T) {
	opts := &fakeSessionOptions{}
	require.NoError(t, configureSession(opts, 0))
	assert.Equal(t, ort.GraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll), opts.level)
	assert.Zero(t, opts.threads, "threads left to the runtime")

	require.NoError(t, configureSession(opts, 3))
	assert.Equal(t, 3, opts.threads)

	cause := errors.New("ort failure")
	err := configureSession(&fakeSessionOptions{levelErr: cause}, 0)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "session options")

	err = configureSession(&fakeSessionOptions{threadsErr: cause}, 2)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "session options")
}

func TestEncoders_CloseWithoutResources(t *testing.T) {
	enc := newTestSynthetic(t).Encoders()
	assert.NoError(t, enc.Close())
	assert.NoError(t, enc.Close())
}
