package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vivqa/internal/backend/cpu"
	"github.com/born-ml/vivqa/internal/nn"
	"github.com/born-ml/vivqa/internal/tensor"
)

func testStateDict(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	weight, err := tensor.RawFromSlice([]float32{1, -2.5, 3.25, 0.125, 1e-3, -7}, tensor.Shape{2, 3}, tensor.CPU)
	require.NoError(t, err)
	bias, err := tensor.RawFromSlice([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}, tensor.CPU)
	require.NoError(t, err)
	return map[string]*tensor.RawTensor{
		"layers.0.ffn.linear1.weight": weight,
		"layers.0.ffn.linear1.bias":   bias,
	}
}

func TestSafeTensors_RoundTripAllDTypes(t *testing.T) {
	tests := []struct {
		dtype DType
		tol   float64
	}{
		{F32, 0},
		{F16, 5e-3},
		{BF16, 3e-2},
	}

	for _, tt := range tests {
		t.Run(string(tt.dtype), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.safetensors")
			state := testStateDict(t)
			runID := NewRunID()

			require.NoError(t, WriteSafeTensors(path, state, tt.dtype, NewMetadata(runID, 3, 120, 1.75)))

			got, meta, err := ReadSafeTensors(path)
			require.NoError(t, err)
			require.Len(t, got, len(state))
			for name, want := range state {
				require.Contains(t, got, name)
				assert.Equal(t, want.Shape(), got[name].Shape())
				for i, w := range want.Data() {
					g := got[name].Data()[i]
					assert.InDelta(t, w, g, tt.tol*max(1, abs(float64(w))), "%s[%d]", name, i)
				}
			}

			assert.Equal(t, runID, meta.RunID)
			assert.Equal(t, 3, meta.Epoch)
			assert.Equal(t, int64(120), meta.Step)
			assert.InDelta(t, 1.75, meta.Loss, 1e-12)
			assert.False(t, meta.CreatedAt.IsZero())
		})
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestSafeTensors_ExtraMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")
	meta := NewMetadata(NewRunID(), 1, 1, 0)
	meta.Extra = map[string]string{"d_model": "768"}
	require.NoError(t, WriteSafeTensors(path, testStateDict(t), F32, meta))

	_, got, err := ReadSafeTensors(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"d_model": "768"}, got.Extra)
}

func TestSafeTensors_ChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, WriteSafeTensors(path, testStateDict(t), F32, Metadata{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, _, err = ReadSafeTensors(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestSafeTensors_RejectsMalformedFiles(t *testing.T) {
	_, _, err := parseSafeTensors([]byte{1, 2, 3})
	assert.Error(t, err)

	huge := make([]byte, 16)
	huge[7] = 0xff
	_, _, err = parseSafeTensors(huge)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)

	header := `{"w":{"dtype":"F32","shape":[2],"data_offsets":[0,8]},"v":{"dtype":"F32","shape":[2],"data_offsets":[4,12]}}`
	_, _, err = parseSafeTensors(withHeader(header, 12))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "offset_overlap", verr.Type)

	header = `{"w":{"dtype":"F32","shape":[3],"data_offsets":[0,8]}}`
	_, _, err = parseSafeTensors(withHeader(header, 8))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "size_mismatch", verr.Type)

	header = `{"w":{"dtype":"I64","shape":[1],"data_offsets":[0,8]}}`
	_, _, err = parseSafeTensors(withHeader(header, 8))
	assert.ErrorIs(t, err, ErrUnsupportedDType)
}

func withHeader(header string, bodySize int) []byte {
	out := make([]byte, 8, 8+len(header)+bodySize)
	out[0] = byte(len(header))
	out = append(out, header...)
	return append(out, make([]byte, bodySize)...)
}

func TestValidateTensorName(t *testing.T) {
	require.NoError(t, ValidateTensorName("layers.0.norm1.gamma"))
	for _, name := range []string{"", "../etc/passwd", "a/b", "a\x00b"} {
		assert.ErrorIs(t, ValidateTensorName(name), ErrInvalidTensorName, name)
	}
	assert.ErrorIs(t, WriteSafeTensors(filepath.Join(t.TempDir(), "x"), map[string]*tensor.RawTensor{
		"a/b": tensor.MustRaw(tensor.Shape{1}, tensor.CPU),
	}, F32, Metadata{}), ErrInvalidTensorName)
}

func TestParseDType(t *testing.T) {
	d, err := ParseDType("bf16")
	require.NoError(t, err)
	assert.Equal(t, BF16, d)
	assert.Equal(t, 2, d.Size())
	assert.Equal(t, 4, F32.Size())

	_, err = ParseDType("f64")
	assert.ErrorIs(t, err, ErrUnsupportedDType)
}

func TestSaveLoad_Module(t *testing.T) {
	backend := cpu.New()
	src := nn.NewLinear(4, 2, backend)
	path := filepath.Join(t.TempDir(), "linear.safetensors")
	require.NoError(t, Save(path, src, F32, NewMetadata(NewRunID(), 1, 10, 0.5)))

	dst := nn.NewLinear(4, 2, backend)
	meta, err := Load(path, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Epoch)
	assert.Equal(t, src.Weight().Tensor().Data(), dst.Weight().Tensor().Data())

	_, err = Load(path, nn.NewLinear(4, 3, backend))
	assert.ErrorContains(t, err, "shape mismatch")

	_, err = Load(path, nn.NewStackedAttention(4, 2, 0.5, backend))
	assert.ErrorContains(t, err, "unexpected tensors")

	_, err = Load(filepath.Join(t.TempDir(), "missing.safetensors"), dst)
	assert.Error(t, err)
}
