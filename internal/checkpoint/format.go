package checkpoint

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/google/uuid"
	"github.com/x448/float16"
)

// DType is the on-disk element type of a tensor.
type DType string

// Supported SafeTensors dtypes.
const (
	F32  DType = "F32"
	F16  DType = "F16"
	BF16 DType = "BF16"
)

// ParseDType parses a dtype name such as "f16" or "BF16".
func ParseDType(s string) (DType, error) {
	switch d := DType(strings.ToUpper(s)); d {
	case F32, F16, BF16:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDType, s)
	}
}

// Size returns the number of bytes per element.
func (d DType) Size() int {
	if d == F32 {
		return 4
	}
	return 2
}

// encode converts float32 values to the dtype's little-endian bytes.
func (d DType) encode(values []float32) ([]byte, error) {
	switch d {
	case F32:
		out := make([]byte, 4*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out, nil
	case F16:
		out := make([]byte, 2*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(v).Bits())
		}
		return out, nil
	case BF16:
		return bfloat16.EncodeFloat32(values), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDType, d)
	}
}

// decode converts little-endian bytes of the dtype back to float32.
func (d DType) decode(data []byte) ([]float32, error) {
	switch d {
	case F32:
		out := make([]float32, len(data)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
		return out, nil
	case F16:
		out := make([]float32, len(data)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
		}
		return out, nil
	case BF16:
		return bfloat16.DecodeFloat32(data), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDType, d)
	}
}

// tensorHeader is one tensor entry of the JSON header.
type tensorHeader struct {
	DType       DType    `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Metadata describes the training state a checkpoint was taken at.
type Metadata struct {
	RunID     string    // Training run identifier (UUID)
	Epoch     int       // Completed epochs
	Step      int64     // Optimizer steps taken
	Loss      float64   // Average training loss of the last epoch
	CreatedAt time.Time // When the checkpoint was written
	Extra     map[string]string
}

// NewRunID returns a fresh training run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewMetadata creates metadata stamped with the current time.
func NewMetadata(runID string, epoch int, step int64, loss float64) Metadata {
	return Metadata{
		RunID:     runID,
		Epoch:     epoch,
		Step:      step,
		Loss:      loss,
		CreatedAt: time.Now().UTC(),
	}
}

// Metadata keys in the SafeTensors "__metadata__" map.
const (
	metaFormat    = "format"
	metaRunID     = "run_id"
	metaEpoch     = "epoch"
	metaStep      = "step"
	metaLoss      = "loss"
	metaCreatedAt = "created_at"
	metaChecksum  = "sha256"
)

func (m Metadata) toMap() map[string]string {
	out := make(map[string]string, len(m.Extra)+6)
	for k, v := range m.Extra {
		out[k] = v
	}
	out[metaFormat] = "pt"
	if m.RunID != "" {
		out[metaRunID] = m.RunID
	}
	out[metaEpoch] = strconv.Itoa(m.Epoch)
	out[metaStep] = strconv.FormatInt(m.Step, 10)
	out[metaLoss] = strconv.FormatFloat(m.Loss, 'g', -1, 64)
	if !m.CreatedAt.IsZero() {
		out[metaCreatedAt] = m.CreatedAt.Format(time.RFC3339)
	}
	return out
}

func metadataFromMap(in map[string]string) (Metadata, error) {
	m := Metadata{Extra: make(map[string]string)}
	var err error
	for k, v := range in {
		switch k {
		case metaRunID:
			if _, perr := uuid.Parse(v); perr != nil {
				return m, fmt.Errorf("run_id: %w", perr)
			}
			m.RunID = v
		case metaEpoch:
			m.Epoch, err = strconv.Atoi(v)
		case metaStep:
			m.Step, err = strconv.ParseInt(v, 10, 64)
		case metaLoss:
			m.Loss, err = strconv.ParseFloat(v, 64)
		case metaCreatedAt:
			m.CreatedAt, err = time.Parse(time.RFC3339, v)
		case metaFormat, metaChecksum:
		default:
			m.Extra[k] = v
		}
		if err != nil {
			return m, fmt.Errorf("metadata %s: %w", k, err)
		}
	}
	return m, nil
}
