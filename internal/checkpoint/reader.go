package checkpoint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/born-ml/vivqa/internal/tensor"
)

// ReadSafeTensors reads every tensor of a SafeTensors file as float32.
//
// The header is validated (names, offsets, sizes against shapes) before any
// tensor is decoded, and the data checksum is verified when present.
func ReadSafeTensors(path string) (map[string]*tensor.RawTensor, Metadata, error) {
	data, err := os.ReadFile(path) //nolint:gosec // checkpoint path is user-provided by design
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return parseSafeTensors(data)
}

func parseSafeTensors(data []byte) (map[string]*tensor.RawTensor, Metadata, error) {
	if len(data) < 8 {
		return nil, Metadata{}, fmt.Errorf("file too short: %d bytes", len(data))
	}
	headerSize := binary.LittleEndian.Uint64(data[:8])
	if headerSize > MaxHeaderSize || headerSize > uint64(len(data)-8) {
		return nil, Metadata{}, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerSize], &entries); err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to parse header: %w", err)
	}
	body := data[8+headerSize:]

	var meta Metadata
	var checksum string
	if rawMeta, ok := entries["__metadata__"]; ok {
		delete(entries, "__metadata__")
		var m map[string]string
		if err := json.Unmarshal(rawMeta, &m); err != nil {
			return nil, Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
		}
		checksum = m[metaChecksum]
		var err error
		if meta, err = metadataFromMap(m); err != nil {
			return nil, Metadata{}, err
		}
	}

	headers := make(map[string]tensorHeader, len(entries))
	spans := make([]tensorSpan, 0, len(entries))
	for name, raw := range entries {
		if err := ValidateTensorName(name); err != nil {
			return nil, Metadata{}, err
		}
		var h tensorHeader
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, Metadata{}, fmt.Errorf("tensor %s: %w", name, err)
		}
		if _, err := ParseDType(string(h.DType)); err != nil {
			return nil, Metadata{}, fmt.Errorf("tensor %s: %w", name, err)
		}
		elements := int64(1)
		for _, dim := range h.Shape {
			elements *= dim
		}
		if want := elements * int64(h.DType.Size()); h.DataOffsets[1]-h.DataOffsets[0] != want {
			return nil, Metadata{}, &ValidationError{
				Type:    "size_mismatch",
				Tensor:  name,
				Details: fmt.Sprintf("shape %v needs %d bytes, offsets span %d", h.Shape, want, h.DataOffsets[1]-h.DataOffsets[0]),
			}
		}
		headers[name] = h
		spans = append(spans, tensorSpan{name: name, start: h.DataOffsets[0], end: h.DataOffsets[1]})
	}
	if err := validateSpans(spans, int64(len(body))); err != nil {
		return nil, Metadata{}, err
	}

	if checksum != "" {
		sum := sha256.Sum256(body)
		if hex.EncodeToString(sum[:]) != checksum {
			return nil, Metadata{}, ErrChecksumMismatch
		}
	}

	tensors := make(map[string]*tensor.RawTensor, len(headers))
	for name, h := range headers {
		values, err := h.DType.decode(body[h.DataOffsets[0]:h.DataOffsets[1]])
		if err != nil {
			return nil, Metadata{}, fmt.Errorf("tensor %s: %w", name, err)
		}
		shape := make(tensor.Shape, len(h.Shape))
		for i, dim := range h.Shape {
			shape[i] = int(dim)
		}
		raw, err := tensor.RawFromSlice(values, shape, tensor.CPU)
		if err != nil {
			return nil, Metadata{}, fmt.Errorf("tensor %s: %w", name, err)
		}
		tensors[name] = raw
	}
	return tensors, meta, nil
}
