package checkpoint

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/born-ml/vivqa/internal/tensor"
)

// WriteSafeTensors writes a state dict to path in the given dtype.
//
// Tensors are written in alphabetical order by name. The file is written
// to a temporary sibling first and renamed into place, so readers never
// observe a partial checkpoint.
func WriteSafeTensors(path string, stateDict map[string]*tensor.RawTensor, dtype DType, meta Metadata) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	payloads := make([][]byte, len(names))
	sum := sha256.New()

	var offset int64
	for i, name := range names {
		raw := stateDict[name]
		data, err := dtype.encode(raw.Data())
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		payloads[i] = data
		sum.Write(data)

		shape := make([]int64, len(raw.Shape()))
		for j, dim := range raw.Shape() {
			shape[j] = int64(dim)
		}
		header[name] = tensorHeader{
			DType:       dtype,
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + int64(len(data))},
		}
		offset += int64(len(data))
	}

	metadata := meta.toMap()
	metadata[metaChecksum] = hex.EncodeToString(sum.Sum(nil))
	header["__metadata__"] = metadata

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name()) // no-op after a successful rename
	}()

	w := bufio.NewWriter(tmp)
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, data := range payloads {
		if _, err := w.Write(data); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write tensor %s: %w", names[i], err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
