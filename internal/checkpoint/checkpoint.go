package checkpoint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/vivqa/internal/nn"
)

// Save writes the model's state dict to path.
func Save(path string, model nn.Stateful, dtype DType, meta Metadata) error {
	if err := WriteSafeTensors(path, model.StateDict(), dtype, meta); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", path, err)
	}
	return nil
}

// Load restores the model's parameters from path and returns the stored
// metadata. Every parameter of the model must be present with its exact
// shape; tensors the model does not know are reported as an error.
func Load(path string, model nn.Stateful) (Metadata, error) {
	tensors, meta, err := ReadSafeTensors(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("load checkpoint %s: %w", path, err)
	}

	known := model.StateDict()
	var unexpected []string
	for name := range tensors {
		if _, ok := known[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return Metadata{}, fmt.Errorf("load checkpoint %s: unexpected tensors: %s", path, strings.Join(unexpected, ", "))
	}

	if err := model.LoadStateDict(tensors); err != nil {
		return Metadata{}, fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	return meta, nil
}
