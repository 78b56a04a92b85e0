package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/vivqa/internal/tensor"
)

// CrossEntropy computes the mean negative log-likelihood of targets under
// softmax(logits) over the rows of a (N, V) logits tensor.
//
// Rows whose target equals ignoreIndex contribute nothing and are excluded
// from the mean. If every row is ignored the loss is 0.
// The result is a single-element tensor of shape [1].
func (cpu *CPUBackend) CrossEntropy(logits *tensor.RawTensor, targets []int32, ignoreIndex int) *tensor.RawTensor {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("CPUBackend.CrossEntropy: logits must be 2D [N, V], got %v", shape))
	}
	n, v := shape[0], shape[1]
	if len(targets) != n {
		panic(fmt.Sprintf("CPUBackend.CrossEntropy: %d targets for %d rows", len(targets), n))
	}

	data := logits.Data()
	var total float64
	valid := 0
	for i, t := range targets {
		if int(t) == ignoreIndex {
			continue
		}
		if t < 0 || int(t) >= v {
			panic(fmt.Sprintf("CPUBackend.CrossEntropy: target %d out of range [0, %d)", t, v))
		}
		row := data[i*v : (i+1)*v]
		total -= LogSoftmaxAt(row, int(t))
		valid++
	}

	result := tensor.MustRaw(tensor.Shape{1}, cpu.device)
	if valid > 0 {
		result.Data()[0] = float32(total / float64(valid))
	}
	return result
}

// LogSoftmaxAt returns log(softmax(row)[k]) using the log-sum-exp trick.
func LogSoftmaxAt(row []float32, k int) float64 {
	maxZ := row[0]
	for _, z := range row[1:] {
		if z > maxZ {
			maxZ = z
		}
	}
	var sum float64
	for _, z := range row {
		sum += math.Exp(float64(z - maxZ))
	}
	return float64(row[k]-maxZ) - math.Log(sum)
}
