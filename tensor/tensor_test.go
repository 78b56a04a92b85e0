package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vivqa/backend/cpu"
	"github.com/born-ml/vivqa/tensor"
)

func TestPublicTensor(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	y := tensor.Ones(tensor.Shape{3}, backend)

	z := x.Add(y)
	assert.Equal(t, tensor.Shape{2, 3}, z.Shape())
	assert.Equal(t, []float32{2, 3, 4, 5, 6, 7}, z.Data())
	assert.Equal(t, tensor.CPU, z.Device())

	shape, broadcast, err := tensor.BroadcastShapes(tensor.Shape{2, 1}, tensor.Shape{3})
	require.NoError(t, err)
	assert.True(t, broadcast)
	assert.Equal(t, tensor.Shape{2, 3}, shape)
}
