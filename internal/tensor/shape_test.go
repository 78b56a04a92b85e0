package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 2}.Validate())
	assert.Error(t, Shape{2, 0}.Validate())
	assert.Error(t, Shape{-1}.Validate())
}

func TestShape_ComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestShape_AxisAndSplit(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 2, s.Axis(-1))
	assert.Equal(t, 0, s.Axis(0))
	assert.Panics(t, func() { s.Axis(3) })

	outer, size, inner := s.Split(1)
	assert.Equal(t, [3]int{2, 3, 4}, [3]int{outer, size, inner})
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{4, 4}, Shape{2, 8, 4, 4}, Shape{2, 8, 4, 4}, true, false},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		got, broadcast, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.broadcast, broadcast)
	}
}

func TestBroadcastStrides(t *testing.T) {
	assert.Equal(t, []int{0, 1, 0}, BroadcastStrides(Shape{3, 1}, Shape{2, 3, 4}))
	assert.Equal(t, []int{4, 1}, BroadcastStrides(Shape{3, 4}, Shape{3, 4}))
}

func TestRaw_ViewAndClone(t *testing.T) {
	r, err := RawFromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, CPU)
	require.NoError(t, err)

	v := r.View(Shape{3, 2})
	v.Data()[0] = 42
	assert.Equal(t, float32(42), r.Data()[0])

	c := r.Clone()
	c.Data()[1] = -1
	assert.Equal(t, float32(2), r.Data()[1])
	assert.Equal(t, 24, r.ByteSize())

	assert.Panics(t, func() { r.View(Shape{4}) })
	_, err = RawFromSlice([]float32{1}, Shape{2}, CPU)
	assert.Error(t, err)
}
