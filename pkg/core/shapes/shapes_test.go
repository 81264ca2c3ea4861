package shapes

import (
	"math"
	"testing"

	"github.com/gomlx/runtime/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	require.False(t, Invalid().Ok())
	require.False(t, Invalid().IsScalar())

	scalar := Make(dtypes.Float64)
	assert.True(t, scalar.Ok())
	assert.True(t, scalar.IsScalar())
	assert.Equal(t, 0, scalar.Rank())
	assert.Equal(t, 1, scalar.Size())
	assert.Equal(t, uintptr(8), scalar.Memory())
	assert.Equal(t, "(Float64)", scalar.String())

	s := Make(dtypes.Float32, 4, 3, 2)
	assert.False(t, s.IsScalar())
	assert.Equal(t, 3, s.Rank())
	assert.Equal(t, 4*3*2, s.Size())
	assert.Equal(t, uintptr(4*3*2*4), s.Memory())
	assert.Equal(t, 2, s.Dim(-1))
	assert.Equal(t, 4, s.Dim(-3))
	assert.Equal(t, "(Float32)[4 3 2]", s.String())
	assert.Panics(t, func() { _ = s.Dim(3) })
	assert.Panics(t, func() { _ = s.Dim(-4) })
	assert.Panics(t, func() { _ = Make(dtypes.Int32, 2, -1) })

	// Sub-byte dtypes round up to whole bytes.
	assert.Equal(t, uintptr(2), Make(dtypes.S4, 3).Memory())
}

func TestEqual(t *testing.T) {
	s := Make(dtypes.Int32, 2, 3)
	assert.True(t, s.Equal(Make(dtypes.Int32, 2, 3)))
	assert.False(t, s.Equal(Make(dtypes.Int64, 2, 3)))
	assert.False(t, s.Equal(Make(dtypes.Int32, 3, 2)))
	assert.False(t, s.Equal(Make(dtypes.Int32, 2, 3, 1)))
	assert.True(t, s.EqualDimensions(Make(dtypes.Uint8, 2, 3)))
	assert.True(t, Make(dtypes.Float32).Equal(Shape{DType: dtypes.Float32, Dimensions: []int{}}))

	clone := s.Clone()
	clone.Dimensions[0] = 7
	assert.Equal(t, 2, s.Dimensions[0])
}

func TestCheck(t *testing.T) {
	require.NoError(t, Make(dtypes.BFloat16, 5).Check())
	require.NoError(t, Make(dtypes.S4).Check())
	require.Error(t, Invalid().Check())
	require.Error(t, Shape{DType: dtypes.DType(99)}.Check())
	require.ErrorContains(t, Shape{DType: dtypes.Int8, Dimensions: []int{2, -1}}.Check(), "axis 1")
	require.ErrorContains(t, Shape{DType: dtypes.Float32, Dimensions: []int{math.MaxInt / 2, 4}}.Check(), "too large")
	require.NoError(t, Shape{DType: dtypes.Float32, Dimensions: []int{math.MaxInt, 0}}.Check())
}
