package dtypes

import (
	"math"
	"testing"

	"github.com/gomlx/runtime/pkg/core/dtypes/bfloat16"
	pjrtdtypes "github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestDType_HighestLowestValues(t *testing.T) {
	assert.True(t, math.IsInf(Float64.HighestValue().(float64), 1))
	assert.True(t, math.IsInf(float64(Float32.LowestValue().(float32)), -1))
	assert.Equal(t, int8(math.MinInt8), Int8.LowestValue())
	assert.Equal(t, int32(math.MinInt32), Int32.LowestValue())
	assert.Equal(t, uint64(math.MaxUint64), Uint64.HighestValue())
	assert.Equal(t, float16.Inf(-1), Float16.LowestValue())
	assert.Equal(t, bfloat16.Inf(1), BFloat16.HighestValue())

	// Complex numbers are not ordered.
	assert.Nil(t, Complex64.HighestValue())
	assert.Nil(t, Complex128.LowestValue())
}

func TestMapOfNames(t *testing.T) {
	for _, name := range []string{"Float16", "float16", "F16", "f16"} {
		assert.Equal(t, Float16, MapOfNames[name], "name %q", name)
	}
	for _, name := range []string{"BFloat16", "bfloat16", "BF16", "bf16"} {
		assert.Equal(t, BFloat16, MapOfNames[name], "name %q", name)
	}
	dtype, err := FromName("UINT8")
	require.NoError(t, err)
	assert.Equal(t, Uint8, dtype)
	_, err = FromName("char")
	require.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "Float32", Float32.String())
	assert.Equal(t, "Uint16", Uint16.String())
	assert.Equal(t, "DType(99)", DType(99).String())
	assert.True(t, U4.IsValid())
	assert.False(t, InvalidDType.IsValid())
	assert.False(t, DType(99).IsValid())
	assert.False(t, DType(-1).IsValid())
}

func TestFromAny(t *testing.T) {
	assert.Equal(t, Int64, FromAny(int64(7)))
	assert.Equal(t, Float32, FromAny(float32(13)))
	assert.Equal(t, BFloat16, FromAny(bfloat16.FromFloat32(1.0)))
	assert.Equal(t, Float16, FromAny(float16.Fromfloat32(3.0)))
	assert.Equal(t, InvalidDType, FromAny("not a number"))
	assert.Equal(t, Uint32, FromGenericsType[uint32]())
	assert.Equal(t, Complex128, FromGenericsType[complex128]())
	assert.Contains(t, []DType{Int32, Int64}, FromGenericsType[int]())

	// Named types match by kind, except the 16 bits floats.
	type celsius float64
	assert.Equal(t, Float64, FromAny(celsius(21)))
	type counter uint16
	assert.Equal(t, Uint16, FromAny(counter(3)))
}

func TestSize(t *testing.T) {
	assert.Equal(t, 8, Int64.Size())
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 2, BFloat16.Size())
	assert.Equal(t, 0, S4.Size())
	assert.Equal(t, 4, S4.Bits())
}

func TestSizeForDimensions(t *testing.T) {
	assert.Equal(t, 2*3*8, Int64.SizeForDimensions(2, 3))
	assert.Equal(t, 4, Float32.SizeForDimensions())
	assert.Equal(t, 2, BFloat16.SizeForDimensions(1, 1, 1))
	assert.Equal(t, 2, U4.SizeForDimensions(3))

	_, err := Float32.CheckedSizeForDimensions(math.MaxInt/2, 4)
	require.ErrorContains(t, err, "elements")
	_, err = Float64.CheckedSizeForDimensions(math.MaxInt / 8)
	require.ErrorContains(t, err, "bytes")
	_, err = Int8.CheckedSizeForDimensions(2, -1)
	require.Error(t, err)
	size, err := Float32.CheckedSizeForDimensions(math.MaxInt, math.MaxInt, 0)
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Panics(t, func() { _ = Int64.SizeForDimensions(math.MaxInt / 4) })
}

func TestPJRTInterop(t *testing.T) {
	for _, dtype := range []DType{Bool, Int8, Int64, Uint16, Float16, Float32, Float64, BFloat16, Complex128} {
		pjrtDType, ok := ToPJRT(dtype)
		require.True(t, ok, "dtype %s", dtype)
		assert.Equal(t, int32(dtype), int32(pjrtDType))
		assert.Equal(t, dtype, FromPJRT(pjrtDType))
	}
	assert.Equal(t, Float32, FromPJRT(pjrtdtypes.Float32))
	assert.Equal(t, Int32, FromPJRT(pjrtdtypes.Int32))
	assert.Equal(t, InvalidDType, FromPJRT(pjrtdtypes.DType(200)))

	pjrtDType, ok := ToPJRT(Uint8)
	require.True(t, ok)
	assert.Equal(t, pjrtdtypes.Uint8, pjrtDType)
	_, ok = ToPJRT(S4)
	assert.False(t, ok)
	_, ok = ToPJRT(InvalidDType)
	assert.False(t, ok)
}
