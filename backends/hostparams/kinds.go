package hostparams

import (
	"math"
	"math/bits"
	"unsafe"

	"github.com/gomlx/runtime/pkg/core/dtypes"
	"github.com/gomlx/runtime/pkg/core/dtypes/bfloat16"
	"github.com/x448/float16"
)

// kind bundles, for one supported dtype, how to stage its extremal values and narrowed literals.
type kind struct {
	lowest  func(h *HostParameters) unsafe.Pointer
	highest func(h *HostParameters) unsafe.Pointer
	value   func(h *HostParameters, lit Literal) unsafe.Pointer
	load    func(ptr unsafe.Pointer) any
}

// kinds is the closed set of supported dtypes.
var kinds = map[dtypes.DType]kind{
	dtypes.Int8:     kindFor(dtypes.Int8, narrowInt[int8]),
	dtypes.Int16:    kindFor(dtypes.Int16, narrowInt[int16]),
	dtypes.Int32:    kindFor(dtypes.Int32, narrowInt[int32]),
	dtypes.Int64:    kindFor(dtypes.Int64, narrowInt[int64]),
	dtypes.Uint8:    kindFor(dtypes.Uint8, narrowInt[uint8]),
	dtypes.Uint16:   kindFor(dtypes.Uint16, narrowInt[uint16]),
	dtypes.Uint32:   kindFor(dtypes.Uint32, narrowInt[uint32]),
	dtypes.Uint64:   kindFor(dtypes.Uint64, narrowInt[uint64]),
	dtypes.Float16:  kindFor(dtypes.Float16, narrowFloat16),
	dtypes.BFloat16: kindFor(dtypes.BFloat16, narrowBFloat16),
	dtypes.Float32:  kindFor(dtypes.Float32, narrowFloat32),
	dtypes.Float64:  kindFor(dtypes.Float64, narrowFloat64),
}

func kindFor[T Scalar](dtype dtypes.DType, narrow func(Literal) T) kind {
	lowest := dtype.LowestValue().(T)
	highest := dtype.HighestValue().(T)
	return kind{
		lowest:  func(h *HostParameters) unsafe.Pointer { return Cache(h, lowest) },
		highest: func(h *HostParameters) unsafe.Pointer { return Cache(h, highest) },
		value:   func(h *HostParameters, lit Literal) unsafe.Pointer { return Cache(h, narrow(lit)) },
		load:    func(ptr unsafe.Pointer) any { return Load[T](ptr) },
	}
}

func kindOf(op string, dtype dtypes.DType) (kind, error) {
	k, found := kinds[dtype]
	if !found {
		return kind{}, &UnsupportedTypeError{Op: op, DType: dtype}
	}
	return k, nil
}

type integer interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}

// narrowInt keeps the low bits of the two's complement representation of the literal.
func narrowInt[T integer](lit Literal) T {
	if lit.IsFloat {
		return T(wrapFloat(lit.Float))
	}
	return T(lit.Bits)
}

// wrapFloat truncates x toward zero and returns it modulo 2^64. NaN and infinities become 0.
func wrapFloat(x float64) uint64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	r := math.Mod(math.Trunc(x), 1<<64) // Exact, and |r| < 2^64.
	if r >= 0 {
		return uint64(r)
	}
	return -uint64(-r)
}

func narrowFloat64(lit Literal) float64 {
	return lit.Float64()
}

// float32Overflow is MaxFloat32 plus half an ulp: from it on, round to nearest gives infinity.
const float32Overflow = math.MaxFloat32 + 0x1p103

func narrowFloat32(lit Literal) float32 {
	if !lit.IsFloat {
		// Direct conversion rounds once, going through float64 could round twice.
		if lit.Unsigned {
			return float32(lit.Bits)
		}
		return float32(int64(lit.Bits))
	}
	f := lit.Float
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return float32(f)
	case math.Abs(f) >= float32Overflow:
		return float32(math.Inf(int(math.Copysign(1, f))))
	case math.Abs(f) > math.MaxFloat32:
		return float32(math.Copysign(math.MaxFloat32, f))
	}
	return float32(f)
}

// narrowFloat32Odd converts the literal to float32 rounding to odd: truncated toward zero, with
// the lowest mantissa bit set if the conversion was inexact. Rounding that result to nearest in a
// format with at least 2 fewer mantissa bits (Float16, BFloat16) equals rounding the literal
// directly.
func narrowFloat32Odd(lit Literal) float32 {
	if !lit.IsFloat {
		mag, neg := lit.Bits, false
		if !lit.Unsigned && int64(lit.Bits) < 0 {
			mag, neg = -lit.Bits, true
		}
		r := uintToFloat32Odd(mag)
		if neg {
			return -r
		}
		return r
	}
	f := lit.Float
	r := narrowFloat32(FloatLiteral(f))
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxFloat32 || float64(r) == f {
		// Out of range values are beyond the 16 bits formats' range: any rounding gives Inf.
		return r
	}
	if math.Abs(float64(r)) > math.Abs(f) {
		r = math.Nextafter32(r, 0)
	}
	return math.Float32frombits(math.Float32bits(r) | 1)
}

// uintToFloat32Odd keeps the 24 most significant bits of x, with the last one set if any
// discarded bit was set.
func uintToFloat32Odd(x uint64) float32 {
	shift := bits.Len64(x) - 24
	if shift <= 0 {
		return float32(x)
	}
	kept := x >> shift
	if x&(1<<shift-1) != 0 {
		kept |= 1
	}
	return float32(math.Ldexp(float64(kept), shift))
}

func narrowFloat16(lit Literal) float16.Float16 {
	return float16.Fromfloat32(narrowFloat32Odd(lit))
}

func narrowBFloat16(lit Literal) bfloat16.BFloat16 {
	return bfloat16.FromFloat32(narrowFloat32Odd(lit))
}
