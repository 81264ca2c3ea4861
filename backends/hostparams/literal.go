package hostparams

import (
	"fmt"

	"github.com/gomlx/runtime/pkg/core/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Literal is a backend-agnostic numeric constant, chosen before the concrete dtype of the kernel
// argument is known. It is a plain struct, so it can be serialized (e.g. with encoding/gob).
//
// Narrowing rules, used by HostParameters.ValueOf:
//
//   - Integer dtypes: the value is truncated toward zero and reduced modulo 2^bits (two's complement
//     wraparound). So 300 becomes 44 as Uint8, and -1 becomes 255. NaN and infinities become 0.
//   - Float32, Float16 and BFloat16: rounded once to the nearest representable value, ties to
//     even, as IEEE 754 does. Values beyond the largest finite value plus half an ulp become
//     infinities.
//   - Float64: integer literals beyond 2^53 are rounded to nearest, float literals are kept.
type Literal struct {
	// IsFloat indicates the value is in Float, otherwise it's an integer in Bits.
	IsFloat bool
	Float   float64

	// Bits holds the 64 bits two's complement representation of an integer value.
	Bits uint64

	// Unsigned indicates Bits holds an unsigned value, relevant when converting large values to float.
	Unsigned bool
}

// FloatLiteral returns a floating-point Literal.
func FloatLiteral(value float64) Literal {
	return Literal{IsFloat: true, Float: value}
}

// IntLiteral returns a signed integer Literal.
func IntLiteral(value int64) Literal {
	return Literal{Bits: uint64(value)}
}

// UintLiteral returns an unsigned integer Literal.
func UintLiteral(value uint64) Literal {
	return Literal{Bits: value, Unsigned: true}
}

// LiteralOf converts any Go number (or a Literal) to a Literal.
func LiteralOf(value any) (Literal, error) {
	switch v := value.(type) {
	case Literal:
		return v, nil
	case int:
		return IntLiteral(int64(v)), nil
	case int8:
		return IntLiteral(int64(v)), nil
	case int16:
		return IntLiteral(int64(v)), nil
	case int32:
		return IntLiteral(int64(v)), nil
	case int64:
		return IntLiteral(v), nil
	case uint:
		return UintLiteral(uint64(v)), nil
	case uint8:
		return UintLiteral(uint64(v)), nil
	case uint16:
		return UintLiteral(uint64(v)), nil
	case uint32:
		return UintLiteral(uint64(v)), nil
	case uint64:
		return UintLiteral(v), nil
	case float32:
		return FloatLiteral(float64(v)), nil
	case float64:
		return FloatLiteral(v), nil
	case float16.Float16:
		return FloatLiteral(float64(v.Float32())), nil
	case bfloat16.BFloat16:
		return FloatLiteral(float64(v.Float32())), nil
	}
	return Literal{}, errors.Errorf("unsupported literal %v of type %T", value, value)
}

// Float64 returns the value of the literal as a float64, possibly losing precision for large integers.
func (l Literal) Float64() float64 {
	if l.IsFloat {
		return l.Float
	}
	if l.Unsigned {
		return float64(l.Bits)
	}
	return float64(int64(l.Bits))
}

// String implements fmt.Stringer.
func (l Literal) String() string {
	if l.IsFloat {
		return fmt.Sprintf("%g", l.Float)
	}
	if l.Unsigned {
		return fmt.Sprintf("%d", l.Bits)
	}
	return fmt.Sprintf("%d", int64(l.Bits))
}
