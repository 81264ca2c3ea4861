// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package bfloat16 implements the "brain floating point" 16-bit format: the upper half of an
// IEEE 754 float32 (1 sign bit, 8 exponent bits and 7 mantissa bits).
//
// It complements github.com/x448/float16, which only covers the IEEE half-precision format.
package bfloat16

import (
	"math"
	"strconv"
)

// BFloat16 holds the bits of a bfloat16 value.
type BFloat16 uint16

const (
	exponentMask = 0x7f80
	mantissaMask = 0x007f
)

// FromFloat32 converts x rounding to the nearest value, ties to even.
// NaNs stay NaNs (quiet), even if their payload only had low mantissa bits.
func FromFloat32(x float32) BFloat16 {
	bits := math.Float32bits(x)
	if math.IsNaN(float64(x)) {
		return BFloat16(bits>>16) | 0x0040
	}
	lsb := (bits >> 16) & 1
	return BFloat16((bits + 0x7fff + lsb) >> 16)
}

// FromFloat64 converts x through float32.
func FromFloat64(x float64) BFloat16 { return FromFloat32(float32(x)) }

// Inf returns +Inf if sign >= 0 and -Inf otherwise.
func Inf(sign int) BFloat16 {
	if sign >= 0 {
		return exponentMask
	}
	return 0x8000 | exponentMask
}

// Float32 returns the exact float32 value of f.
func (f BFloat16) Float32() float32 { return math.Float32frombits(uint32(f) << 16) }

// Float64 returns the exact float64 value of f.
func (f BFloat16) Float64() float64 { return float64(f.Float32()) }

// IsNaN reports whether f is a "not-a-number".
func (f BFloat16) IsNaN() bool { return f&exponentMask == exponentMask && f&mantissaMask != 0 }

// String prints the shortest decimal that converts back to f.
func (f BFloat16) String() string {
	return strconv.FormatFloat(float64(f.Float32()), 'g', -1, 32)
}
