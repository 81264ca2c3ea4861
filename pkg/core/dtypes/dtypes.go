// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes defines DType, the element type of buffers, parameters and staged scalars.
//
// The numbering follows the PJRT C API (see FromPJRT and ToPJRT). Only the dtypes with a Go
// representation can hold host data; the others (S4, F8E5M2, ...) are still named, so shapes
// built by other backends can be described.
package dtypes

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/gomlx/runtime/pkg/core/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// goInfo holds the host representation of a dtype.
type goInfo struct {
	goType          reflect.Type
	lowest, highest any
}

// hostInfo is indexed by DType. Entries with a nil goType have no host representation.
var hostInfo [U2 + 1]goInfo

func register[T Supported](dtype DType, lowest, highest T) {
	hostInfo[dtype] = goInfo{goType: reflect.TypeFor[T](), lowest: lowest, highest: highest}
}

func init() {
	register(Bool, false, true)
	register[int8](Int8, math.MinInt8, math.MaxInt8)
	register[int16](Int16, math.MinInt16, math.MaxInt16)
	register[int32](Int32, math.MinInt32, math.MaxInt32)
	register[int64](Int64, math.MinInt64, math.MaxInt64)
	register[uint8](Uint8, 0, math.MaxUint8)
	register[uint16](Uint16, 0, math.MaxUint16)
	register[uint32](Uint32, 0, math.MaxUint32)
	register[uint64](Uint64, 0, math.MaxUint64)
	register(Float16, float16.Inf(-1), float16.Inf(1))
	register(BFloat16, bfloat16.Inf(-1), bfloat16.Inf(1))
	register(Float32, float32(math.Inf(-1)), float32(math.Inf(1)))
	register(Float64, math.Inf(-1), math.Inf(1))

	// Complex numbers are not ordered: no lowest or highest value.
	hostInfo[Complex64].goType = reflect.TypeFor[complex64]()
	hostInfo[Complex128].goType = reflect.TypeFor[complex128]()

	lowerNames := make(map[string]DType, len(MapOfNames))
	for key, dtype := range MapOfNames {
		lowerNames[strings.ToLower(key)] = dtype
	}
	for lower, dtype := range lowerNames {
		if _, found := MapOfNames[lower]; !found {
			MapOfNames[lower] = dtype
		}
	}
}

func (dtype DType) info() goInfo {
	if dtype < 0 || int(dtype) >= len(hostInfo) {
		return goInfo{}
	}
	return hostInfo[dtype]
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if dtype >= 0 && int(dtype) < len(names) && names[dtype] != "" {
		return names[dtype]
	}
	return "DType(" + strconv.Itoa(int(dtype)) + ")"
}

// IsValid returns whether dtype is one of the named dtypes, other than InvalidDType.
func (dtype DType) IsValid() bool {
	return dtype > InvalidDType && int(dtype) < len(names) && names[dtype] != ""
}

// FromName returns the DType for name, which can be the canonical name or one of the PJRT aliases,
// in any case.
func FromName(name string) (DType, error) {
	for _, key := range []string{name, strings.ToLower(name)} {
		if dtype, found := MapOfNames[key]; found {
			return dtype, nil
		}
	}
	return InvalidDType, errors.Errorf("unknown dtype name %q", name)
}

// FromGenericsType returns the DType of T.
// Go's int maps to Int32 or Int64 depending on the platform.
func FromGenericsType[T Supported]() DType {
	return FromGoType(reflect.TypeFor[T]())
}

// FromGoType returns the DType with host representation t, or InvalidDType.
// Named types are matched by their kind, except for float16.Float16 and bfloat16.BFloat16.
func FromGoType(t reflect.Type) DType {
	if t == nil {
		return InvalidDType
	}
	for dtype := range hostInfo {
		if hostInfo[dtype].goType == t {
			return DType(dtype)
		}
	}
	switch t.Kind() {
	case reflect.Int:
		if strconv.IntSize == 32 {
			return Int32
		}
		return Int64
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		for dtype := range hostInfo {
			// float16.Float16 and bfloat16.BFloat16 only match by type.
			if goType := hostInfo[dtype].goType; goType != nil && goType.Kind() == t.Kind() &&
				goType.PkgPath() == "" {
				return DType(dtype)
			}
		}
	}
	return InvalidDType
}

// FromAny returns the DType of the value's dynamic type, or InvalidDType.
func FromAny(value any) DType {
	return FromGoType(reflect.TypeOf(value))
}

// GoType returns the host type of dtype, or nil if it has none.
func (dtype DType) GoType() reflect.Type { return dtype.info().goType }

// IsSupported returns whether dtype has a host representation.
func (dtype DType) IsSupported() bool { return dtype.GoType() != nil }

// Size in bytes of one element, 0 for dtypes without a host representation.
func (dtype DType) Size() int {
	if t := dtype.GoType(); t != nil {
		return int(t.Size())
	}
	return 0
}

// Memory is Size as a uintptr.
func (dtype DType) Memory() uintptr { return uintptr(dtype.Size()) }

// Bits per element, including the sub-byte and 8-bit float dtypes.
func (dtype DType) Bits() int {
	switch dtype {
	case S2, U2:
		return 2
	case S4, U4:
		return 4
	case F8E5M2, F8E4M3FN, F8E4M3B11FNUZ, F8E5M2FNUZ, F8E4M3FNUZ:
		return 8
	}
	return 8 * dtype.Size()
}

// SizeForDimensions returns the bytes needed to hold an array with the given dimensions,
// rounded up to whole bytes. No dimensions means a scalar.
//
// It panics on negative dimensions, or if the size doesn't fit an int. See CheckedSizeForDimensions.
func (dtype DType) SizeForDimensions(dimensions ...int) int {
	size, err := dtype.CheckedSizeForDimensions(dimensions...)
	if err != nil {
		panic(err)
	}
	return size
}

// CheckedSizeForDimensions is like SizeForDimensions, but returns an error for negative
// dimensions or if the number of elements or of bytes overflows an int.
func (dtype DType) CheckedSizeForDimensions(dimensions ...int) (int, error) {
	numElements := 1
	for _, dim := range dimensions {
		if dim < 0 {
			return 0, errors.Errorf("negative dimension in %v", dimensions)
		}
		if dim == 0 {
			numElements = 0
		}
	}
	if numElements != 0 {
		for _, dim := range dimensions {
			if numElements > math.MaxInt/dim {
				return 0, errors.Errorf("number of elements of dimensions %v overflows int", dimensions)
			}
			numElements *= dim
		}
	}
	bits := dtype.Bits()
	if bits > 0 && numElements > (math.MaxInt-7)/bits {
		return 0, errors.Errorf("size in bytes of %s%v overflows int", dtype, dimensions)
	}
	return (numElements*bits + 7) / 8, nil
}

// LowestValue of dtype as its host type: -Inf for floats, nil for complex and dtypes without a
// host representation.
func (dtype DType) LowestValue() any { return dtype.info().lowest }

// HighestValue of dtype as its host type: +Inf for floats, nil for complex and dtypes without a
// host representation.
func (dtype DType) HighestValue() any { return dtype.info().highest }

// Supported is the generics constraint of the Go types with a DType.
type Supported interface {
	bool | float16.Float16 | bfloat16.BFloat16 |
		float32 | float64 | int | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 |
		complex64 | complex128
}
