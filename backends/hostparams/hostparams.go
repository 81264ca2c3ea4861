// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hostparams implements HostParameters, a staging area for scalar kernel arguments.
//
// Device kernel launches commonly take scalar operands by address, and the launch may be consumed
// by the device driver after the call that staged the scalar returned. So each staged value gets
// its own stable address: values are stored in fixed-capacity pages that are never reallocated,
// and a new page is added when the current one is full. Previously returned addresses remain
// valid (and their values unchanged) for as long as the HostParameters object is alive.
//
// HostParameters is owned by the execution context that populates it (typically a device
// executable, or its kernel launch builder), and all addresses it issued become invalid when
// that owner is released.
//
// Population is not safe for concurrent use: it is meant to be done during a single compile or
// build phase. Concurrent reads of already staged values are safe, since they are never mutated.
//
// The supported dtypes are the fixed-size numeric ones: Int8, Int16, Int32, Int64, Uint8, Uint16,
// Uint32, Uint64, Float16, BFloat16, Float32 and Float64. Go has no distinct narrow character type,
// C `char` kernel arguments are staged as Int8.
package hostparams

import (
	"unsafe"

	"github.com/gomlx/runtime/pkg/core/dtypes"
	"github.com/gomlx/runtime/pkg/core/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Scalar lists the Go types that can be staged.
type Scalar interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 |
		float16.Float16 | bfloat16.BFloat16 | float32 | float64
}

// DefaultPageSize is the number of values of each type held by one page of storage.
const DefaultPageSize = 64

// ErrUnsupportedType is matched (with errors.Is) by UnsupportedTypeError.
var ErrUnsupportedType = errors.New("unsupported dtype")

// UnsupportedTypeError is returned when HostParameters is asked for a dtype outside the supported set.
// It reflects a bug in the caller (typically a kernel builder), not a runtime condition.
type UnsupportedTypeError struct {
	Op    string
	DType dtypes.DType
}

// Error implements error.
func (e *UnsupportedTypeError) Error() string {
	return "hostparams." + e.Op + "(" + e.DType.String() + "): " + ErrUnsupportedType.Error()
}

// Is allows errors.Is(err, ErrUnsupportedType).
func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

// pool of values of one type.
type pool[T Scalar] struct {
	pageSize int
	pages    [][]T
	length   int
}

// push appends value to the pool and returns its address.
//
// Pages are allocated with a fixed capacity, and appends never go past it: so a page's backing
// array is never moved. Growing the pages slice itself only moves the page headers.
func (p *pool[T]) push(value T) unsafe.Pointer {
	if len(p.pages) == 0 || len(p.pages[len(p.pages)-1]) == p.pageSize {
		p.pages = append(p.pages, make([]T, 0, p.pageSize))
	}
	page := &p.pages[len(p.pages)-1]
	*page = append(*page, value)
	p.length++
	return unsafe.Pointer(&(*page)[len(*page)-1])
}

// HostParameters holds per-dtype pools of staged scalars. See package documentation.
//
// The zero value is not usable, create it with New.
type HostParameters struct {
	int8s     pool[int8]
	int16s    pool[int16]
	int32s    pool[int32]
	int64s    pool[int64]
	uint8s    pool[uint8]
	uint16s   pool[uint16]
	uint32s   pool[uint32]
	uint64s   pool[uint64]
	float16s  pool[float16.Float16]
	bfloat16s pool[bfloat16.BFloat16]
	float32s  pool[float32]
	float64s  pool[float64]

	memory uintptr
}

// New returns an empty HostParameters with DefaultPageSize.
func New() *HostParameters {
	return NewWithPageSize(DefaultPageSize)
}

// NewWithPageSize returns an empty HostParameters whose pages hold pageSize values each.
// A pageSize < 1 is taken as 1.
func NewWithPageSize(pageSize int) *HostParameters {
	pageSize = max(pageSize, 1)
	h := &HostParameters{}
	h.int8s.pageSize = pageSize
	h.int16s.pageSize = pageSize
	h.int32s.pageSize = pageSize
	h.int64s.pageSize = pageSize
	h.uint8s.pageSize = pageSize
	h.uint16s.pageSize = pageSize
	h.uint32s.pageSize = pageSize
	h.uint64s.pageSize = pageSize
	h.float16s.pageSize = pageSize
	h.bfloat16s.pageSize = pageSize
	h.float32s.pageSize = pageSize
	h.float64s.pageSize = pageSize
	return h
}

// Cache stores a copy of value in the pool for its type and returns the address of the copy.
//
// Each call stores a new copy: addresses are never shared, even for equal values.
func Cache[T Scalar](h *HostParameters, value T) unsafe.Pointer {
	var ptr unsafe.Pointer
	switch v := any(value).(type) {
	case int8:
		ptr = h.int8s.push(v)
	case int16:
		ptr = h.int16s.push(v)
	case int32:
		ptr = h.int32s.push(v)
	case int64:
		ptr = h.int64s.push(v)
	case uint8:
		ptr = h.uint8s.push(v)
	case uint16:
		ptr = h.uint16s.push(v)
	case uint32:
		ptr = h.uint32s.push(v)
	case uint64:
		ptr = h.uint64s.push(v)
	case float16.Float16:
		ptr = h.float16s.push(v)
	case bfloat16.BFloat16:
		ptr = h.bfloat16s.push(v)
	case float32:
		ptr = h.float32s.push(v)
	case float64:
		ptr = h.float64s.push(v)
	}
	h.memory += unsafe.Sizeof(value)
	return ptr
}

// Load reads the value of type T staged at ptr.
func Load[T Scalar](ptr unsafe.Pointer) T {
	return *(*T)(ptr)
}

// LoadAny reads the value staged at ptr, interpreting it as the given dtype.
func LoadAny(dtype dtypes.DType, ptr unsafe.Pointer) (any, error) {
	k, err := kindOf("LoadAny", dtype)
	if err != nil {
		return nil, err
	}
	return k.load(ptr), nil
}

// MinOf stages the lowest value of dtype and returns its address.
//
// For the floating-point dtypes it is negative infinity, so a reduction accumulator seeded with it is
// dominated by any finite input.
func (h *HostParameters) MinOf(dtype dtypes.DType) (unsafe.Pointer, error) {
	k, err := kindOf("MinOf", dtype)
	if err != nil {
		return nil, err
	}
	return k.lowest(h), nil
}

// MaxOf stages the highest value of dtype and returns its address.
//
// For the floating-point dtypes it is positive infinity.
func (h *HostParameters) MaxOf(dtype dtypes.DType) (unsafe.Pointer, error) {
	k, err := kindOf("MaxOf", dtype)
	if err != nil {
		return nil, err
	}
	return k.highest(h), nil
}

// ValueOf narrows the numeric literal to dtype, stages it and returns its address.
//
// literal can be any Go integer or float type, float16.Float16, bfloat16.BFloat16 or a Literal.
// See Literal for the narrowing rules.
func (h *HostParameters) ValueOf(dtype dtypes.DType, literal any) (unsafe.Pointer, error) {
	k, err := kindOf("ValueOf", dtype)
	if err != nil {
		return nil, err
	}
	lit, err := LiteralOf(literal)
	if err != nil {
		return nil, errors.WithMessagef(err, "hostparams.ValueOf(%s)", dtype)
	}
	return k.value(h, lit), nil
}

// Len returns the total number of values staged.
func (h *HostParameters) Len() int {
	return h.int8s.length + h.int16s.length + h.int32s.length + h.int64s.length +
		h.uint8s.length + h.uint16s.length + h.uint32s.length + h.uint64s.length +
		h.float16s.length + h.bfloat16s.length + h.float32s.length + h.float64s.length
}

// Memory returns the number of bytes used by the staged values (it doesn't include unused page capacity).
func (h *HostParameters) Memory() uintptr {
	return h.memory
}

// IsSupported returns whether values of dtype can be staged.
func IsSupported(dtype dtypes.DType) bool {
	_, found := kinds[dtype]
	return found
}
