// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape: the dtype and dimensions of a buffer, of an executable parameter
// or of an executable result.
//
// A shape with no dimensions (rank 0) is a scalar. For instance `[][]int32{{0, 1, 2}, {3, 4, 5}}`
// has shape `(Int32)[2 3]`, created with `shapes.Make(dtypes.Int32, 2, 3)`.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/runtime/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// Shape of a multi-dimensional array. The zero value is invalid (see Ok).
//
// Shapes are passed by value, but Dimensions is shared: use Clone before mutating it.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a shape with a copy of dimensions. It panics on negative dimensions.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	if slices.ContainsFunc(dimensions, func(dim int) bool { return dim < 0 }) {
		exceptions.Panicf("shapes.Make(%s, %v): negative dimension", dtype, dimensions)
	}
	return Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
}

// Invalid returns the zero Shape.
func Invalid() Shape { return Shape{} }

// Ok returns whether the shape has a dtype set.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Check returns an error if the dtype is unknown, a dimension is negative, or the number of
// elements or bytes of the shape overflows an int.
func (s Shape) Check() error {
	if !s.DType.IsValid() {
		return errors.Errorf("shape %s has an invalid dtype", s)
	}
	for axis, dim := range s.Dimensions {
		if dim < 0 {
			return errors.Errorf("shape %s has negative dimension on axis %d", s, axis)
		}
	}
	if _, err := s.DType.CheckedSizeForDimensions(s.Dimensions...); err != nil {
		return errors.WithMessagef(err, "shape %s is too large", s)
	}
	return nil
}

// Rank is the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether s is a valid rank 0 shape.
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the dimension of axis. Negative axes count from the end. It panics if axis is out
// of range.
func (s Shape) Dim(axis int) int {
	rank := s.Rank()
	if axis < -rank || axis >= rank {
		exceptions.Panicf("axis %d out of range for shape %s", axis, s)
	}
	if axis < 0 {
		axis += rank
	}
	return s.Dimensions[axis]
}

// String implements fmt.Stringer: "(Float32)[2 3]", or "(Float32)" for scalars.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return "(" + s.DType.String() + ")"
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// Size is the number of elements: the product of the dimensions, 1 for scalars.
func (s Shape) Size() int {
	size := 1
	for _, dim := range s.Dimensions {
		size *= dim
	}
	return size
}

// Memory is the number of bytes of a buffer with shape s.
func (s Shape) Memory() uintptr {
	return uintptr(s.DType.SizeForDimensions(s.Dimensions...))
}

// Equal returns whether dtypes and dimensions match.
func (s Shape) Equal(other Shape) bool {
	return s.DType == other.DType && s.EqualDimensions(other)
}

// EqualDimensions returns whether the dimensions match, regardless of the dtype.
func (s Shape) EqualDimensions(other Shape) bool {
	return slices.Equal(s.Dimensions, other.Dimensions)
}

// Clone returns a deep copy of s.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}
