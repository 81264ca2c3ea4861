// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors defines the Tensor contract consumed by compiled executables, and Local, a host
// (CPU memory) implementation of it.
//
// Backends own their device representation of data: the only thing the execution contract needs
// from a Tensor is its shape, used to validate calls. Backends that need the bytes of a tensor
// (to upload or download them) use the HostTensor interface.
//
// There are various ways to construct a Local tensor:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//   - FromScalar[T](value T): a scalar tensor.
//   - FromScalarAndDimensions[T](value T, dimensions ...int): a tensor filled with the scalar value given.
//   - FromFlatDataAndDimensions[T](data []T, dimensions ...int): a tensor with a copy of the flat data.
package tensors

import (
	"github.com/gomlx/runtime/pkg/core/dtypes"
	"github.com/gomlx/runtime/pkg/core/shapes"
)

// Tensor is a typed, shaped data buffer passed as input or output of an executable call.
type Tensor interface {
	// Shape of the tensor. It is immutable during the lifetime of the tensor.
	Shape() shapes.Shape
}

// HostTensor is a Tensor whose contents can be accessed as bytes in host memory.
//
// The accessor functions are called with the tensor locked, and the data slice is only valid
// until they return.
type HostTensor interface {
	Tensor

	// ConstBytes calls accessFn with the data of the tensor, which must not be changed.
	ConstBytes(accessFn func(data []byte)) error

	// MutableBytes calls accessFn with the data of the tensor, which can be changed until accessFn returns.
	MutableBytes(accessFn func(data []byte)) error
}

// ShapesOf returns the shapes of the given tensors, in the same order.
// A nil tensor yields an invalid shape.
func ShapesOf(tensors []Tensor) []shapes.Shape {
	result := make([]shapes.Shape, len(tensors))
	for ii, t := range tensors {
		if t == nil {
			result[ii] = shapes.Invalid()
			continue
		}
		result[ii] = t.Shape()
	}
	return result
}

// DTypeOf returns the dtype of the tensor.
func DTypeOf(t Tensor) dtypes.DType {
	return t.Shape().DType
}
