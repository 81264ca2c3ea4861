package tensors

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/runtime/pkg/core/dtypes"
	"github.com/gomlx/runtime/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Local is a Tensor stored in host memory as a flat slice of the Go type corresponding to its DType.
//
// It is safe for concurrent use: accessors lock the tensor until they return.
type Local struct {
	shape shapes.Shape

	mu   sync.Mutex
	flat any // Flat slice []T, nil after Finalize.
}

var _ HostTensor = (*Local)(nil)

// FromShape returns a Local tensor with the given shape, with the data initialized with zeros.
//
// It panics if the dtype has no Go representation.
func FromShape(shape shapes.Shape) *Local {
	goType := shape.DType.GoType()
	if goType == nil {
		exceptions.Panicf("tensors.FromShape(%s): dtype has no Go representation", shape)
	}
	return &Local{
		shape: shape.Clone(),
		flat:  reflect.MakeSlice(reflect.SliceOf(goType), shape.Size(), shape.Size()).Interface(),
	}
}

// FromScalar creates a local tensor with the given scalar.
// The `DType` is inferred from the value.
func FromScalar[T dtypes.Supported](value T) *Local {
	return FromScalarAndDimensions(value)
}

// FromScalarAndDimensions creates a local tensor with the given dimensions, filled with the
// given scalar value replicated everywhere.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) *Local {
	flat := make([]T, shapes.Make(dtypes.FromGenericsType[T](), dimensions...).Size())
	for ii := range flat {
		flat[ii] = value
	}
	return FromFlatDataAndDimensions(flat, dimensions...)
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in `data`.
// The data is copied to the Tensor.
//
// It panics if the size of data is wrong for the shape.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Local {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	var dummy T
	if _, isInt := any(dummy).(int); isInt {
		// int is stored as its fixed-size equivalent: the bytes are the same.
		t := FromShape(shape)
		if len(data) > 0 {
			src := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), uintptr(len(data))*unsafe.Sizeof(dummy))
			copy(flatBytes(t.flat), src)
		}
		return t
	}
	flat := make([]T, len(data))
	copy(flat, data)
	return &Local{shape: shape, flat: flat}
}

// Shape of the tensor. A nil tensor has an invalid shape.
func (t *Local) Shape() shapes.Shape {
	if t == nil {
		return shapes.Invalid()
	}
	return t.shape
}

// DType of the tensor's elements.
func (t *Local) DType() dtypes.DType { return t.Shape().DType }

// Size returns the number of elements of the tensor.
func (t *Local) Size() int { return t.Shape().Size() }

// Memory returns the number of bytes used by the tensor data.
func (t *Local) Memory() uintptr { return t.Shape().Memory() }

// CheckValid returns an error if the tensor is nil or was finalized.
func (t *Local) CheckValid() error {
	if t == nil {
		return errors.New("tensor is nil")
	}
	if t.flat == nil {
		return errors.Errorf("tensor %s has been finalized", t.shape)
	}
	return nil
}

// Finalize releases the data immediately. The tensor becomes invalid.
func (t *Local) Finalize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flat = nil
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType.
// Even scalar values have a flattened data representation of one element.
// It locks the Tensor until accessFn returns. The data must not be changed.
func (t *Local) ConstFlatData(accessFn func(flat any)) error {
	if t == nil {
		return errors.New("tensor is nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.CheckValid(); err != nil {
		return err
	}
	accessFn(t.flat)
	return nil
}

// MutableFlatData calls accessFn with the flattened data, which can be changed until accessFn returns.
func (t *Local) MutableFlatData(accessFn func(flat any)) error {
	return t.ConstFlatData(accessFn)
}

// ConstBytes implements HostTensor.
func (t *Local) ConstBytes(accessFn func(data []byte)) error {
	return t.ConstFlatData(func(flat any) {
		accessFn(flatBytes(flat))
	})
}

// MutableBytes implements HostTensor.
func (t *Local) MutableBytes(accessFn func(data []byte)) error {
	return t.ConstBytes(accessFn)
}

// flatBytes returns a byte view of a flat slice.
func flatBytes(flat any) []byte {
	flatV := reflect.ValueOf(flat)
	if flatV.Len() == 0 {
		return nil
	}
	sizeBytes := uintptr(flatV.Len()) * flatV.Type().Elem().Size()
	return unsafe.Slice((*byte)(flatV.UnsafePointer()), sizeBytes)
}

// ConstFlatData is the generics version of Local.ConstFlatData.
func ConstFlatData[T dtypes.Supported](t *Local, accessFn func(flat []T)) error {
	if t == nil {
		return errors.New("tensor is nil")
	}
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		return errors.Errorf("ConstFlatData[%T] is incompatible with tensor's dtype %s", v, t.shape.DType)
	}
	return t.ConstFlatData(func(anyFlat any) {
		accessFn(anyFlat.([]T))
	})
}

// MutableFlatData is the generics version of Local.MutableFlatData.
func MutableFlatData[T dtypes.Supported](t *Local, accessFn func(flat []T)) error {
	return ConstFlatData(t, accessFn)
}

// CopyFlatData returns a copy of the flat data of the tensor.
func CopyFlatData[T dtypes.Supported](t *Local) ([]T, error) {
	var result []T
	err := ConstFlatData(t, func(flat []T) {
		result = make([]T, len(flat))
		copy(result, flat)
	})
	return result, err
}

// MustCopyFlatData returns a copy of the flat data of the tensor, or panics if the tensor is invalid
// or of a different dtype.
func MustCopyFlatData[T dtypes.Supported](t *Local) []T {
	result, err := CopyFlatData[T](t)
	if err != nil {
		panic(err)
	}
	return result
}

// Equal checks whether both tensors have the same shape and contents, byte by byte.
func (t *Local) Equal(other *Local) bool {
	if t == other {
		return true
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	var data0 []byte
	if err := t.ConstBytes(func(data []byte) { data0 = bytes.Clone(data) }); err != nil {
		return false
	}
	equal := false
	err := other.ConstBytes(func(data1 []byte) {
		equal = bytes.Equal(data0, data1)
	})
	return err == nil && equal
}

// String implements fmt.Stringer.
func (t *Local) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.flat == nil {
		return fmt.Sprintf("%s: <finalized>", t.shape)
	}
	return fmt.Sprintf("%s: %v", t.shape, t.flat)
}
