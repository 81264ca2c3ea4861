package reference

import (
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/runtime/backends/hostparams"
	"github.com/gomlx/runtime/pkg/core/dtypes"
)

// number are the Go types the kernels are instantiated for.
type number interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// isKernelDType returns whether the reference backend has kernels for dtype.
func isKernelDType(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
		dtypes.Float32, dtypes.Float64:
		return true
	}
	return false
}

// newSlot allocates zeroed device memory for size bytes, aligned to 8 bytes.
func newSlot(size uintptr) []byte {
	if size == 0 {
		return nil
	}
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
}

// slotAs views the slot memory as a slice of T.
func slotAs[T number](slot []byte) []T {
	if len(slot) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*T)(unsafe.Pointer(&slot[0])), len(slot)/int(unsafe.Sizeof(zero)))
}

// runLaunch executes l over the device slots.
func runLaunch(l *launch, slots [][]byte) {
	switch l.dtype {
	case dtypes.Int8:
		execKernel[int8](l, slots)
	case dtypes.Int16:
		execKernel[int16](l, slots)
	case dtypes.Int32:
		execKernel[int32](l, slots)
	case dtypes.Int64:
		execKernel[int64](l, slots)
	case dtypes.Uint8:
		execKernel[uint8](l, slots)
	case dtypes.Uint16:
		execKernel[uint16](l, slots)
	case dtypes.Uint32:
		execKernel[uint32](l, slots)
	case dtypes.Uint64:
		execKernel[uint64](l, slots)
	case dtypes.Float32:
		execKernel[float32](l, slots)
	case dtypes.Float64:
		execKernel[float64](l, slots)
	default:
		exceptions.Panicf("reference backend: no kernel for dtype %s", l.dtype)
	}
}

func execKernel[T number](l *launch, slots [][]byte) {
	output := slotAs[T](slots[l.output])
	switch l.op {
	case OpTypeConstant, OpTypeFill:
		value := hostparams.Load[T](l.scalar)
		for ii := range output {
			output[ii] = value
		}

	case OpTypeScale:
		factor := hostparams.Load[T](l.scalar)
		input := slotAs[T](slots[l.operands[0]])
		for ii := range output {
			output[ii] = input[ii] * factor
		}

	case OpTypeAdd:
		binaryKernel(output, slotAs[T](slots[l.operands[0]]), slotAs[T](slots[l.operands[1]]),
			func(a, b T) T { return a + b })
	case OpTypeSub:
		binaryKernel(output, slotAs[T](slots[l.operands[0]]), slotAs[T](slots[l.operands[1]]),
			func(a, b T) T { return a - b })
	case OpTypeMul:
		binaryKernel(output, slotAs[T](slots[l.operands[0]]), slotAs[T](slots[l.operands[1]]),
			func(a, b T) T { return a * b })
	case OpTypeMax:
		binaryKernel(output, slotAs[T](slots[l.operands[0]]), slotAs[T](slots[l.operands[1]]), maxOf[T])
	case OpTypeMin:
		binaryKernel(output, slotAs[T](slots[l.operands[0]]), slotAs[T](slots[l.operands[1]]), minOf[T])

	case OpTypeReduceMax:
		output[0] = reduceKernel(slotAs[T](slots[l.operands[0]]), hostparams.Load[T](l.scalar), maxOf[T])
	case OpTypeReduceMin:
		output[0] = reduceKernel(slotAs[T](slots[l.operands[0]]), hostparams.Load[T](l.scalar), minOf[T])
	case OpTypeReduceSum:
		output[0] = reduceKernel(slotAs[T](slots[l.operands[0]]), hostparams.Load[T](l.scalar),
			func(a, b T) T { return a + b })

	default:
		exceptions.Panicf("reference backend: no kernel for op %s", l.op)
	}
}

// binaryKernel applies fn element-wise. An operand with a single element is broadcast.
func binaryKernel[T number](output, lhs, rhs []T, fn func(a, b T) T) {
	lhsStride, rhsStride := 1, 1
	if len(lhs) == 1 {
		lhsStride = 0
	}
	if len(rhs) == 1 {
		rhsStride = 0
	}
	for ii := range output {
		output[ii] = fn(lhs[ii*lhsStride], rhs[ii*rhsStride])
	}
}

// reduceKernel folds input into the accumulator seeded with seed.
func reduceKernel[T number](input []T, seed T, fn func(a, b T) T) T {
	acc := seed
	for _, x := range input {
		acc = fn(acc, x)
	}
	return acc
}

func maxOf[T number](a, b T) T { return max(a, b) }

func minOf[T number](a, b T) T { return min(a, b) }

// slotHasNaN returns whether a floating-point slot holds any NaN.
func slotHasNaN(dtype dtypes.DType, slot []byte) bool {
	switch dtype {
	case dtypes.Float32:
		return hasNaN(slotAs[float32](slot))
	case dtypes.Float64:
		return hasNaN(slotAs[float64](slot))
	}
	return false
}

func hasNaN[T float32 | float64](values []T) bool {
	for _, v := range values {
		if v != v {
			return true
		}
	}
	return false
}
