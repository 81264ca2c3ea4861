package reference

import "strconv"

// OpType is an enum of the operations supported by the reference backend.
type OpType int

const (
	OpTypeInvalid OpType = iota
	OpTypeParameter
	OpTypeConstant
	OpTypeFill
	OpTypeAdd
	OpTypeSub
	OpTypeMul
	OpTypeMax
	OpTypeMin
	OpTypeScale
	OpTypeReduceMax
	OpTypeReduceMin
	OpTypeReduceSum

	// OpTypeLast should always be kept the last, it is used as a counter/marker for OpType.
	OpTypeLast
)

var opTypeNames = [OpTypeLast]string{
	"Invalid", "Parameter", "Constant", "Fill", "Add", "Sub", "Mul", "Max", "Min", "Scale",
	"ReduceMax", "ReduceMin", "ReduceSum",
}

// String implements fmt.Stringer.
func (op OpType) String() string {
	if op >= 0 && op < OpTypeLast {
		return opTypeNames[op]
	}
	return "OpType(" + strconv.Itoa(int(op)) + ")"
}

// IsBinary returns whether op is an element-wise binary operation.
func (op OpType) IsBinary() bool {
	switch op {
	case OpTypeAdd, OpTypeSub, OpTypeMul, OpTypeMax, OpTypeMin:
		return true
	}
	return false
}

// IsReduce returns whether op reduces all elements of its operand to a scalar.
func (op OpType) IsReduce() bool {
	return op == OpTypeReduceMax || op == OpTypeReduceMin || op == OpTypeReduceSum
}
