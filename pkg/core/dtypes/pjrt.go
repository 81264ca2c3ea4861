package dtypes

import (
	pjrtdtypes "github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// pjrtEquivalents lists the dtypes shared with github.com/gomlx/gopjrt/dtypes.
var pjrtEquivalents = map[DType]pjrtdtypes.DType{
	Bool:       pjrtdtypes.Bool,
	Int8:       pjrtdtypes.Int8,
	Int16:      pjrtdtypes.Int16,
	Int32:      pjrtdtypes.Int32,
	Int64:      pjrtdtypes.Int64,
	Uint8:      pjrtdtypes.Uint8,
	Uint16:     pjrtdtypes.Uint16,
	Uint32:     pjrtdtypes.Uint32,
	Uint64:     pjrtdtypes.Uint64,
	Float16:    pjrtdtypes.Float16,
	Float32:    pjrtdtypes.Float32,
	Float64:    pjrtdtypes.Float64,
	BFloat16:   pjrtdtypes.BFloat16,
	Complex64:  pjrtdtypes.Complex64,
	Complex128: pjrtdtypes.Complex128,
}

var fromPJRT = make(map[pjrtdtypes.DType]DType, len(pjrtEquivalents))

func init() {
	for dtype, pjrtDType := range pjrtEquivalents {
		// Buffers built for PJRT carry the raw enum value, so both numberings must agree.
		if int32(dtype) != int32(pjrtDType) {
			panic(errors.Errorf("dtype %s is %d, but PJRT's %s is %d", dtype, int32(dtype), pjrtDType, int32(pjrtDType)))
		}
		fromPJRT[pjrtDType] = dtype
	}
}

// FromPJRT converts a github.com/gomlx/gopjrt/dtypes.DType. It returns InvalidDType for PJRT
// dtypes without an equivalent.
func FromPJRT(dtype pjrtdtypes.DType) DType {
	if d, found := fromPJRT[dtype]; found {
		return d
	}
	return InvalidDType
}

// ToPJRT returns the github.com/gomlx/gopjrt/dtypes.DType equivalent to dtype, and whether there
// is one.
func ToPJRT(dtype DType) (pjrtdtypes.DType, bool) {
	pjrtDType, found := pjrtEquivalents[dtype]
	return pjrtDType, found
}
