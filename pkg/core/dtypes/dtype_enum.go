package dtypes

// DType is an enum represents the data type of a buffer or a scalar.
//
// The values are kept aligned with the PJRT C API buffer types (see FromPJRT), so backends built
// on top of PJRT can pass them through without a translation table.
type DType int32

const (
	// InvalidDType is the zero value, and it is never a valid data type.
	InvalidDType DType = 0

	// Bool are two-state booleans (PRED in XLA).
	Bool DType = 1

	// Int8 and the following are signed integral values of fixed width.
	Int8  DType = 2
	Int16 DType = 3
	Int32 DType = 4
	Int64 DType = 5

	// Uint8 and the following are unsigned integral values of fixed width.
	Uint8  DType = 6
	Uint16 DType = 7
	Uint32 DType = 8
	Uint64 DType = 9

	// Float16 is the IEEE 754 half-precision float.
	Float16 DType = 10
	Float32 DType = 11
	Float64 DType = 12

	// BFloat16 is the truncated 16 bit floating-point format: 1 bit for the sign, 8 bits for the exponent
	// and 7 bits for the mantissa.
	BFloat16 DType = 13

	// Complex64 is a pair of Float32 (real, imag).
	Complex64 DType = 14

	// Complex128 is a pair of Float64 (real, imag).
	Complex128 DType = 15

	// Truncated 8 bit floating-point formats.
	F8E5M2        DType = 16
	F8E4M3FN      DType = 17
	F8E4M3B11FNUZ DType = 18
	F8E5M2FNUZ    DType = 19
	F8E4M3FNUZ    DType = 20

	// S4 and U4 are 4-bit integer types.
	S4 DType = 21
	U4 DType = 22

	// TOKEN is used by XLA to sequence side effects, it holds no data.
	TOKEN DType = 23

	// S2 and U2 are 2-bit integer types.
	S2 DType = 24
	U2 DType = 25
)

// Aliases from the PJRT C API.
const (
	INVALID = InvalidDType
	PRED    = Bool
	S8      = Int8
	S16     = Int16
	S32     = Int32
	S64     = Int64
	U8      = Uint8
	U16     = Uint16
	U32     = Uint32
	U64     = Uint64
	F16     = Float16
	F32     = Float32
	F64     = Float64
	BF16    = BFloat16
	C64     = Complex64
	C128    = Complex128
)

// names is indexed by DType, and it is used by DType.String.
var names = [...]string{
	InvalidDType:  "InvalidDType",
	Bool:          "Bool",
	Int8:          "Int8",
	Int16:         "Int16",
	Int32:         "Int32",
	Int64:         "Int64",
	Uint8:         "Uint8",
	Uint16:        "Uint16",
	Uint32:        "Uint32",
	Uint64:        "Uint64",
	Float16:       "Float16",
	Float32:       "Float32",
	Float64:       "Float64",
	BFloat16:      "BFloat16",
	Complex64:     "Complex64",
	Complex128:    "Complex128",
	F8E5M2:        "F8E5M2",
	F8E4M3FN:      "F8E4M3FN",
	F8E4M3B11FNUZ: "F8E4M3B11FNUZ",
	F8E5M2FNUZ:    "F8E5M2FNUZ",
	F8E4M3FNUZ:    "F8E4M3FNUZ",
	S4:            "S4",
	U4:            "U4",
	TOKEN:         "TOKEN",
	S2:            "S2",
	U2:            "U2",
}

// MapOfNames to their dtypes. It includes also aliases to the various dtypes.
// It is also later initialized to include the lower-case version of the names.
var MapOfNames = map[string]DType{
	"InvalidDType": InvalidDType,
	"INVALID":      InvalidDType,
	"Bool":         Bool,
	"PRED":         Bool,
	"Int8":         Int8,
	"S8":           Int8,
	"Int16":        Int16,
	"S16":          Int16,
	"Int32":        Int32,
	"S32":          Int32,
	"Int64":        Int64,
	"S64":          Int64,
	"Uint8":        Uint8,
	"U8":           Uint8,
	"Uint16":       Uint16,
	"U16":          Uint16,
	"Uint32":       Uint32,
	"U32":          Uint32,
	"Uint64":       Uint64,
	"U64":          Uint64,
	"Float16":      Float16,
	"F16":          Float16,
	"Float32":      Float32,
	"F32":          Float32,
	"Float64":      Float64,
	"F64":          Float64,
	"BFloat16":     BFloat16,
	"BF16":         BFloat16,
	"Complex64":    Complex64,
	"C64":          Complex64,
	"Complex128":   Complex128,
	"C128":         Complex128,
	"S4":           S4,
	"U4":           U4,
	"S2":           S2,
	"U2":           U2,
}
