package variant

// Kind tags the dynamic type of a Variant. It mirrors SECoP_V_type from the
// original SECoP variant library (SECoP-Variant.h): Null, Bool, Double, Int,
// Scaled, Enum, the five typed array kinds, String, Blob, Json, Struct,
// Tuple, the generic Array, and Command.
type Kind int

const (
	Null Kind = iota
	Bool
	Double
	Int
	Scaled
	Enum
	ArrayBool
	ArrayDouble
	ArrayInt
	ArrayScaled
	ArrayEnum
	String
	Blob
	Json
	Struct
	Tuple
	Array
	Command
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Double:
		return "double"
	case Int:
		return "int"
	case Scaled:
		return "scaled"
	case Enum:
		return "enum"
	case ArrayBool:
		return "array<bool>"
	case ArrayDouble:
		return "array<double>"
	case ArrayInt:
		return "array<int>"
	case ArrayScaled:
		return "array<scaled>"
	case ArrayEnum:
		return "array<enum>"
	case String:
		return "string"
	case Blob:
		return "blob"
	case Json:
		return "json"
	case Struct:
		return "struct"
	case Tuple:
		return "tuple"
	case Array:
		return "array"
	case Command:
		return "command"
	default:
		return "unknown"
	}
}

// isArray reports whether k is any of the array kinds (typed or generic).
func (k Kind) isArray() bool {
	switch k {
	case ArrayBool, ArrayDouble, ArrayInt, ArrayScaled, ArrayEnum, Array:
		return true
	default:
		return false
	}
}

// isByteArray reports whether k is one of the byte-array-backed kinds.
func (k Kind) isByteArray() bool {
	switch k {
	case String, Blob, Json:
		return true
	default:
		return false
	}
}

// arrayKindFor returns the Kind an array of elements of elemKind should
// carry: the typed ArrayX kind for scalar element kinds, else the generic
// Array kind.
func arrayKindFor(elemKind Kind) Kind {
	switch elemKind {
	case Bool:
		return ArrayBool
	case Double:
		return ArrayDouble
	case Int:
		return ArrayInt
	case Scaled:
		return ArrayScaled
	case Enum:
		return ArrayEnum
	default:
		return Array
	}
}

// CompareResult is the outcome of Variant.CompareValue.
type CompareResult int

const (
	Equal CompareResult = iota
	SimilarValue
	DiffValue
	DiffType
)

func (c CompareResult) String() string {
	switch c {
	case Equal:
		return "Equal"
	case SimilarValue:
		return "SimilarValue"
	case DiffValue:
		return "DiffValue"
	case DiffType:
		return "DiffType"
	default:
		return "DiffType"
	}
}
