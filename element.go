package paste

// ElementType identifies the numeric storage type of tensor elements.
type ElementType uint8

const (
	// TypeInvalid is the zero value. In [Options.OutputType] it selects
	// the input element type.
	TypeInvalid ElementType = iota

	// Uint8 is 8-bit unsigned (1 byte per element).
	Uint8

	// Int16 is 16-bit signed (2 bytes per element).
	Int16

	// Int32 is 32-bit signed (4 bytes per element).
	Int32

	// Float32 is IEEE 754 single precision (4 bytes per element).
	Float32

	// typeCount is the number of element types (for internal use).
	typeCount
)

// ElementInfo contains metadata about an element type.
type ElementInfo struct {
	// Size is the number of bytes per element.
	Size int

	// IsFloat indicates a floating-point type.
	IsFloat bool

	// Min and Max are the representable bounds, used for saturating
	// conversion. For floating-point types they are the finite range.
	Min, Max float64
}

// elementInfoTable contains metadata for each element type.
var elementInfoTable = [typeCount]ElementInfo{
	Uint8:   {Size: 1, Min: 0, Max: 255},
	Int16:   {Size: 2, Min: -32768, Max: 32767},
	Int32:   {Size: 4, Min: -2147483648, Max: 2147483647},
	Float32: {Size: 4, IsFloat: true, Min: -3.4028234663852886e38, Max: 3.4028234663852886e38},
}

// Info returns the ElementInfo for this type.
func (t ElementType) Info() ElementInfo {
	if !t.IsValid() {
		return ElementInfo{}
	}
	return elementInfoTable[t]
}

// Size returns the number of bytes per element.
func (t ElementType) Size() int {
	return t.Info().Size
}

// IsFloat returns true for floating-point types.
func (t ElementType) IsFloat() bool {
	return t.Info().IsFloat
}

// IsValid returns true if the type is a known element type.
func (t ElementType) IsValid() bool {
	return t > TypeInvalid && t < typeCount
}

// String returns a string representation of the element type.
func (t ElementType) String() string {
	switch t {
	case Uint8:
		return "Uint8"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Float32:
		return "Float32"
	default:
		return "Invalid"
	}
}
