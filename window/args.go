package window

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Argument errors.
var (
	// ErrArgType is returned for an unsupported argument element type.
	ErrArgType = errors.New("window: unsupported argument element type")

	// ErrAxisCount is returned when argument lengths disagree with each
	// other or with the addressed axis count.
	ErrAxisCount = errors.New("window: argument length does not match axis count")
)

// ArgType identifies the element type of a positional argument tensor.
type ArgType uint8

const (
	argInvalid ArgType = iota

	// ArgInt32 holds 32-bit signed integers.
	ArgInt32

	// ArgInt64 holds 64-bit signed integers.
	ArgInt64

	// ArgFloat32 holds IEEE 754 single precision values.
	ArgFloat32
)

// String returns a string representation of the argument type.
func (t ArgType) String() string {
	switch t {
	case ArgInt32:
		return "Int32"
	case ArgInt64:
		return "Int64"
	case ArgFloat32:
		return "Float32"
	default:
		return "Invalid"
	}
}

// IsFloat returns true for floating-point argument types. Normalization
// flags apply only to floating-point tensors.
func (t ArgType) IsFloat() bool {
	return t == ArgFloat32
}

func (t ArgType) size() int {
	switch t {
	case ArgInt32, ArgFloat32:
		return 4
	case ArgInt64:
		return 8
	default:
		return 0
	}
}

// ArgTensor is a raw 1D per-sample argument tensor for positional
// addressing, one element per addressed axis.
type ArgTensor struct {
	Type ArgType
	Data []byte
}

// Int32Tensor builds an ArgTensor from int32 values.
func Int32Tensor(vals ...int32) ArgTensor {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
	}
	return ArgTensor{Type: ArgInt32, Data: data}
}

// Int64Tensor builds an ArgTensor from int64 values.
func Int64Tensor(vals ...int64) ArgTensor {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
	}
	return ArgTensor{Type: ArgInt64, Data: data}
}

// Float32Tensor builds an ArgTensor from float32 values.
func Float32Tensor(vals ...float32) ArgTensor {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return ArgTensor{Type: ArgFloat32, Data: data}
}

// Len returns the element count.
func (t ArgTensor) Len() int {
	s := t.Type.size()
	if s == 0 {
		return 0
	}
	return len(t.Data) / s
}

// values decodes the tensor into float64 working values.
func (t ArgTensor) values() ([]float64, error) {
	switch t.Type {
	case ArgInt32:
		out := make([]float64, len(t.Data)/4)
		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(t.Data[i*4:])))
		}
		return out, nil
	case ArgInt64:
		out := make([]float64, len(t.Data)/8)
		for i := range out {
			out[i] = float64(int64(binary.LittleEndian.Uint64(t.Data[i*8:])))
		}
		return out, nil
	case ArgFloat32:
		out := make([]float64, len(t.Data)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(t.Data[i*4:])))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrArgType, t.Type)
	}
}

// Args carries the named per-sample slice arguments. At most one of the
// start family and one of the extent family may be set per resolver;
// end-style and shape-style extents are mutually exclusive.
type Args struct {
	// Start is the absolute start coordinate per addressed axis.
	Start []int64

	// RelStart is the start as a fraction of the axis extent.
	RelStart []float64

	// End is the absolute exclusive end coordinate per addressed axis.
	End []int64

	// RelEnd is the end as a fraction of the axis extent.
	RelEnd []float64

	// Shape is the absolute extent per addressed axis.
	Shape []int64

	// RelShape is the extent as a fraction of the axis extent.
	RelShape []float64
}

func (a Args) hasStart() bool { return a.Start != nil || a.RelStart != nil }
func (a Args) hasEnd() bool   { return a.End != nil || a.RelEnd != nil }
func (a Args) hasShape() bool { return a.Shape != nil || a.RelShape != nil }
func (a Args) hasAny() bool   { return a.hasStart() || a.hasEnd() || a.hasShape() }

func (a Args) hasRelative() bool {
	return a.RelStart != nil || a.RelEnd != nil || a.RelShape != nil
}
