package paste

import (
	"encoding/binary"
	"math"
)

// RowConverter copies n elements from src to dst, converting between the
// element types the converter was built for. Out-of-range values saturate
// to the destination type's representable bounds; float-to-integer
// conversion rounds to nearest.
type RowConverter func(dst, src []byte, n int)

// loadFunc reads one element from the head of b.
type loadFunc func(b []byte) float64

// storeFunc writes one saturated element to the head of b.
type storeFunc func(b []byte, v float64)

var loadTable = [typeCount]loadFunc{
	Uint8: func(b []byte) float64 { return float64(b[0]) },
	Int16: func(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) },
	Int32: func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) },
	Float32: func(b []byte) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	},
}

var storeTable = [typeCount]storeFunc{
	Uint8: func(b []byte, v float64) {
		b[0] = uint8(math.Round(clamp(v, 0, 255)))
	},
	Int16: func(b []byte, v float64) {
		binary.LittleEndian.PutUint16(b, uint16(int16(math.Round(clamp(v, -32768, 32767)))))
	},
	Int32: func(b []byte, v float64) {
		binary.LittleEndian.PutUint32(b, uint32(int32(math.Round(clamp(v, -2147483648, 2147483647)))))
	},
	Float32: func(b []byte, v float64) {
		f := clamp(v, -math.MaxFloat32, math.MaxFloat32)
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
	},
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// convTable holds one converter per (destination, source) type pair.
// Built once at init; element-wise code never branches on types again.
var convTable [typeCount][typeCount]RowConverter

func init() {
	for out := Uint8; out < typeCount; out++ {
		for in := Uint8; in < typeCount; in++ {
			convTable[out][in] = makeRowConverter(out, in)
		}
	}
}

func makeRowConverter(out, in ElementType) RowConverter {
	if out == in {
		size := out.Size()
		return func(dst, src []byte, n int) {
			copy(dst[:n*size], src[:n*size])
		}
	}
	ld, inSize := loadTable[in], in.Size()
	st, outSize := storeTable[out], out.Size()
	return func(dst, src []byte, n int) {
		for i := 0; i < n; i++ {
			st(dst[i*outSize:], ld(src[i*inSize:]))
		}
	}
}

// Converter returns the saturating row converter for the given destination
// and source element types. Returns nil if either type is invalid.
func Converter(out, in ElementType) RowConverter {
	if !out.IsValid() || !in.IsValid() {
		return nil
	}
	return convTable[out][in]
}

// ConvertScalar converts a single value with saturation, returning the
// destination-typed result as a float64. Used by tests and diagnostics;
// bulk copies go through [Converter].
func ConvertScalar(out ElementType, v float64) float64 {
	if !out.IsValid() {
		return 0
	}
	var buf [8]byte
	storeTable[out](buf[:], v)
	return loadTable[out](buf[:])
}
