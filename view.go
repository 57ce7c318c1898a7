package paste

import (
	"errors"
	"fmt"
)

// Common errors for tensor view operations.
var (
	// ErrInvalidShape is returned when a dimension is negative or zero
	// where a positive extent is required.
	ErrInvalidShape = errors.New("paste: invalid tensor shape")

	// ErrInvalidType is returned when the element type is not recognized.
	ErrInvalidType = errors.New("paste: invalid element type")

	// ErrDataTooSmall is returned when provided data is smaller than the
	// shape requires.
	ErrDataTooSmall = errors.New("paste: data buffer too small")
)

// View is a contiguous row-major HWC tensor view over raw bytes.
//
// A View does not own its data; the caller must keep Data valid for the
// lifetime of the view. Views are safe for concurrent reads. Concurrent
// writers must target disjoint byte ranges.
type View struct {
	// Type is the element storage type.
	Type ElementType

	// Height, Width, Channels are the axis extents.
	Height, Width, Channels int64

	// Data holds Height*Width*Channels elements of Type, row-major,
	// channels innermost.
	Data []byte
}

// NewView allocates a zero-filled view with the given shape and type.
func NewView(typ ElementType, height, width, channels int64) (View, error) {
	if !typ.IsValid() {
		return View{}, ErrInvalidType
	}
	if height <= 0 || width <= 0 || channels <= 0 {
		return View{}, fmt.Errorf("%w: (%d, %d, %d)", ErrInvalidShape, height, width, channels)
	}
	n := height * width * channels * int64(typ.Size())
	return View{
		Type:     typ,
		Height:   height,
		Width:    width,
		Channels: channels,
		Data:     make([]byte, n),
	}, nil
}

// ViewOf wraps existing data without copying. The data must hold at least
// Height*Width*Channels elements of the given type.
func ViewOf(data []byte, typ ElementType, height, width, channels int64) (View, error) {
	if !typ.IsValid() {
		return View{}, ErrInvalidType
	}
	if height <= 0 || width <= 0 || channels <= 0 {
		return View{}, fmt.Errorf("%w: (%d, %d, %d)", ErrInvalidShape, height, width, channels)
	}
	n := height * width * channels * int64(typ.Size())
	if int64(len(data)) < n {
		return View{}, fmt.Errorf("%w: have %d bytes, need %d", ErrDataTooSmall, len(data), n)
	}
	return View{
		Type:     typ,
		Height:   height,
		Width:    width,
		Channels: channels,
		Data:     data[:n],
	}, nil
}

// NumElements returns the total element count.
func (v View) NumElements() int64 {
	return v.Height * v.Width * v.Channels
}

// ByteSize returns the total data size in bytes.
func (v View) ByteSize() int64 {
	return v.NumElements() * int64(v.Type.Size())
}

// Shape returns the axis extents as (height, width, channels).
func (v View) Shape() (int64, int64, int64) {
	return v.Height, v.Width, v.Channels
}

// ElemOffset returns the byte offset of element (y, x, 0).
func (v View) ElemOffset(y, x int64) int64 {
	return (y*v.Width + x) * v.Channels * int64(v.Type.Size())
}

// Row returns the bytes of the row at y, spanning Width*Channels elements.
// Returns nil if y is out of bounds.
func (v View) Row(y int64) []byte {
	if y < 0 || y >= v.Height {
		return nil
	}
	rowBytes := v.Width * v.Channels * int64(v.Type.Size())
	start := y * rowBytes
	return v.Data[start : start+rowBytes]
}

// Zero fills the view with the zero element of its type.
// All supported types encode zero as all-zero bytes.
func (v View) Zero() {
	clear(v.Data)
}
