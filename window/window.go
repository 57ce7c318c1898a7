// Package window resolves flexible, mutually exclusive addressing schemes
// (absolute/relative, normalized/unnormalized, named/positional axes) into
// concrete axis-aligned windows over multidimensional arrays.
//
// A [Resolver] is configured once per operator from a [Spec]; each sample's
// arguments produce a [Generator], which is evaluated against that sample's
// full shape and axis layout to yield a validated [Window]. Windows feed
// both the paste engine and the cropping operator.
package window

// Window is an axis-aligned region of a multidimensional array, described
// by an anchor and a non-negative extent per axis.
//
// Anchors may be negative (callers clamp when they need physical offsets),
// but Shape[i] >= 0 always holds for a resolved window, and Anchor[i] +
// Shape[i] is representable in int64.
type Window struct {
	Anchor []int64
	Shape  []int64
}

// End returns the exclusive end coordinate on axis i.
func (w Window) End(i int) int64 {
	return w.Anchor[i] + w.Shape[i]
}

// Rank returns the number of axes.
func (w Window) Rank() int {
	return len(w.Anchor)
}

// fullWindow returns a window spanning the whole array.
func fullWindow(full []int64) Window {
	w := Window{
		Anchor: make([]int64, len(full)),
		Shape:  make([]int64, len(full)),
	}
	copy(w.Shape, full)
	return w
}
