package paste

import (
	"errors"
	"fmt"
)

// Region errors.
var (
	// ErrSourceIndex is returned when a region names a source sample
	// outside the batch.
	ErrSourceIndex = errors.New("paste: source sample index out of range")

	// ErrRegionBounds is returned when a region's input or output window
	// does not fit inside the respective tensor.
	ErrRegionBounds = errors.New("paste: region window out of bounds")
)

// Region describes one paste operation: a rectangular window of a source
// sample copied to an anchor in the destination canvas. The output window
// spans [OutAnchor, OutAnchor+Shape). Regions of a sample apply in order;
// later regions overwrite earlier ones where their output windows overlap.
//
// Coordinates are (y, x) spatial pairs; channels are copied whole.
type Region struct {
	// Source is the index of the source sample to read from.
	Source int

	// InAnchor is the top-left corner of the selection in the source.
	// The zero value selects from the source origin.
	InAnchor [2]int64

	// Shape is the spatial extent of the selection. A zero extent on an
	// axis selects the remainder of the source past InAnchor.
	Shape [2]int64

	// OutAnchor is the top-left corner of the paste in the destination.
	// The zero value pastes at the canvas origin.
	OutAnchor [2]int64
}

// OutEnd returns the exclusive end of the output window on axis i.
func (r Region) OutEnd(i int) int64 {
	return r.OutAnchor[i] + r.Shape[i]
}

// NumElements returns the output element count of the region for the
// given channel count. Used as scheduling weight.
func (r Region) NumElements(channels int64) int64 {
	return r.Shape[0] * r.Shape[1] * channels
}

// Overlaps reports whether the output windows of r and o intersect.
func (r Region) Overlaps(o Region) bool {
	for i := 0; i < 2; i++ {
		if r.OutEnd(i) <= o.OutAnchor[i] || o.OutEnd(i) <= r.OutAnchor[i] {
			return false
		}
		if r.Shape[i] == 0 || o.Shape[i] == 0 {
			return false
		}
	}
	return true
}

// anyOverlap reports whether any two regions' output windows intersect.
// Quadratic; region lists per sample are short.
func anyOverlap(regions []Region) bool {
	for i := 0; i < len(regions); i++ {
		for j := i + 1; j < len(regions); j++ {
			if regions[i].Overlaps(regions[j]) {
				return true
			}
		}
	}
	return false
}

// resolveRegion fills a region's defaulted fields against its source shape:
// a zero Shape axis extends to the source's remaining extent past InAnchor.
func resolveRegion(r Region, srcH, srcW int64) Region {
	if r.Shape[0] == 0 {
		r.Shape[0] = srcH - r.InAnchor[0]
	}
	if r.Shape[1] == 0 {
		r.Shape[1] = srcW - r.InAnchor[1]
	}
	return r
}

// validateRegion checks that a resolved region's windows lie inside the
// source and the destination canvas.
func validateRegion(r Region, srcH, srcW, dstH, dstW int64) error {
	for i, ext := range [2]int64{srcH, srcW} {
		if r.Shape[i] < 0 {
			return fmt.Errorf("%w: negative shape %d on axis %d", ErrRegionBounds, r.Shape[i], i)
		}
		if r.InAnchor[i] < 0 || r.InAnchor[i]+r.Shape[i] > ext {
			return fmt.Errorf("%w: input window [%d, %d) on axis %d, source extent %d",
				ErrRegionBounds, r.InAnchor[i], r.InAnchor[i]+r.Shape[i], i, ext)
		}
	}
	for i, ext := range [2]int64{dstH, dstW} {
		if r.OutAnchor[i] < 0 || r.OutEnd(i) > ext {
			return fmt.Errorf("%w: output window [%d, %d) on axis %d, canvas extent %d",
				ErrRegionBounds, r.OutAnchor[i], r.OutEnd(i), i, ext)
		}
	}
	return nil
}
