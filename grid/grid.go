// Package grid partitions a paste canvas into rectangular cells with a
// single contributing region each.
//
// The cut lines of the partition are the canvas borders plus the output
// window borders of every region, so each resulting cell is covered by a
// fixed set of regions. Scanning that set in reverse paint order yields
// the visible contributor per cell, which lets an executor process cells
// independently with no write ordering between them.
package grid

import (
	"slices"

	"github.com/gogpu/paste"
)

// Background marks a cell no region covers. Its pixels take the zero
// value of the output type.
const Background = -1

// Cell is one rectangle of the canvas partition. Start and End are
// half-open canvas coordinates in (y, x) order. Source indexes the
// contributing region's source view, or Background. InAnchor is the
// source coordinate pasted at Start.
type Cell struct {
	Start, End [2]int64
	Source     int
	InAnchor   [2]int64
}

// NumElements returns the cell's area scaled by the channel count.
func (c Cell) NumElements(channels int64) int64 {
	return (c.End[0] - c.Start[0]) * (c.End[1] - c.Start[1]) * channels
}

// Sample describes one sample's slice of a Batch's cell arena together
// with its cut-line structure.
type Sample struct {
	// CellStart indexes the sample's first cell in Batch.Cells.
	CellStart int

	// Rows and Cols count the cut-line intervals per axis. The sample
	// owns Rows*Cols consecutive cells, in row-major order.
	Rows, Cols int

	// YCuts and XCuts are the sorted cut coordinates, including the
	// canvas borders. len(YCuts) == Rows+1, len(XCuts) == Cols+1.
	YCuts, XCuts []int64
}

// Cells returns the sample's cells from the batch arena.
func (s Sample) Cells(b *Batch) []Cell {
	return b.Cells[s.CellStart : s.CellStart+s.Rows*s.Cols]
}

// Batch is a reusable arena of grid cells for a batch of samples.
// Reset keeps the backing storage so steady-state planning does not
// allocate.
type Batch struct {
	Cells   []Cell
	Samples []Sample

	yCuts, xCuts []int64
}

// Reset drops the batch's contents, keeping capacity.
func (b *Batch) Reset() {
	b.Cells = b.Cells[:0]
	b.Samples = b.Samples[:0]
}

// Plan builds the cell partition for one sample and appends it to the
// batch. The canvas is height rows by width columns; regions are in
// paint order, first to last.
func (b *Batch) Plan(height, width int64, regions []paste.Region) Sample {
	b.yCuts = cutLines(b.yCuts[:0], height, regions, 0)
	b.xCuts = cutLines(b.xCuts[:0], width, regions, 1)

	s := Sample{
		CellStart: len(b.Cells),
		Rows:      len(b.yCuts) - 1,
		Cols:      len(b.xCuts) - 1,
		YCuts:     slices.Clone(b.yCuts),
		XCuts:     slices.Clone(b.xCuts),
	}
	for yi := 0; yi < s.Rows; yi++ {
		y0, y1 := b.yCuts[yi], b.yCuts[yi+1]
		for xi := 0; xi < s.Cols; xi++ {
			x0, x1 := b.xCuts[xi], b.xCuts[xi+1]
			b.Cells = append(b.Cells, contributor(y0, y1, x0, x1, regions))
		}
	}
	b.Samples = append(b.Samples, s)
	return s
}

// PlanBatch plans every sample of a batch after resetting the arena.
// Canvas sizes are (height, width) pairs, one per sample.
func (b *Batch) PlanBatch(sizes [][2]int64, regions [][]paste.Region) {
	b.Reset()
	for i, sz := range sizes {
		b.Plan(sz[0], sz[1], regions[i])
	}
}

// cutLines collects the sorted unique cut coordinates along one axis:
// the canvas borders plus each region's output window borders. Regions
// are validated against the canvas before planning.
func cutLines(dst []int64, extent int64, regions []paste.Region, axis int) []int64 {
	dst = append(dst, 0, extent)
	for _, r := range regions {
		if r.Shape[axis] == 0 {
			continue
		}
		dst = append(dst, r.OutAnchor[axis], r.OutEnd(axis))
	}
	slices.Sort(dst)
	return slices.Compact(dst)
}

// contributor scans regions in reverse paint order for the last region
// covering the cell. Cell borders are cut lines, so a region either
// covers the whole cell or none of it; testing one corner suffices.
func contributor(y0, y1, x0, x1 int64, regions []paste.Region) Cell {
	c := Cell{Start: [2]int64{y0, x0}, End: [2]int64{y1, x1}, Source: Background}
	for i := len(regions) - 1; i >= 0; i-- {
		r := regions[i]
		if y0 >= r.OutAnchor[0] && y0 < r.OutEnd(0) &&
			x0 >= r.OutAnchor[1] && x0 < r.OutEnd(1) {
			c.Source = r.Source
			c.InAnchor = [2]int64{
				r.InAnchor[0] + (y0 - r.OutAnchor[0]),
				r.InAnchor[1] + (x0 - r.OutAnchor[1]),
			}
			break
		}
	}
	return c
}
