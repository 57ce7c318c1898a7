// Package gpu executes paste plans with a grid-cell lookup kernel.
//
// Each output element looks up its grid cell and reads the contributing
// source directly, so cells are processed with no write ordering between
// them. The x axis of the canvas is flattened over channels: a canvas of
// width W with C channels has W*C kernel columns, which makes every cell
// a dense run of elements and keeps the inner loops branch-free. The same
// kernel runs on the host worker pool or, for float32 canvases, as a
// wgpu compute dispatch.
package gpu

import (
	"math"

	"github.com/gogpu/paste"
	"github.com/gogpu/paste/grid"
)

// cellDesc is the channel-flattened form of a grid cell. All x
// coordinates are element columns, already scaled by the canvas channel
// count. InPitch is the source row stride in elements.
type cellDesc struct {
	StartY, EndY         int64
	StartX, EndX         int64
	InAnchorY, InAnchorX int64
	InPitch              int64
	Source               int32
}

// sampleDesc is one sample's executable plan: its flattened cells in
// row-major order plus the flattened canvas extents.
type sampleDesc struct {
	cells      []cellDesc
	rows, cols int
	height     int64
	widthFlat  int64
}

// buildSample flattens a planned sample's cells over the canvas channel
// count.
func buildSample(s grid.Sample, b *grid.Batch, sources []paste.View, channels int64) sampleDesc {
	d := sampleDesc{
		cells:     make([]cellDesc, 0, s.Rows*s.Cols),
		rows:      s.Rows,
		cols:      s.Cols,
		height:    s.YCuts[s.Rows],
		widthFlat: s.XCuts[s.Cols] * channels,
	}
	for _, c := range s.Cells(b) {
		cd := cellDesc{
			StartY: c.Start[0],
			EndY:   c.End[0],
			StartX: c.Start[1] * channels,
			EndX:   c.End[1] * channels,
			Source: int32(c.Source),
		}
		if c.Source != grid.Background {
			src := sources[c.Source]
			cd.InAnchorY = c.InAnchor[0]
			cd.InAnchorX = c.InAnchor[1] * channels
			cd.InPitch = src.Width * src.Channels
		}
		d.cells = append(d.cells, cd)
	}
	return d
}

// fitsDevice reports whether a sample's extents and pooled source offsets
// fit the 32-bit coordinate space of the compute kernel. Oversized samples
// run on the host kernel instead.
func fitsDevice(src []paste.View, d sampleDesc) bool {
	if d.widthFlat > math.MaxUint32 || d.height > math.MaxUint32 {
		return false
	}
	var total int64
	for _, s := range src {
		total += s.NumElements()
		if total > math.MaxUint32 {
			return false
		}
	}
	return true
}
