package gpu

import "github.com/gogpu/paste"

// Block extents over the flattened canvas. Rows are short and columns
// long so a block's inner loop covers whole cell runs.
const (
	blockRows = 64
	blockCols = 4096
)

// block is one rectangular piece of the flattened canvas, in element
// coordinates.
type block struct {
	y0, y1, x0, x1 int64
}

// splitBlocks partitions a sample's flattened canvas into blocks.
func splitBlocks(d sampleDesc) []block {
	var blocks []block
	for y := int64(0); y < d.height; y += blockRows {
		y1 := min(y+blockRows, d.height)
		for x := int64(0); x < d.widthFlat; x += blockCols {
			blocks = append(blocks, block{y0: y, y1: y1, x0: x, x1: min(x+blockCols, d.widthFlat)})
		}
	}
	return blocks
}

// runBlock paints one block of the output. Rows and columns are visited
// in ascending order, so both cell cursors only ever move forward: the
// row cursor steps at most once per row, and the column cursor restarts
// at the block's first column, which is the same cell column for every
// row of the grid.
func runBlock(dst paste.View, sources []paste.View, d sampleDesc, b block, conv paste.RowConverter) {
	outSize := int64(dst.Type.Size())

	startCol := 0
	for d.cells[startCol].EndX <= b.x0 {
		startCol++
	}
	row := 0
	for d.cells[row*d.cols].EndY <= b.y0 {
		row++
	}

	for y := b.y0; y < b.y1; y++ {
		if d.cells[row*d.cols].EndY <= y {
			row++
		}
		col := startCol
		dstRow := y * d.widthFlat

		for x := b.x0; x < b.x1; {
			c := &d.cells[row*d.cols+col]
			runEnd := min(b.x1, c.EndX)
			n := runEnd - x
			dstOff := (dstRow + x) * outSize

			if c.Source < 0 {
				clear(dst.Data[dstOff : dstOff+n*outSize])
			} else {
				src := sources[c.Source]
				inSize := int64(src.Type.Size())
				srcOff := ((c.InAnchorY+(y-c.StartY))*c.InPitch + c.InAnchorX + (x - c.StartX)) * inSize
				conv(dst.Data[dstOff:], src.Data[srcOff:], int(n))
			}
			x = runEnd
			col++
		}
	}
}
