package gpu

import "github.com/gogpu/paste"

// Serialized cell size on the device. Matches the Cell struct in
// paste.wgsl.
const gpuCellBytes = 32

// Requirements bounds the device memory one sample's dispatch needs.
type Requirements struct {
	CellBytes   uint64
	SourceBytes uint64
	OutputBytes uint64
}

// Total sums all requirement components. The staging buffer doubles
// the output share.
func (r Requirements) Total() uint64 {
	return r.CellBytes + r.SourceBytes + 2*r.OutputBytes
}

// EstimateScratch bounds the device memory needed to dispatch one
// sample before planning it. Each region adds at most two cut lines
// per axis, so a plan for n regions has at most (2n+1)^2 cells.
func EstimateScratch(height, width, channels int64, sources []paste.View, regions []paste.Region) Requirements {
	n := uint64(len(regions))
	cells := (2*n + 1) * (2*n + 1)

	var srcBytes uint64
	for _, s := range sources {
		srcBytes += uint64(s.ByteSize())
	}
	return Requirements{
		CellBytes:   cells * gpuCellBytes,
		SourceBytes: srcBytes,
		OutputBytes: uint64(height * width * channels * int64(paste.Float32.Size())),
	}
}
