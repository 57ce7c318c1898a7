package gpu

import "github.com/gogpu/paste"

// Blank-importing this package registers the grid-cell executor as the
// paste accelerator:
//
//	import _ "github.com/gogpu/paste/gpu"
//
// Registration initializes the executor; without a usable GPU it still
// accelerates via the host block-parallel kernel.
func init() {
	if err := paste.RegisterAccelerator(New(Options{})); err != nil {
		paste.Logger().Warn("grid-gpu: registration failed", "error", err)
	}
}
