// Package paste composites rectangular regions of source tensors into
// destination tensors, with many independent paste operations per output
// sample and last-write-wins semantics in overlap regions.
//
// # Overview
//
// Sources and destinations are contiguous HWC tensor views over raw bytes
// (see [View]). Each output sample carries an ordered list of [Region]
// descriptors; later regions overwrite earlier ones where their output
// windows overlap, and elements covered by no region are zero.
//
//	op := paste.New(paste.Options{})
//	defer op.Close()
//
//	descs, err := op.Setup(sources, regions, outputSize)
//	// ... allocate destinations from descs ...
//	err = op.Run(dst, sources)
//
// The host execution path replays paste regions through a worker pool,
// running the regions of a sample concurrently when their output windows
// are pairwise disjoint and sequentially when any two overlap. An optional
// accelerator (see the gpu sub-package) instead partitions each output
// canvas into grid cells and resolves every output element with a
// block-parallel lookup; both paths produce bit-identical results.
//
// Element types may differ between source and destination; values are
// converted with saturation (out-of-range values clamp to the destination
// type's representable bounds).
//
// Crop window resolution for flexible addressing schemes lives in the
// window sub-package.
package paste
