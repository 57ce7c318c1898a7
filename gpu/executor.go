package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/paste"
	"github.com/gogpu/paste/grid"
	"github.com/gogpu/paste/internal/parallel"
)

// Options configures an Executor.
type Options struct {
	// Workers sets the host worker pool size. Zero means GOMAXPROCS.
	Workers int

	// DisableDevice skips device initialization and forces the host
	// kernel even for float32 canvases.
	DisableDevice bool
}

// Executor pastes batches with the grid-cell lookup kernel. It
// implements paste.Accelerator.
//
// Init tries to open a GPU device; when none is available the executor
// still works, running the same kernel block-parallel on the host pool.
// Device dispatch is used only for float32 source and output, the
// shader's storage type; other element types always take the host
// kernel.
type Executor struct {
	mu   sync.Mutex
	log  *slog.Logger
	pool *parallel.Pool
	dev  *device

	batch         grid.Batch
	workers       int
	disableDevice bool
}

var _ paste.Accelerator = (*Executor)(nil)

// New creates an executor. Call Init before use, or register it with
// paste.RegisterAccelerator, which does.
func New(opts Options) *Executor {
	return &Executor{
		log:           paste.Logger(),
		workers:       opts.Workers,
		disableDevice: opts.DisableDevice,
	}
}

func (e *Executor) Name() string { return "grid-gpu" }

// SetLogger replaces the executor's logger.
func (e *Executor) SetLogger(l *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l != nil {
		e.log = l
	}
}

// Init starts the worker pool and attempts device initialization.
// Device failure is not an error; the executor falls back to the host
// kernel and logs the cause.
func (e *Executor) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		e.pool = parallel.New(e.workers)
	}
	if e.disableDevice || e.dev != nil {
		return nil
	}
	dev, err := newDevice()
	if err != nil {
		e.log.Info("grid-gpu: no device, using host kernel", "reason", err)
		return nil
	}
	e.dev = dev
	e.log.Info("grid-gpu: device initialized", "adapter", dev.adapterName)
	return nil
}

// Close releases the device and stops the worker pool.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dev != nil {
		e.dev.close()
		e.dev = nil
	}
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
}

// Paste composites each sample's regions into its destination view.
// Destinations must be sized by the caller; every element is written,
// uncovered areas with zeros.
func (e *Executor) Paste(dst, src []paste.View, regions [][]paste.Region) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return paste.ErrFallbackToCPU
	}
	if len(dst) != len(regions) {
		return fmt.Errorf("grid-gpu: %d destinations for %d region lists", len(dst), len(regions))
	}

	sizes := make([][2]int64, len(dst))
	for i, d := range dst {
		sizes[i] = [2]int64{d.Height, d.Width}
	}
	e.batch.PlanBatch(sizes, regions)

	var errs []error
	var tasks []parallel.Task
	for i, s := range e.batch.Samples {
		d := buildSample(s, &e.batch, src, dst[i].Channels)
		if d.widthFlat == 0 || d.height == 0 {
			continue
		}
		out := dst[i]

		if e.dev != nil && out.Type == paste.Float32 &&
			samplesAreFloat32(src, d.cells) && fitsDevice(src, d) {
			err := e.dev.dispatch(out, src, d)
			if err == nil {
				continue
			}
			e.log.Warn("grid-gpu: device dispatch failed, using host kernel",
				"sample", i, "error", err)
		}

		conv := paste.Converter(out.Type, sampleInputType(src, d.cells, out.Type))
		if conv == nil {
			errs = append(errs, fmt.Errorf("grid-gpu: sample %d: %w", i, paste.ErrInvalidType))
			continue
		}
		for _, b := range splitBlocks(d) {
			tasks = append(tasks, parallel.Task{
				Weight: (b.y1 - b.y0) * (b.x1 - b.x0),
				Run: func() {
					runBlock(out, src, d, b, conv)
				},
			})
		}
	}
	e.pool.ExecuteWeighted(tasks)
	return errors.Join(errs...)
}

// sampleInputType returns the element type of the sources the cells
// reference, or fallback when every cell is background.
func sampleInputType(src []paste.View, cells []cellDesc, fallback paste.ElementType) paste.ElementType {
	for _, c := range cells {
		if c.Source >= 0 {
			return src[c.Source].Type
		}
	}
	return fallback
}

// samplesAreFloat32 reports whether every referenced source is float32.
func samplesAreFloat32(src []paste.View, cells []cellDesc) bool {
	for _, c := range cells {
		if c.Source >= 0 && src[c.Source].Type != paste.Float32 {
			return false
		}
	}
	return true
}
