package paste

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/paste/internal/parallel"
)

// Operator errors.
var (
	// ErrNotSetup is returned when Run is called before a successful Setup.
	ErrNotSetup = errors.New("paste: Run called before Setup")

	// ErrBatchSize is returned when batch-level argument lengths disagree.
	ErrBatchSize = errors.New("paste: inconsistent batch size")

	// ErrTypeMismatch is returned when source samples do not share one
	// element type.
	ErrTypeMismatch = errors.New("paste: source element types must match across batch")

	// ErrChannelMismatch is returned when source samples do not share one
	// channel count.
	ErrChannelMismatch = errors.New("paste: channel count must match across batch")

	// ErrOutputShape is returned when a destination view does not match
	// the descriptor produced by Setup.
	ErrOutputShape = errors.New("paste: destination does not match output descriptor")
)

// Options configures a MultiPaste operator.
type Options struct {
	// OutputType is the destination element type. TypeInvalid selects
	// the input element type.
	OutputType ElementType

	// Workers is the worker pool size for the host path.
	// Zero or negative selects GOMAXPROCS.
	Workers int
}

// OutputDesc describes one destination sample to be allocated by the caller.
type OutputDesc struct {
	Type                    ElementType
	Height, Width, Channels int64
}

// RunStats reports how the last Run dispatched its host-path work.
// Useful for tests and diagnostics.
type RunStats struct {
	// IndependentTasks counts regions dispatched as separate tasks
	// (samples whose output windows are pairwise disjoint).
	IndependentTasks int

	// OrderedTasks counts single-task ordered replays (samples with at
	// least one overlapping region pair).
	OrderedTasks int
}

// sampleState holds the per-sample results of Setup.
type sampleState struct {
	regions  []Region
	disjoint bool
}

// Op is the MultiPaste operator. Create with [New], configure a batch with
// [Op.Setup], execute with [Op.Run], and release the worker pool with
// [Op.Close].
//
// Op is safe for concurrent use, but Setup and Run for one batch must not
// interleave with another batch's calls on the same Op.
type Op struct {
	mu   sync.Mutex
	pool *parallel.Pool

	outputTypeArg ElementType

	// Per-Setup state.
	ready      bool
	inputType  ElementType
	outputType ElementType
	channels   int64
	samples    []sampleState
	descs      []OutputDesc

	stats RunStats
}

// New creates a MultiPaste operator.
func New(opts Options) *Op {
	return &Op{
		pool:          parallel.New(opts.Workers),
		outputTypeArg: opts.OutputType,
	}
}

// Close shuts down the operator's worker pool.
func (op *Op) Close() {
	op.pool.Close()
}

// Setup validates a batch and resolves its paste regions.
//
// sources is the batch of input samples. regions[i] is the ordered paste
// list for output sample i. outputSize[i] is the (height, width) canvas of
// output sample i; the channel count is taken from the sources.
//
// Returns one output descriptor per sample so the caller can allocate
// destination views before Run. All failures are terminal for the step:
// no partial state is retained and nothing is dispatched.
func (op *Op) Setup(sources []View, regions [][]Region, outputSize [][2]int64) ([]OutputDesc, error) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.ready = false

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no source samples", ErrBatchSize)
	}
	if len(regions) != len(outputSize) {
		return nil, fmt.Errorf("%w: %d region lists, %d output sizes",
			ErrBatchSize, len(regions), len(outputSize))
	}

	inType := sources[0].Type
	channels := sources[0].Channels
	for i, s := range sources {
		if s.Type != inType {
			return nil, fmt.Errorf("%w: sample 0 is %s, sample %d is %s",
				ErrTypeMismatch, inType, i, s.Type)
		}
		if s.Channels != channels {
			return nil, fmt.Errorf("%w: sample 0 has %d, sample %d has %d",
				ErrChannelMismatch, channels, i, s.Channels)
		}
	}
	if !inType.IsValid() {
		return nil, fmt.Errorf("%w: unsupported input type %s", ErrInvalidType, inType)
	}

	outType := op.outputTypeArg
	if outType == TypeInvalid {
		outType = inType
	}
	if !outType.IsValid() {
		return nil, fmt.Errorf("%w: unsupported output type %s", ErrInvalidType, outType)
	}

	samples := make([]sampleState, len(regions))
	descs := make([]OutputDesc, len(regions))
	for i, list := range regions {
		canvasH, canvasW := outputSize[i][0], outputSize[i][1]
		if canvasH <= 0 || canvasW <= 0 {
			return nil, fmt.Errorf("%w: output size (%d, %d) for sample %d",
				ErrInvalidShape, canvasH, canvasW, i)
		}

		resolved := make([]Region, len(list))
		for k, r := range list {
			if r.Source < 0 || r.Source >= len(sources) {
				return nil, fmt.Errorf("%w: %d (batch size %d), sample %d region %d",
					ErrSourceIndex, r.Source, len(sources), i, k)
			}
			src := sources[r.Source]
			rr := resolveRegion(r, src.Height, src.Width)
			if err := validateRegion(rr, src.Height, src.Width, canvasH, canvasW); err != nil {
				return nil, fmt.Errorf("sample %d region %d: %w", i, k, err)
			}
			resolved[k] = rr
		}

		samples[i] = sampleState{
			regions:  resolved,
			disjoint: !anyOverlap(resolved),
		}
		descs[i] = OutputDesc{Type: outType, Height: canvasH, Width: canvasW, Channels: channels}
	}

	op.inputType = inType
	op.outputType = outType
	op.channels = channels
	op.samples = samples
	op.descs = descs
	op.ready = true
	return descs, nil
}

// Regions returns the resolved region lists from the last Setup.
// The returned slices are owned by the operator; treat them as read-only.
func (op *Op) Regions() [][]Region {
	op.mu.Lock()
	defer op.mu.Unlock()
	out := make([][]Region, len(op.samples))
	for i := range op.samples {
		out[i] = op.samples[i].regions
	}
	return out
}

// Stats returns dispatch statistics from the last Run.
func (op *Op) Stats() RunStats {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.stats
}

// Run fills every destination view from the batch configured by Setup.
//
// Each destination is fully overwritten: elements covered by a region get
// the winning source value (saturating-converted), all others are zero.
// If an accelerator is registered it is tried first; ErrFallbackToCPU
// routes the batch to the host replay path, any other accelerator error
// is fatal and returned without retry.
//
// The call blocks until all dispatched tasks complete. Task failures do
// not cancel sibling tasks; the joined error is returned after the
// barrier.
func (op *Op) Run(dst, sources []View) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if !op.ready {
		return ErrNotSetup
	}
	if len(dst) != len(op.samples) {
		return fmt.Errorf("%w: %d destinations, %d samples", ErrBatchSize, len(dst), len(op.samples))
	}
	for i, d := range dst {
		want := op.descs[i]
		if d.Type != want.Type || d.Height != want.Height ||
			d.Width != want.Width || d.Channels != want.Channels {
			return fmt.Errorf("%w: sample %d", ErrOutputShape, i)
		}
	}
	op.stats = RunStats{}

	if a := GetAccelerator(); a != nil {
		regions := make([][]Region, len(op.samples))
		for i := range op.samples {
			regions[i] = op.samples[i].regions
		}
		err := a.Paste(dst, sources, regions)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrFallbackToCPU) {
			return err
		}
		Logger().Debug("accelerator declined batch, using host path", "accelerator", a.Name())
	}

	return op.runHost(dst, sources)
}

// runHost executes the replay path: per sample, either one task per region
// (disjoint output windows) or a single ordered task (overlapping windows).
func (op *Op) runHost(dst, sources []View) error {
	conv := Converter(op.outputType, op.inputType)

	var tasks []parallel.Task
	var errMu sync.Mutex
	var errs []error

	for i := range op.samples {
		s := &op.samples[i]
		d := dst[i]
		d.Zero()

		if s.disjoint {
			for _, r := range s.regions {
				region := r
				tasks = append(tasks, parallel.Task{
					Weight: region.NumElements(op.channels),
					Run: func() {
						if err := pasteRegion(d, sources[region.Source], region, conv); err != nil {
							errMu.Lock()
							errs = append(errs, err)
							errMu.Unlock()
						}
					},
				})
			}
			op.stats.IndependentTasks += len(s.regions)
		} else {
			regions := s.regions
			var weight int64
			for _, r := range regions {
				weight += r.NumElements(op.channels)
			}
			tasks = append(tasks, parallel.Task{
				Weight: weight,
				Run: func() {
					for _, r := range regions {
						if err := pasteRegion(d, sources[r.Source], r, conv); err != nil {
							errMu.Lock()
							errs = append(errs, err)
							errMu.Unlock()
							return
						}
					}
				},
			})
			op.stats.OrderedTasks++
		}
	}

	op.pool.ExecuteWeighted(tasks)
	return errors.Join(errs...)
}

// pasteRegion copies one resolved region row by row with element
// conversion. The region is already validated against both views.
func pasteRegion(dst, src View, r Region, conv RowConverter) error {
	if conv == nil {
		return fmt.Errorf("%w: no converter for %s from %s", ErrInvalidType, dst.Type, src.Type)
	}
	rowElems := int(r.Shape[1] * dst.Channels)
	for dy := int64(0); dy < r.Shape[0]; dy++ {
		srcOff := src.ElemOffset(r.InAnchor[0]+dy, r.InAnchor[1])
		dstOff := dst.ElemOffset(r.OutAnchor[0]+dy, r.OutAnchor[1])
		conv(dst.Data[dstOff:], src.Data[srcOff:], rowElems)
	}
	return nil
}
