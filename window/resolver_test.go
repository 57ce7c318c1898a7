package window

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/gogpu/paste"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Named arguments
// ============================================================================

func TestNamedStartEnd(t *testing.T) {
	r := NewResolver(Spec{})
	g, err := r.Named(Args{Start: []int64{1, 2}, End: []int64{4, 7}})
	require.NoError(t, err)

	w, err := g.Resolve([]int64{10, 20}, "HW")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, w.Anchor)
	assert.Equal(t, []int64{3, 5}, w.Shape)
}

func TestNamedStartShape(t *testing.T) {
	r := NewResolver(Spec{})
	g, err := r.Named(Args{Start: []int64{2}, Shape: []int64{5}})
	require.NoError(t, err)

	w, err := g.Resolve([]int64{10}, "W")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, w.Anchor)
	assert.Equal(t, []int64{5}, w.Shape)
}

func TestNamedDefaults(t *testing.T) {
	// start defaults to zero, end to the axis extent.
	r := NewResolver(Spec{})
	g, err := r.Named(Args{End: []int64{6, 7}})
	require.NoError(t, err)

	w, err := g.Resolve([]int64{10, 20}, "HW")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0}, w.Anchor)
	assert.Equal(t, []int64{6, 7}, w.Shape)

	g, err = r.Named(Args{Start: []int64{3, 4}})
	require.NoError(t, err)
	w, err = g.Resolve([]int64{10, 20}, "HW")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, w.Anchor)
	assert.Equal(t, []int64{7, 16}, w.Shape)
}

func TestNamedEndAndShapeConflict(t *testing.T) {
	r := NewResolver(Spec{})
	_, err := r.Named(Args{End: []int64{5}, Shape: []int64{5}})
	assert.ErrorIs(t, err, ErrEndWithShape)

	_, err = r.Named(Args{RelEnd: []float64{0.5}, RelShape: []float64{0.5}})
	assert.ErrorIs(t, err, ErrEndWithShape)

	_, err = r.Named(Args{End: []int64{5}, RelShape: []float64{0.5}})
	assert.ErrorIs(t, err, ErrEndWithShape)
}

func TestNamedNoArgs(t *testing.T) {
	r := NewResolver(Spec{})
	_, err := r.Named(Args{})
	assert.ErrorIs(t, err, ErrNoArgs)
}

// warnCounter counts Warn-level records, dropping everything else.
type warnCounter struct {
	mu    sync.Mutex
	warns int
}

func (h *warnCounter) Enabled(context.Context, slog.Level) bool { return true }
func (h *warnCounter) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.Level == slog.LevelWarn {
		h.warns++
	}
	return nil
}
func (h *warnCounter) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *warnCounter) WithGroup(string) slog.Handler      { return h }

func (h *warnCounter) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.warns
}

func TestNamedNormalizationFlagsWarn(t *testing.T) {
	h := &warnCounter{}
	paste.SetLogger(slog.New(h))
	t.Cleanup(func() { paste.SetLogger(nil) })

	r := NewResolver(Spec{NormalizedAnchor: true})
	g, err := r.Named(Args{Start: []int64{2}, Shape: []int64{5}})
	require.NoError(t, err)

	w, err := g.Resolve([]int64{10}, "H")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, w.Anchor)
	assert.Equal(t, []int64{5}, w.Shape)
	assert.Equal(t, 1, h.count(), "advisory warning count")
}

// ============================================================================
// Relative arguments
// ============================================================================

func TestRelativeStartEnd(t *testing.T) {
	r := NewResolver(Spec{})
	g, err := r.Named(Args{RelStart: []float64{0.25}, RelEnd: []float64{0.75}})
	require.NoError(t, err)

	w, err := g.Resolve([]int64{100}, "W")
	require.NoError(t, err)
	assert.Equal(t, []int64{25}, w.Anchor)
	assert.Equal(t, []int64{50}, w.Shape)
}

func TestJointRelativeRounding(t *testing.T) {
	// 0.1*1000=100 and 0.3*1000 accumulates floating point error when
	// computed independently; a single multiplication of the sum lands
	// exactly on end=400.
	r := NewResolver(Spec{})
	g, err := r.Named(Args{RelStart: []float64{0.1}, RelShape: []float64{0.3}})
	require.NoError(t, err)

	w, err := g.Resolve([]int64{1000}, "W")
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, w.Anchor)
	assert.Equal(t, []int64{300}, w.Shape)
}

func TestJointRelativeNegativeShape(t *testing.T) {
	r := NewResolver(Spec{})
	g, err := r.Named(Args{RelStart: []float64{0.5}, RelShape: []float64{-0.1}})
	require.NoError(t, err)

	_, err = g.Resolve([]int64{100}, "W")
	assert.ErrorIs(t, err, ErrNegativeShape)
}

func TestAbsoluteStartRelativeShape(t *testing.T) {
	// Absolute start takes precedence over rel-start for the anchor;
	// the end still comes from the joint fraction sum.
	r := NewResolver(Spec{})
	g, err := r.Named(Args{Start: []int64{7}, RelStart: []float64{0.1}, RelShape: []float64{0.3}})
	require.NoError(t, err)

	w, err := g.Resolve([]int64{1000}, "W")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, w.Anchor)
	assert.Equal(t, []int64{393}, w.Shape)
}

// ============================================================================
// Axis addressing
// ============================================================================

func TestAxisNames(t *testing.T) {
	r := NewResolver(Spec{AxisNames: "W"})
	g, err := r.Named(Args{Start: []int64{3}, Shape: []int64{4}})
	require.NoError(t, err)

	w, err := g.Resolve([]int64{10, 20, 3}, "HWC")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 3, 0}, w.Anchor)
	assert.Equal(t, []int64{10, 4, 3}, w.Shape)
}

func TestAxisNameNotFound(t *testing.T) {
	r := NewResolver(Spec{AxisNames: "D"})
	g, err := r.Named(Args{Start: []int64{0}, Shape: []int64{1}})
	require.NoError(t, err)

	_, err = g.Resolve([]int64{10, 20}, "HW")
	assert.ErrorIs(t, err, ErrAxisName)
}

func TestAxisIndexOutOfRange(t *testing.T) {
	r := NewResolver(Spec{Axes: []int{2}})
	g, err := r.Named(Args{Start: []int64{0}, Shape: []int64{1}})
	require.NoError(t, err)

	_, err = g.Resolve([]int64{10, 20}, "HW")
	assert.ErrorIs(t, err, ErrAxisRange)
}

func TestAxisCountMismatch(t *testing.T) {
	r := NewResolver(Spec{AxisNames: "HW"})
	_, err := r.Named(Args{Start: []int64{1}, Shape: []int64{2}})
	assert.ErrorIs(t, err, ErrAxisCount)
}

func TestAllAxesDefault(t *testing.T) {
	// With no axis selection, arguments address every axis in order.
	r := NewResolver(Spec{})
	g, err := r.Named(Args{Start: []int64{1, 2, 0}, Shape: []int64{2, 3, 3}})
	require.NoError(t, err)

	w, err := g.Resolve([]int64{10, 20, 3}, "HWC")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 0}, w.Anchor)
	assert.Equal(t, []int64{2, 3, 3}, w.Shape)
}

// ============================================================================
// Positional tensors
// ============================================================================

func TestPositionalInt(t *testing.T) {
	r := NewResolver(Spec{})
	g, err := r.Positional(Int32Tensor(2, 3), Int32Tensor(4, 5))
	require.NoError(t, err)

	w, err := g.Resolve([]int64{10, 20}, "HW")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, w.Anchor)
	assert.Equal(t, []int64{4, 5}, w.Shape)
}

func TestPositionalNormalized(t *testing.T) {
	r := NewResolver(Spec{NormalizedAnchor: true, NormalizedShape: true})
	g, err := r.Positional(Float32Tensor(0.1, 0.5), Float32Tensor(0.3, 0.25))
	require.NoError(t, err)

	w, err := g.Resolve([]int64{1000, 100}, "HW")
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 50}, w.Anchor)
	assert.Equal(t, []int64{300, 25}, w.Shape)
}

func TestPositionalNormalizedIgnoredForInts(t *testing.T) {
	// Normalization flags apply only to floating-point tensors.
	r := NewResolver(Spec{NormalizedAnchor: true, NormalizedShape: true})
	g, err := r.Positional(Int64Tensor(2), Int64Tensor(4))
	require.NoError(t, err)

	w, err := g.Resolve([]int64{100}, "W")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, w.Anchor)
	assert.Equal(t, []int64{4}, w.Shape)
}

func TestPositionalTypeMismatch(t *testing.T) {
	r := NewResolver(Spec{})
	_, err := r.Positional(Int32Tensor(1), Float32Tensor(2))
	assert.ErrorIs(t, err, ErrArgType)
}

func TestPositionalLengthMismatch(t *testing.T) {
	r := NewResolver(Spec{})
	_, err := r.Positional(Int32Tensor(1, 2), Int32Tensor(3))
	assert.ErrorIs(t, err, ErrAxisCount)
}

// ============================================================================
// Validation
// ============================================================================

func TestEndBeforeStart(t *testing.T) {
	r := NewResolver(Spec{})
	g, err := r.Named(Args{Start: []int64{5}, End: []int64{2}})
	require.NoError(t, err)

	_, err = g.Resolve([]int64{10}, "W")
	assert.ErrorIs(t, err, ErrEndBeforeStart)
}

func TestCoordOutOfRange(t *testing.T) {
	// Anchor plus shape can push the end coordinate past the int64
	// range even when both inputs are representable.
	r := NewResolver(Spec{})
	g, err := r.Positional(Float32Tensor(1e19), Float32Tensor(0))
	require.NoError(t, err)
	_, err = g.Resolve([]int64{10}, "W")
	assert.ErrorIs(t, err, ErrCoordRange)

	g, err = r.Named(Args{Start: []int64{math.MaxInt64}, Shape: []int64{math.MaxInt64}})
	require.NoError(t, err)
	_, err = g.Resolve([]int64{10}, "W")
	assert.ErrorIs(t, err, ErrCoordRange)
}

func TestOutOfBoundsWindowAllowed(t *testing.T) {
	// Resolution does not clamp to the sample's extent; bounds against
	// the source are the caller's concern.
	r := NewResolver(Spec{})
	g, err := r.Named(Args{Start: []int64{-5}, Shape: []int64{100}})
	require.NoError(t, err)

	w, err := g.Resolve([]int64{10}, "W")
	require.NoError(t, err)
	assert.Equal(t, []int64{-5}, w.Anchor)
	assert.Equal(t, []int64{100}, w.Shape)
}
