package window

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/paste"
)

// Resolution errors. All are terminal for the current processing step.
var (
	// ErrEndWithShape is returned when end-style and shape-style extent
	// arguments are supplied together.
	ErrEndWithShape = errors.New("window: end/rel-end can't be provided together with shape/rel-shape")

	// ErrNoArgs is returned when neither named nor positional arguments
	// are supplied.
	ErrNoArgs = errors.New("window: expected named arguments (start/end, start/shape) or positional anchor and shape tensors")

	// ErrCoordRange is returned when a resolved coordinate falls outside
	// the representable int64 range.
	ErrCoordRange = errors.New("window: coordinate out of range")

	// ErrNegativeShape is returned for a negative resolved extent
	// argument.
	ErrNegativeShape = errors.New("window: negative shapes are not allowed")

	// ErrEndBeforeStart is returned when a window's end precedes its
	// start.
	ErrEndBeforeStart = errors.New("window: end coordinates can't be before start coordinates")

	// ErrAxisName is returned when a named axis is absent from the
	// sample's layout.
	ErrAxisName = errors.New("window: axis name not found in layout")

	// ErrAxisRange is returned when an explicit axis index is outside
	// the sample's rank.
	ErrAxisRange = errors.New("window: axis index out of range")
)

// int64 bounds as floats, checked before rounding.
const (
	i64Min = float64(math.MinInt64)
	i64Max = float64(math.MaxInt64)
)

// Spec configures a Resolver. Axes and AxisNames select the addressed
// subset of axes and are mutually exclusive: when AxisNames is non-empty
// it takes precedence; when both are empty the window addresses all axes.
type Spec struct {
	// Axes lists addressed axes by position.
	Axes []int

	// AxisNames lists addressed axes by layout letter (e.g. "HW").
	AxisNames string

	// NormalizedAnchor marks the positional anchor tensor as a fraction
	// of the axis extent. Honored only for floating-point tensors.
	NormalizedAnchor bool

	// NormalizedShape marks the positional shape tensor as a fraction
	// of the axis extent. Honored only for floating-point tensors.
	NormalizedShape bool
}

// axisCount returns the addressed axis count, or -1 when the Spec
// addresses the full rank (known only at resolve time).
func (s Spec) axisCount() int {
	if s.AxisNames != "" {
		return len(s.AxisNames)
	}
	if s.Axes != nil {
		return len(s.Axes)
	}
	return -1
}

// Resolver turns per-sample arguments into window generators.
type Resolver struct {
	spec Spec
}

// NewResolver creates a resolver for the given spec.
func NewResolver(spec Spec) *Resolver {
	return &Resolver{spec: spec}
}

// kind tags a generator's evaluation strategy.
type kind uint8

const (
	// kindAbsolute evaluates absolute start/end/shape arguments.
	kindAbsolute kind = iota

	// kindRelative evaluates relative arguments with independent
	// multiplications.
	kindRelative

	// kindRelativeJoint evaluates relative start plus relative shape
	// with a single multiplication of their sum, minimizing floating
	// point error.
	kindRelativeJoint

	// kindPositional evaluates raw anchor/shape tensors with optional
	// normalization flags.
	kindPositional
)

// Generator captures one sample's resolved addressing mode. It holds only
// the data its variant needs and is evaluated by a pure function per
// variant; it retains no reference to the resolver.
type Generator struct {
	kind kind
	spec Spec

	// Named-argument variants.
	args Args

	// Positional variant.
	anchor, shape         []float64
	normAnchor, normShape bool
}

// Named builds a generator from named slice arguments.
//
// Supplying both an end-style and a shape-style extent is an error. If the
// resolver spec sets normalization flags, a non-fatal advisory warning is
// logged: the flags are only relevant for positional arguments.
func (r *Resolver) Named(args Args) (Generator, error) {
	if !args.hasAny() {
		return Generator{}, ErrNoArgs
	}
	if args.hasEnd() && args.hasShape() {
		return Generator{}, ErrEndWithShape
	}
	if r.spec.NormalizedAnchor || r.spec.NormalizedShape {
		paste.Logger().Warn("window: normalized-anchor/normalized-shape is only relevant " +
			"when using positional slice arguments")
	}
	if n := r.spec.axisCount(); n >= 0 {
		if err := checkArgLens(args, n); err != nil {
			return Generator{}, err
		}
	}

	k := kindAbsolute
	switch {
	case args.RelStart != nil && args.RelShape != nil && args.End == nil && args.Shape == nil:
		k = kindRelativeJoint
	case args.hasRelative():
		k = kindRelative
	}
	return Generator{kind: k, spec: r.spec, args: args}, nil
}

// Positional builds a generator from raw anchor and shape tensors.
//
// Both tensors must share one element type from the supported set (Int32,
// Int64, Float32) and have one element per addressed axis. Normalization
// flags from the Spec apply only when the respective tensor is
// floating-point.
func (r *Resolver) Positional(anchor, shape ArgTensor) (Generator, error) {
	if anchor.Type != shape.Type {
		return Generator{}, fmt.Errorf("%w: anchor is %s, shape is %s",
			ErrArgType, anchor.Type, shape.Type)
	}
	anchorVals, err := anchor.values()
	if err != nil {
		return Generator{}, err
	}
	shapeVals, err := shape.values()
	if err != nil {
		return Generator{}, err
	}
	if len(anchorVals) != len(shapeVals) {
		return Generator{}, fmt.Errorf("%w: anchor has %d elements, shape has %d",
			ErrAxisCount, len(anchorVals), len(shapeVals))
	}
	if n := r.spec.axisCount(); n >= 0 && len(anchorVals) != n {
		return Generator{}, fmt.Errorf("%w: %d arguments for %d axes",
			ErrAxisCount, len(anchorVals), n)
	}
	return Generator{
		kind:       kindPositional,
		spec:       r.spec,
		anchor:     anchorVals,
		shape:      shapeVals,
		normAnchor: anchor.Type.IsFloat() && r.spec.NormalizedAnchor,
		normShape:  shape.Type.IsFloat() && r.spec.NormalizedShape,
	}, nil
}

// checkArgLens verifies every provided named argument has one element per
// addressed axis.
func checkArgLens(args Args, n int) error {
	check := func(name string, l int) error {
		if l != n {
			return fmt.Errorf("%w: %s has %d elements for %d axes", ErrAxisCount, name, l, n)
		}
		return nil
	}
	if args.Start != nil {
		if err := check("start", len(args.Start)); err != nil {
			return err
		}
	}
	if args.RelStart != nil {
		if err := check("rel-start", len(args.RelStart)); err != nil {
			return err
		}
	}
	if args.End != nil {
		if err := check("end", len(args.End)); err != nil {
			return err
		}
	}
	if args.RelEnd != nil {
		if err := check("rel-end", len(args.RelEnd)); err != nil {
			return err
		}
	}
	if args.Shape != nil {
		if err := check("shape", len(args.Shape)); err != nil {
			return err
		}
	}
	if args.RelShape != nil {
		if err := check("rel-shape", len(args.RelShape)); err != nil {
			return err
		}
	}
	return nil
}

// Resolve evaluates the generator against a sample's full shape and axis
// layout, producing a validated window spanning all axes: addressed axes
// get the resolved anchor and extent, the rest span their full extent.
func (g Generator) Resolve(full []int64, layout string) (Window, error) {
	axes, err := g.resolveAxes(len(full), layout)
	if err != nil {
		return Window{}, err
	}
	if g.kind == kindPositional {
		if len(g.anchor) != len(axes) {
			return Window{}, fmt.Errorf("%w: %d arguments for %d axes",
				ErrAxisCount, len(g.anchor), len(axes))
		}
	} else if err := checkArgLens(g.args, len(axes)); err != nil {
		return Window{}, err
	}

	w := fullWindow(full)
	for i, dim := range axes {
		var anchor, end float64
		var aerr error
		switch g.kind {
		case kindAbsolute:
			anchor, end, aerr = evalAbsolute(g.args, i, float64(full[dim]))
		case kindRelative:
			anchor, end, aerr = evalRelative(g.args, i, float64(full[dim]))
		case kindRelativeJoint:
			anchor, end, aerr = evalRelativeJoint(g.args, i, float64(full[dim]))
		case kindPositional:
			anchor, end, aerr = evalPositional(g, i, float64(full[dim]))
		}
		if aerr != nil {
			return Window{}, fmt.Errorf("axis %d: %w", dim, aerr)
		}

		a, s, verr := roundAxis(anchor, end)
		if verr != nil {
			return Window{}, fmt.Errorf("axis %d: %w", dim, verr)
		}
		w.Anchor[dim] = a
		w.Shape[dim] = s
	}
	return w, nil
}

// resolveAxes maps the Spec's axis addressing to concrete axis indices for
// a sample of the given rank and layout.
func (g Generator) resolveAxes(rank int, layout string) ([]int, error) {
	if g.spec.AxisNames != "" {
		axes := make([]int, len(g.spec.AxisNames))
		for i, name := range g.spec.AxisNames {
			idx := strings.IndexRune(layout, name)
			if idx < 0 {
				return nil, fmt.Errorf("%w: %q in layout %q", ErrAxisName, string(name), layout)
			}
			axes[i] = idx
		}
		return axes, nil
	}
	if g.spec.Axes != nil {
		for _, a := range g.spec.Axes {
			if a < 0 || a >= rank {
				return nil, fmt.Errorf("%w: %d (rank %d)", ErrAxisRange, a, rank)
			}
		}
		return g.spec.Axes, nil
	}
	axes := make([]int, rank)
	for i := range axes {
		axes[i] = i
	}
	return axes, nil
}

// evalAbsolute resolves an axis from absolute arguments only.
func evalAbsolute(args Args, i int, extent float64) (anchor, end float64, err error) {
	anchor = 0
	if args.Start != nil {
		anchor = float64(args.Start[i])
	}
	end = extent
	switch {
	case args.End != nil:
		end = float64(args.End[i])
	case args.Shape != nil:
		shape := float64(args.Shape[i])
		if shape < 0 {
			return 0, 0, fmt.Errorf("%w: got %v", ErrNegativeShape, shape)
		}
		end = anchor + shape
	}
	return anchor, end, nil
}

// evalRelative resolves an axis with independent multiplications of any
// relative arguments.
func evalRelative(args Args, i int, extent float64) (anchor, end float64, err error) {
	anchor = 0
	if args.Start != nil {
		anchor = float64(args.Start[i])
	} else if args.RelStart != nil {
		anchor = args.RelStart[i] * extent
	}
	end = extent
	switch {
	case args.End != nil:
		end = float64(args.End[i])
	case args.RelEnd != nil:
		end = args.RelEnd[i] * extent
	case args.Shape != nil:
		shape := float64(args.Shape[i])
		if shape < 0 {
			return 0, 0, fmt.Errorf("%w: got %v", ErrNegativeShape, shape)
		}
		end = anchor + shape
	case args.RelShape != nil:
		shape := args.RelShape[i] * extent
		if shape < 0 {
			return 0, 0, fmt.Errorf("%w: got %v", ErrNegativeShape, shape)
		}
		end = anchor + shape
	}
	return anchor, end, nil
}

// evalRelativeJoint resolves an axis from relative start plus relative
// shape. The end coordinate multiplies the extent once, after summing the
// fractions, to avoid compounding rounding error.
func evalRelativeJoint(args Args, i int, extent float64) (anchor, end float64, err error) {
	relShape := args.RelShape[i]
	if relShape < 0 {
		return 0, 0, fmt.Errorf("%w: got %v", ErrNegativeShape, relShape)
	}
	relStart := args.RelStart[i]
	if args.Start != nil {
		anchor = float64(args.Start[i])
	} else {
		anchor = relStart * extent
	}
	end = (relStart + relShape) * extent
	return anchor, end, nil
}

// evalPositional resolves an axis from raw anchor/shape tensor values.
// When both tensors are normalized, the end coordinate multiplies the
// extent once, after summing the fractions.
func evalPositional(g Generator, i int, extent float64) (anchor, end float64, err error) {
	anchor = g.anchor[i]
	shape := g.shape[i]
	if g.normAnchor && g.normShape {
		end = (anchor + shape) * extent
		anchor *= extent
	} else {
		if g.normAnchor {
			anchor *= extent
		}
		if g.normShape {
			shape *= extent
		}
		end = anchor + shape
	}
	return anchor, end, nil
}

// roundAxis validates the working coordinates against the int64 range and
// ordering, then rounds once to the final integer anchor and extent.
func roundAxis(anchor, end float64) (int64, int64, error) {
	if anchor < i64Min || anchor > i64Max {
		return 0, 0, fmt.Errorf("%w: anchor value %v outside [%v, %v]", ErrCoordRange, anchor, i64Min, i64Max)
	}
	if end < i64Min || end > i64Max {
		return 0, 0, fmt.Errorf("%w: end value %v outside [%v, %v]", ErrCoordRange, end, i64Min, i64Max)
	}
	if end < anchor {
		return 0, 0, fmt.Errorf("%w: start=%v end=%v", ErrEndBeforeStart, anchor, end)
	}
	a := int64(math.Round(anchor))
	s := int64(math.Round(end)) - a
	if s < 0 {
		s = 0
	}
	return a, s, nil
}
