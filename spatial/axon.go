package spatial

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/paulhankin/morphtool/morph"
)

// Axis selects the coordinate left out of angle computations.
type Axis int

const (
	IgnoreZ Axis = iota
	IgnoreX
	IgnoreY
	IgnoreNone
)

func (a Axis) project(v r3.Vec) []float64 {
	switch a {
	case IgnoreX:
		return []float64{v.Y, v.Z}
	case IgnoreY:
		return []float64{v.X, v.Z}
	case IgnoreNone:
		return []float64{v.X, v.Y, v.Z}
	}
	return []float64{v.X, v.Y}
}

// AxonPointOptions configures AxonPoint. The zero value looks for the
// axon going furthest towards -y in the xy plane.
type AxonPointOptions struct {
	// Direction of the main axon. Zero means (0, -1, 0).
	Direction r3.Vec
	// Within, if set, only considers leaves ending strictly inside
	// these bounds.
	Within *morph.Bounds
	// Ignore is left out of the angles.
	Ignore Axis
	// Logger receives a warning when no axon point is found. Nil
	// means slog.Default().
	Logger *slog.Logger
}

func (o AxonPointOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func dot(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		d += a[i] * b[i]
	}
	return d
}

func norm(a []float64) float64 { return math.Sqrt(dot(a, a)) }

// segmentAngles returns the angle between dir and each non-degenerate
// segment of s.
func segmentAngles(s *morph.Section, dir []float64, ignore Axis) []float64 {
	var angles []float64
	for i := 1; i < len(s.Points); i++ {
		d := ignore.project(r3.Sub(s.Points[i], s.Points[i-1]))
		n := norm(d)
		if n == 0 {
			continue
		}
		c := math.Max(-1, math.Min(1, dot(dir, d)/n))
		angles = append(angles, math.Acos(c))
	}
	return angles
}

// AxonPoint estimates the end of the main axon: the axon leaf whose
// path from the soma has the smallest mean angle to the direction.
// It returns the id of that leaf section, whose last point is the
// axon point.
func AxonPoint(m *morph.Morphology, opts AxonPointOptions) (int, bool) {
	d := opts.Direction
	if d == (r3.Vec{}) {
		d = r3.Vec{Y: -1}
	}
	dir := opts.Ignore.project(r3.Unit(d))

	best, bestQ := -1, math.Inf(1)
	for s := range m.Sections() {
		if s.Type != morph.SectionAxon || !s.IsLeaf() {
			continue
		}
		if opts.Within != nil && !opts.Within.Contains(s.Points[len(s.Points)-1]) {
			continue
		}
		var angles []float64
		for u := range m.Upstream(s.ID) {
			angles = append(angles, segmentAngles(u, dir, opts.Ignore)...)
		}
		if len(angles) == 0 {
			continue
		}
		if q := stat.Mean(angles, nil); q < bestQ {
			best, bestQ = s.ID, q
		}
	}
	if best < 0 {
		opts.logger().Warn("could not find axon point", "within", opts.Within)
		return -1, false
	}
	return best, true
}
