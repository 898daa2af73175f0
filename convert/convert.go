// Package convert changes the soma of a morphology between the
// representations used by the SWC, ASC and H5 formats while keeping
// its surface area.
//
// SWC files describe the soma as a single sphere, a stack of
// cylinders or the NeuroMorpho three point cylinder. ASC and H5
// files describe it as a contour in the xy plane. Soma picks the
// representation needed by the target format and converts to it.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/morph"
)

var (
	// ErrDegenerate is returned when the soma geometry does not
	// determine the shape being asked for.
	ErrDegenerate = errors.New("degenerate soma geometry")
	// ErrAllPointsEqual is returned when every point of a cylinder
	// stack coincides, so it has no direction.
	ErrAllPointsEqual = errors.Wrap(ErrDegenerate, "all soma points are equal")
	// ErrUnsupportedExtension is returned for output paths that are
	// not .swc, .asc or .h5.
	ErrUnsupportedExtension = errors.New("output file format should be one of swc, asc or h5")
	// ErrSinglePointSoma is returned when a single point soma is
	// requested for a format that cannot hold one.
	ErrSinglePointSoma = errors.New("single point soma is only applicable for swc output")
	// ErrNeedsSanitize is returned when the writer rejects the tree
	// because it has sections with a single child.
	ErrNeedsSanitize = errors.New("use the sanitize option for converting")
)

// SomaTypeError is returned when a soma has a type the conversion
// does not expect, for instance a contour read from an SWC file.
type SomaTypeError struct {
	Type   morph.SomaType
	Format morph.Format
}

func (e *SomaTypeError) Error() string {
	if e.Format == morph.FormatUnknown {
		return fmt.Sprintf("unexpected soma of type %v", e.Type)
	}
	return fmt.Sprintf("a %v morphology is not supposed to have a soma of type %v", e.Format, e.Type)
}

// Options configures soma conversion. The zero value converts without
// oracle refinement and logs to slog.Default().
type Options struct {
	// EnsureArea refines the radius of contours made from spheres so
	// that Oracle measures them with the area of the sphere.
	EnsureArea bool
	// Oracle measures soma surfaces. A nil Oracle disables refinement
	// and surface checks.
	Oracle SurfaceOracle
	// TempDir holds the candidate files written during refinement. Empty
	// means os.TempDir().
	TempDir string
	// MaxEvals bounds the oracle calls of one refinement. Zero means
	// DefaultMaxEvals.
	MaxEvals int
	Logger   *slog.Logger
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Soma returns a copy of m whose soma is represented the way format
// ext (such as "swc" or ".h5") expects; m is not modified.
//
// For asc and h5 the soma becomes a contour. For swc, contours become
// a stack of cylinders and every other SWC soma type is kept. A soma
// that is already of the target type is copied unchanged.
func Soma(ctx context.Context, m *morph.Morphology, ext string, opts Options) (*morph.Morphology, error) {
	target, ok := morph.FormatFromExt(ext)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedExtension, "%q", ext)
	}
	src := m.Soma
	empty := src.Type == morph.SomaUndefined && len(src.Points) == 0
	if !empty && !m.Format.ValidSoma(src.Type) {
		return nil, &SomaTypeError{Type: src.Type, Format: m.Format}
	}

	var soma morph.Soma
	var err error
	if target == morph.FormatSWC {
		soma, err = toSWC(src, opts.logger())
	} else {
		soma, err = toContour(ctx, src, opts)
	}
	if err != nil {
		return nil, err
	}
	out := m.Copy()
	out.Soma = soma
	return out, nil
}

func toSWC(s morph.Soma, log *slog.Logger) (morph.Soma, error) {
	switch s.Type {
	case morph.SomaSinglePoint, morph.SomaCylinders, morph.SomaNeuromorphoThreePointCylinders:
		return s.Copy(), nil
	case morph.SomaSimpleContour:
		log.Info("converting soma contour into a stack of cylinders")
		return ContourToCylinders(s)
	case morph.SomaUndefined:
		if len(s.Points) == 0 {
			return s.Copy(), nil
		}
	}
	return morph.Soma{}, &SomaTypeError{Type: s.Type, Format: morph.FormatSWC}
}

func toContour(ctx context.Context, s morph.Soma, opts Options) (morph.Soma, error) {
	log := opts.logger()
	switch s.Type {
	case morph.SomaSimpleContour:
		return s.Copy(), nil
	case morph.SomaCylinders:
		log.Info("converting soma stack of cylinders into a contour in the xy plane")
		return CylindersToContour(s)
	case morph.SomaSinglePoint, morph.SomaNeuromorphoThreePointCylinders:
		log.Info("converting soma to a circular contour representing the same sphere", "type", s.Type)
		c, r, err := sphere(s)
		if err != nil {
			return morph.Soma{}, err
		}
		if opts.EnsureArea {
			r, err = ensureArea(ctx, c, r, opts)
			if err != nil {
				return morph.Soma{}, err
			}
		}
		return SphereContour(c, r), nil
	case morph.SomaUndefined:
		if len(s.Points) == 0 {
			return s.Copy(), nil
		}
	}
	return morph.Soma{}, &SomaTypeError{Type: s.Type}
}

// ensureArea returns the refined radius, or r itself if the oracle is
// missing or fails. Only cancellation of ctx is an error.
func ensureArea(ctx context.Context, c r3.Vec, r float64, opts Options) (float64, error) {
	log := opts.logger()
	if opts.Oracle == nil {
		log.Info("soma area refinement skipped", "err", ErrOracleUnavailable)
		return r, nil
	}
	refined, err := RefineRadius(ctx, c, r, opts)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		log.Info("soma area refinement skipped", "err", err)
		return r, nil
	}
	log.Info("refined soma contour radius", "radius", r, "refined", refined)
	return refined, nil
}

// FrustumArea sums the lateral areas of the truncated cones between
// consecutive points.
func FrustumArea(points []r3.Vec, diameters []float64) float64 {
	area := 0.0
	for i := 1; i < len(points); i++ {
		r0, r1 := diameters[i-1]/2, diameters[i]/2
		h2 := r3.Norm2(r3.Sub(points[i], points[i-1]))
		area += math.Pi * (r0 + r1) * math.Sqrt((r0-r1)*(r0-r1)+h2)
	}
	return area
}

// SurfaceArea returns the surface area of s the way NEURON measures
// it: spheres by their area, cylinder stacks by their lateral area,
// and contours by the lateral area of the cylinders derived from
// them.
func SurfaceArea(s morph.Soma) (float64, error) {
	switch s.Type {
	case morph.SomaSinglePoint, morph.SomaNeuromorphoThreePointCylinders:
		_, r, err := sphere(s)
		return 4 * math.Pi * r * r, err
	case morph.SomaCylinders:
		return FrustumArea(s.Points, s.Diameters), nil
	case morph.SomaSimpleContour:
		c, err := ContourToCylinders(s)
		if err != nil {
			return 0, err
		}
		return FrustumArea(c.Points, c.Diameters), nil
	}
	return 0, nil
}

// ToSinglePoint collapses s into a sphere at the mean of its points
// whose area is the frustum area of the point sequence, whatever the
// type of s. A single point soma is returned unchanged.
func ToSinglePoint(s morph.Soma) morph.Soma {
	if s.Type == morph.SomaSinglePoint || len(s.Points) == 0 {
		return s.Copy()
	}
	area := FrustumArea(s.Points, s.Diameters)
	return morph.Soma{
		Type:      morph.SomaSinglePoint,
		Points:    []r3.Vec{s.Center()},
		Diameters: []float64{math.Sqrt(area / math.Pi)},
	}
}
