package convert

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/morph"
)

// ErrOracleUnavailable is returned, or logged, when no surface
// oracle can be used.
var ErrOracleUnavailable = errors.New("soma surface oracle unavailable")

// A SurfaceOracle measures the soma surface of the morphology stored
// in a file.
type SurfaceOracle interface {
	SomaSurface(ctx context.Context, path string) (float64, error)
}

// OracleFunc adapts a function to SurfaceOracle.
type OracleFunc func(ctx context.Context, path string) (float64, error)

// SomaSurface calls f.
func (f OracleFunc) SomaSurface(ctx context.Context, path string) (float64, error) {
	return f(ctx, path)
}

const (
	// DefaultMaxEvals bounds the oracle calls of a radius refinement.
	DefaultMaxEvals = 50

	refineWindow = 0.2
	refineTol    = 1e-5
)

// RefineRadius searches radii within 20% of r for the sphere contour
// about c whose surface, as measured by opts.Oracle, is closest to
// the area of the sphere of radius r. Each candidate is written to a
// candidate file in opts.TempDir for the oracle to read.
func RefineRadius(ctx context.Context, c r3.Vec, r float64, opts Options) (float64, error) {
	if opts.Oracle == nil {
		return 0, ErrOracleUnavailable
	}
	maxEvals := opts.MaxEvals
	if maxEvals <= 0 {
		maxEvals = DefaultMaxEvals
	}
	dir, err := os.MkdirTemp(opts.TempDir, "morphtool-refine-")
	if err != nil {
		return 0, errors.Wrap(err, "creating refinement directory")
	}
	defer os.RemoveAll(dir)

	want := 4 * math.Pi * r * r
	candidate := morph.New(morph.FormatASC)
	n := 0
	objective := func(radius float64) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n++
		candidate.Soma = SphereContour(c, radius)
		path := filepath.Join(dir, fmt.Sprintf("candidate%d.asc", n))
		if err := morph.WriteFile(candidate, path); err != nil {
			return 0, errors.Wrap(err, "writing candidate soma")
		}
		got, err := opts.Oracle.SomaSurface(ctx, path)
		if err != nil {
			return 0, err
		}
		opts.logger().Debug("candidate soma surface", "radius", radius, "surface", got, "target", want)
		return math.Abs(want - got), nil
	}
	return minimizeBounded(objective, (1-refineWindow)*r, (1+refineWindow)*r, refineTol, maxEvals)
}
