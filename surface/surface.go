// Package surface provides soma surface oracles for morphology files.
package surface

import (
	"context"

	"github.com/pkg/errors"

	"github.com/paulhankin/morphtool/convert"
	"github.com/paulhankin/morphtool/morph"
)

// Frustum measures the soma the way NEURON's import3d does: spheres
// by their area, and cylinder stacks and contours by the lateral area
// of their frustums.
type Frustum struct{}

var _ convert.SurfaceOracle = Frustum{}

// SomaSurface reads the morphology at path and returns the area of
// its soma.
func (Frustum) SomaSurface(ctx context.Context, path string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m, err := morph.ReadFile(path)
	if err != nil {
		return 0, err
	}
	a, err := convert.SurfaceArea(m.Soma)
	return a, errors.Wrapf(err, "soma of %s", path)
}
