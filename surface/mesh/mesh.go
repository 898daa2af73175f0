// Package mesh measures soma surfaces by building the soma as a
// signed distance field and summing the triangles of its marching
// cubes mesh. Unlike the frustum sum it counts the end caps of
// cylinder stacks.
package mesh

import (
	"context"
	"log/slog"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/convert"
	"github.com/paulhankin/morphtool/morph"
)

// DefaultCells is the marching cubes resolution along the longest
// side of the soma bounding box.
const DefaultCells = 100

// Oracle is a convert.SurfaceOracle backed by a soma mesh.
type Oracle struct {
	// Cells is the mesh resolution; zero means DefaultCells.
	Cells  int
	Logger *slog.Logger
}

var _ convert.SurfaceOracle = (*Oracle)(nil)

func vec(p r3.Vec) v3.Vec { return v3.Vec{X: p.X, Y: p.Y, Z: p.Z} }

// frustum returns the truncated cone from p0 to p1 with the given end
// radii.
func frustum(p0, p1 r3.Vec, r0, r1 float64) (sdf.SDF3, error) {
	d := r3.Sub(p1, p0)
	h := r3.Norm(d)
	s, err := sdf.Cone3D(h, r0, r1, 0)
	if err != nil {
		return nil, err
	}
	theta := math.Acos(d.Z / h)
	phi := math.Atan2(d.Y, d.X)
	mid := r3.Scale(0.5, r3.Add(p0, p1))
	m := sdf.Translate3d(vec(mid)).Mul(sdf.RotateZ(phi).Mul(sdf.RotateY(theta)))
	return sdf.Transform3D(s, m), nil
}

// Solid returns the soma as a signed distance field. Contours are
// replaced by the cylinder stack NEURON derives from them.
func Solid(s morph.Soma) (sdf.SDF3, error) {
	switch s.Type {
	case morph.SomaSinglePoint, morph.SomaNeuromorphoThreePointCylinders:
		if len(s.Points) == 0 || s.Diameters[0] <= 0 {
			break
		}
		sp, err := sdf.Sphere3D(s.Diameters[0] / 2)
		if err != nil {
			return nil, err
		}
		return sdf.Transform3D(sp, sdf.Translate3d(vec(s.Points[0]))), nil
	case morph.SomaSimpleContour:
		c, err := convert.ContourToCylinders(s)
		if err != nil {
			return nil, err
		}
		return Solid(c)
	case morph.SomaCylinders:
		var parts []sdf.SDF3
		for i := 1; i < len(s.Points); i++ {
			r0, r1 := s.Diameters[i-1]/2, s.Diameters[i]/2
			if s.Points[i] == s.Points[i-1] || (r0 <= 0 && r1 <= 0) {
				continue
			}
			f, err := frustum(s.Points[i-1], s.Points[i], r0, r1)
			if err != nil {
				return nil, errors.Wrapf(err, "soma segment %d", i)
			}
			parts = append(parts, f)
		}
		if len(parts) > 0 {
			return sdf.Union3D(parts...), nil
		}
	}
	return nil, errors.Wrapf(convert.ErrDegenerate, "%v soma has no volume", s.Type)
}

// Area returns the area of the marching cubes mesh of the soma.
func (o *Oracle) Area(s morph.Soma) (float64, error) {
	solid, err := Solid(s)
	if err != nil {
		return 0, err
	}
	cells := o.Cells
	if cells <= 0 {
		cells = DefaultCells
	}
	tris := render.ToTriangles(solid, render.NewMarchingCubesUniform(cells))
	area := 0.0
	for _, t := range tris {
		area += 0.5 * t[1].Sub(t[0]).Cross(t[2].Sub(t[0])).Length()
	}
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Debug("meshed soma", "type", s.Type, "triangles", len(tris), "area", area)
	return area, nil
}

// SomaSurface reads the morphology at path and returns the area of
// its soma mesh.
func (o *Oracle) SomaSurface(ctx context.Context, path string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m, err := morph.ReadFile(path)
	if err != nil {
		return 0, err
	}
	a, err := o.Area(m.Soma)
	return a, errors.Wrapf(err, "soma of %s", path)
}
