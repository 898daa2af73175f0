package spatial

import (
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/paulhankin/morphtool/morph"
)

// AlignMethod chooses the points whose principal direction is aligned.
type AlignMethod int

const (
	// AlignWhole uses every section of the neurite type.
	AlignWhole AlignMethod = iota
	// AlignTrunk uses the sections from the apical root to the apical
	// point.
	AlignTrunk
	// AlignFirstSection uses the first root section of the type.
	AlignFirstSection
	// AlignFirstSegment uses the first two points of that section.
	AlignFirstSegment
)

var alignMethodNames = map[string]AlignMethod{
	"whole":         AlignWhole,
	"trunk":         AlignTrunk,
	"first_section": AlignFirstSection,
	"first_segment": AlignFirstSegment,
}

// ParseAlignMethod returns the method with the given name.
func ParseAlignMethod(name string) (AlignMethod, error) {
	a, ok := alignMethodNames[name]
	if !ok {
		return 0, errors.Errorf("unknown alignment method %q", name)
	}
	return a, nil
}

// AlignOptions configures AlignToDirection.
type AlignOptions struct {
	Method AlignMethod
	// NeuriteType is the type of the aligned neurite; undefined means
	// apical dendrites.
	NeuriteType morph.SectionType
	// TuftPercent is used to find the apical point for AlignTrunk;
	// zero means DefaultTuftPercent.
	TuftPercent float64
	// Logger receives a warning when AlignTrunk finds no apical
	// point. Nil means slog.Default().
	Logger *slog.Logger
}

func (o AlignOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o AlignOptions) points(m *morph.Morphology) []r3.Vec {
	typ := o.NeuriteType
	if typ == morph.SectionUndefined {
		typ = morph.SectionApicalDendrite
	}
	var pts []r3.Vec
	switch o.Method {
	case AlignWhole:
		for s := range m.Sections() {
			if s.Type == typ {
				pts = append(pts, s.Points...)
			}
		}
	case AlignFirstSection, AlignFirstSegment:
		for _, r := range m.RootSections() {
			if r.Type != typ {
				continue
			}
			pts = r.Points
			if o.Method == AlignFirstSegment {
				pts = pts[:2]
			}
			break
		}
	case AlignTrunk:
		t := o.TuftPercent
		if t == 0 {
			t = DefaultTuftPercent
		}
		_, id, ok := ApicalPoint(m, t)
		if !ok {
			o.logger().Warn("no apical point, trunk alignment skipped")
			return nil
		}
		var up []*morph.Section
		for s := range m.Upstream(id) {
			up = append(up, s)
		}
		for i := len(up) - 1; i >= 0; i-- {
			pts = append(pts, up[i].Points...)
		}
	}
	return pts
}

// principalDirection returns the unit eigenvector of the largest
// eigenvalue of the covariance of pts, pointing the same way as the
// sum of the points.
func principalDirection(pts []r3.Vec) (r3.Vec, bool) {
	x := mat.NewDense(len(pts), 3, nil)
	var sum r3.Vec
	for i, p := range pts {
		x.SetRow(i, []float64{p.X, p.Y, p.Z})
		sum = r3.Add(sum, p)
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)
	var eig mat.EigenSym
	if !eig.Factorize(&cov, true) {
		return r3.Vec{}, false
	}
	if eig.Values(nil)[2] <= 0 {
		return r3.Vec{}, false
	}
	var ev mat.Dense
	eig.VectorsTo(&ev)
	d := r3.Vec{X: ev.At(0, 2), Y: ev.At(1, 2), Z: ev.At(2, 2)}
	if r3.Dot(d, sum) < 0 {
		d = r3.Scale(-1, d)
	}
	return r3.Unit(d), true
}

// RotationBetween returns the rotation matrix taking the direction of
// a onto the direction of b.
func RotationBetween(a, b r3.Vec) *mat.Dense {
	a, b = r3.Unit(a), r3.Unit(b)
	v := r3.Cross(a, b)
	s, c := r3.Norm(v), r3.Dot(a, b)
	r := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if s < 1e-12 {
		if c > 0 {
			return r
		}
		// Half turn about any axis perpendicular to a.
		e := r3.Vec{X: 1}
		if math.Abs(a.Y) < math.Abs(a.X) && math.Abs(a.Y) <= math.Abs(a.Z) {
			e = r3.Vec{Y: 1}
		} else if math.Abs(a.Z) < math.Abs(a.X) && math.Abs(a.Z) < math.Abs(a.Y) {
			e = r3.Vec{Z: 1}
		}
		u := r3.Unit(r3.Cross(a, e))
		uv := mat.NewVecDense(3, []float64{u.X, u.Y, u.Z})
		r.Scale(-1, r)
		r.RankOne(r, 2, uv, uv)
		return r
	}
	k := mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
	var k2 mat.Dense
	k2.Mul(k, k)
	k2.Scale((1-c)/(s*s), &k2)
	r.Add(r, k)
	r.Add(r, &k2)
	return r
}

// AlignToDirection rotates m about the origin so that the principal
// direction of the chosen neurite points along direction. It returns
// the applied rotation. If fewer than two points are selected m is
// left alone and the identity is returned.
func AlignToDirection(m *morph.Morphology, direction r3.Vec, opts AlignOptions) (*mat.Dense, error) {
	if direction == (r3.Vec{}) {
		return nil, errors.New("cannot align to a zero direction")
	}
	ident := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	pts := opts.points(m)
	if len(pts) < 2 {
		return ident, nil
	}
	d, ok := principalDirection(pts)
	if !ok {
		return ident, nil
	}
	r := RotationBetween(d, direction)
	if err := m.Rotate(r); err != nil {
		return nil, err
	}
	return r, nil
}
