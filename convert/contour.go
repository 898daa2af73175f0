package convert

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/morph"
)

const (
	// DefaultContourPoints is the number of points of a sphere contour.
	DefaultContourPoints = 20
	// DefaultContourLineWidth is the diameter given to each point of a
	// sphere contour. It only affects how Neurolucida draws the line.
	DefaultContourLineWidth = 0.25

	contourSamples  = 101
	cylinderSamples = 21
)

// interp evaluates at x the piecewise linear function through
// (xp[i], fp[i]), clamping outside the range of xp. xp must be
// non-decreasing.
func interp(x float64, xp, fp []float64) float64 {
	n := len(xp)
	if x <= xp[0] {
		return fp[0]
	}
	if x >= xp[n-1] {
		return fp[n-1]
	}
	j := sort.SearchFloat64s(xp, x)
	if xp[j] == x {
		return fp[j]
	}
	t := (x - xp[j-1]) / (xp[j] - xp[j-1])
	return fp[j-1] + t*(fp[j]-fp[j-1])
}

// ContourCenter resamples the closed polygon through points at 101
// positions equally spaced by arc length, and returns their mean
// along with the resampled points. Distances are measured in 3D.
// It returns the zero vector and no points for an empty contour.
func ContourCenter(points []r3.Vec) (r3.Vec, []r3.Vec) {
	if len(points) == 0 {
		return r3.Vec{}, nil
	}
	closed := append(append([]r3.Vec(nil), points...), points[0])
	steps := make([]float64, len(closed))
	for i := 1; i < len(closed); i++ {
		steps[i] = r3.Norm(r3.Sub(closed[i], closed[i-1]))
	}
	perim := floats.CumSum(make([]float64, len(steps)), steps)

	d := floats.Span(make([]float64, contourSamples), 0, perim[len(perim)-1])
	xs, ys, zs := make([]float64, len(closed)), make([]float64, len(closed)), make([]float64, len(closed))
	for i, p := range closed {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	res := make([]r3.Vec, contourSamples)
	var mean r3.Vec
	for i, x := range d {
		res[i] = r3.Vec{X: interp(x, perim, xs), Y: interp(x, perim, ys), Z: interp(x, perim, zs)}
		mean = r3.Add(mean, res[i])
	}
	return r3.Scale(1/float64(contourSamples), mean), res
}

// principalAxes returns the eigenvectors of the scatter matrix of
// points (already centered) with the largest and middle eigenvalues.
// Signs are fixed so that the largest component of each is negative,
// matching NEURON.
func principalAxes(points []r3.Vec) (major, middle r3.Vec, err error) {
	scatter := mat.NewSymDense(3, nil)
	for _, p := range points {
		v := [3]float64{p.X, p.Y, p.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				scatter.SetSym(i, j, scatter.At(i, j)+v[i]*v[j])
			}
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(scatter, true) {
		return major, middle, errors.Wrap(ErrDegenerate, "eigen decomposition failed")
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	col := func(j int) r3.Vec {
		v := r3.Vec{X: vecs.At(0, j), Y: vecs.At(1, j), Z: vecs.At(2, j)}
		c := []float64{v.X, v.Y, v.Z}
		if c[floats.MaxIdx(absAll(c))] > 0 {
			v = r3.Scale(-1, v)
		}
		return v
	}
	// Values are in ascending order.
	return col(2), col(1), nil
}

func absAll(v []float64) []float64 {
	r := make([]float64, len(v))
	for i, x := range v {
		r[i] = math.Abs(x)
	}
	return r
}

// contourSides splits the contour into the two paths from its lowest
// to its highest point along major, returned as major and minor
// coordinates with major increasing.
func contourSides(points []r3.Vec, major, minor r3.Vec) (sides, rads [2][]float64) {
	n := len(points)
	mj, mn := make([]float64, n), make([]float64, n)
	for i, p := range points {
		mj[i], mn[i] = r3.Dot(p, major), r3.Dot(p, minor)
	}
	imax := floats.MaxIdx(mj)
	rolled := func(v []float64) []float64 {
		return append(append([]float64(nil), v[imax:]...), v[:imax]...)
	}
	mj, mn = rolled(mj), rolled(mn)
	imin := floats.MinIdx(mj)

	for i := imin - 1; i >= 0; i-- {
		sides[0] = append(sides[0], mj[i])
		rads[0] = append(rads[0], mn[i])
	}
	sides[1] = append(sides[1], mj[imin:]...)
	rads[1] = append(rads[1], mn[imin:]...)
	return sides, rads
}

// makeConvex keeps the points of a side that make its major
// coordinate strictly increasing towards its last point.
func makeConvex(side, rad []float64) ([]float64, []float64) {
	if len(side) == 0 {
		return side, rad
	}
	keep := make([]bool, len(side))
	keep[len(side)-1] = true
	last := side[len(side)-1]
	for i := len(side) - 2; i >= 0; i-- {
		if side[i] < last {
			last = side[i]
			keep[i] = true
		}
	}
	var s, r []float64
	for i, k := range keep {
		if k {
			s = append(s, side[i])
			r = append(r, rad[i])
		}
	}
	return s, r
}

func distinctPoints(points []r3.Vec) int {
	seen := map[r3.Vec]bool{}
	for _, p := range points {
		seen[p] = true
	}
	return len(seen)
}

// projectedArea is the area of the contour in the plane spanned by
// major and minor.
func projectedArea(points []r3.Vec, major, minor r3.Vec) float64 {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, orb.Point{r3.Dot(p, major), r3.Dot(p, minor)})
	}
	ring = append(ring, ring[0])
	return math.Abs(planar.Area(ring))
}

// ContourToCylinders replaces a contour soma by the stack of 21
// cylinders NEURON derives from it: the contour is cut along its
// major axis and each cylinder spans the contour across the minor
// axis.
func ContourToCylinders(s morph.Soma) (morph.Soma, error) {
	if s.Type != morph.SomaSimpleContour {
		return morph.Soma{}, &SomaTypeError{Type: s.Type}
	}
	if distinctPoints(s.Points) < 3 {
		return morph.Soma{}, errors.Wrapf(ErrDegenerate, "contour has %d distinct points, need 3", distinctPoints(s.Points))
	}

	mean, resampled := ContourCenter(s.Points)
	centered := make([]r3.Vec, len(resampled))
	for i, p := range resampled {
		centered[i] = r3.Sub(p, mean)
	}
	major, minor, err := principalAxes(centered)
	if err != nil {
		return morph.Soma{}, err
	}
	minor.Z = 0
	if r3.Norm(minor) < 1e-10 {
		return morph.Soma{}, errors.Wrap(ErrDegenerate, "contour has no minor axis in the xy plane")
	}
	minor = r3.Unit(minor)

	scale := 0.0
	for _, p := range centered {
		scale = math.Max(scale, r3.Norm2(p))
	}
	if projectedArea(centered, major, minor) <= 1e-12*scale {
		return morph.Soma{}, errors.Wrap(ErrDegenerate, "contour encloses no area")
	}

	sides, rads := contourSides(centered, major, minor)
	for i := range sides {
		sides[i], rads[i] = makeConvex(sides[i], rads[i])
	}
	if len(sides[0]) == 0 || len(sides[1]) == 0 {
		return morph.Soma{}, errors.Wrap(ErrDegenerate, "contour has a single side")
	}
	tobj := append(append([]float64(nil), sides[0]...), sides[1]...)
	sort.Float64s(tobj)
	if len(tobj) < 4 {
		return morph.Soma{}, errors.Wrapf(ErrDegenerate, "only %d convex contour points", len(tobj))
	}

	coords := floats.Span(make([]float64, cylinderSamples), tobj[1], tobj[len(tobj)-2])
	out := morph.Soma{
		Type:      morph.SomaCylinders,
		Points:    make([]r3.Vec, cylinderSamples),
		Diameters: make([]float64, cylinderSamples),
	}
	for i, c := range coords {
		r0 := interp(c, sides[0], rads[0])
		r1 := interp(c, sides[1], rads[1])
		out.Points[i] = r3.Add(r3.Scale(c, major), mean)
		out.Diameters[i] = math.Abs(r0 - r1)
	}
	d := out.Diameters
	d[0] = (d[0] + d[1]) / 2
	d[len(d)-1] = (d[len(d)-2] + d[len(d)-1]) / 2
	return out, nil
}

// CylindersToContour outlines a stack of cylinders in a plane
// containing its axis: one side of the stack, then the other side
// backwards.
func CylindersToContour(s morph.Soma) (morph.Soma, error) {
	if s.Type != morph.SomaCylinders {
		return morph.Soma{}, &SomaTypeError{Type: s.Type}
	}
	if len(s.Points) == 0 {
		return morph.Soma{}, errors.Wrap(ErrDegenerate, "cylinder stack has no points")
	}
	first := s.Points[0]
	last := len(s.Points) - 1
	for last > 0 && s.Points[last] == first {
		last--
	}
	if last == 0 {
		return morph.Soma{}, errors.Wrapf(ErrAllPointsEqual, "all %d soma points are at %v", len(s.Points), first)
	}
	dir := r3.Sub(s.Points[last], first)

	// Rotate a quarter turn about z, or about x when dir is along z.
	orth := r3.Vec{X: dir.Y, Y: -dir.X}
	if r3.Norm(orth) < 1e-10 {
		orth = r3.Vec{Y: dir.Z, Z: -dir.Y}
	}
	orth = r3.Unit(orth)

	n := len(s.Points)
	out := morph.Soma{
		Type:      morph.SomaSimpleContour,
		Points:    make([]r3.Vec, 2*n),
		Diameters: make([]float64, 2*n),
	}
	for i, p := range s.Points {
		off := r3.Scale(s.Diameters[i]/2, orth)
		out.Points[i] = r3.Add(p, off)
		out.Points[2*n-1-i] = r3.Sub(p, off)
	}
	return out, nil
}

// CreateContour returns a contour of n points on the circle of the
// given radius about center in the plane z = center.Z. Point i is at
// angle 2πi/n measured from the y axis towards the x axis.
func CreateContour(center r3.Vec, radius float64, n int, lineWidth float64) morph.Soma {
	s := morph.Soma{
		Type:      morph.SomaSimpleContour,
		Points:    make([]r3.Vec, n),
		Diameters: make([]float64, n),
	}
	for i := range s.Points {
		phase := 2 * math.Pi / float64(n) * float64(i)
		s.Points[i] = r3.Add(center, r3.Vec{X: radius * math.Sin(phase), Y: radius * math.Cos(phase)})
		s.Diameters[i] = lineWidth
	}
	return s
}

// SphereContour is CreateContour with the default point count and
// line width.
func SphereContour(center r3.Vec, radius float64) morph.Soma {
	return CreateContour(center, radius, DefaultContourPoints, DefaultContourLineWidth)
}

// sphere returns the center and radius of the sphere represented by
// a single point or three point soma.
func sphere(s morph.Soma) (r3.Vec, float64, error) {
	switch s.Type {
	case morph.SomaSinglePoint, morph.SomaNeuromorphoThreePointCylinders:
	default:
		return r3.Vec{}, 0, &SomaTypeError{Type: s.Type}
	}
	if len(s.Points) == 0 {
		return r3.Vec{}, 0, errors.Wrapf(ErrDegenerate, "%v soma has no points", s.Type)
	}
	return s.Points[0], s.Diameters[0] / 2, nil
}

// SinglePointToContour replaces a single point soma by a circular
// contour representing the same sphere.
func SinglePointToContour(s morph.Soma) (morph.Soma, error) {
	if s.Type != morph.SomaSinglePoint {
		return morph.Soma{}, &SomaTypeError{Type: s.Type}
	}
	c, r, err := sphere(s)
	if err != nil {
		return morph.Soma{}, err
	}
	return SphereContour(c, r), nil
}

// ThreePointToContour replaces a NeuroMorpho three point soma by a
// circular contour representing the same sphere.
func ThreePointToContour(s morph.Soma) (morph.Soma, error) {
	if s.Type != morph.SomaNeuromorphoThreePointCylinders {
		return morph.Soma{}, &SomaTypeError{Type: s.Type}
	}
	c, r, err := sphere(s)
	if err != nil {
		return morph.Soma{}, err
	}
	return SphereContour(c, r), nil
}
