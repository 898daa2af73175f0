package morph

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// sqLineDist is the squared distance from v to the line through s and
// e: the squared norm of the rejection of v-s from e-s.
func sqLineDist(v, s, e r3.Vec) float64 {
	d := r3.Sub(v, s)
	l := r3.Sub(e, s)
	ll := r3.Dot(l, l)
	if ll == 0 {
		return r3.Dot(d, d)
	}
	proj := r3.Scale(r3.Dot(d, l)/ll, l)
	return r3.Norm2(r3.Sub(proj, d))
}

// simplifyMask runs Ramer-Douglas-Peucker over v and returns which
// points to keep. Spans covering fewer than three steps are not split
// further.
func simplifyMask(v []r3.Vec, tol float64) []bool {
	keep := make([]bool, len(v))
	if math.Abs(tol) <= 1e-8 {
		for i := range keep {
			keep[i] = true
		}
		return keep
	}
	keep[0] = true
	keep[len(v)-1] = true
	tol2 := tol * tol

	type span struct{ beg, end int }
	stack := []span{{0, len(v) - 1}}
	for len(stack) > 0 {
		sp := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if sp.end-sp.beg < 3 {
			continue
		}
		worst := -1
		worstD := 0.0
		for i := sp.beg + 1; i < sp.end; i++ {
			d := sqLineDist(v[i], v[sp.beg], v[sp.end])
			if worst < 0 || d > worstD {
				worst = i
				worstD = d
			}
		}
		if worstD > tol2 {
			keep[worst] = true
			stack = append(stack, span{worst, sp.end}, span{sp.beg, worst})
		}
	}
	return keep
}

func maskPoints(v []r3.Vec, keep []bool) []r3.Vec {
	var r []r3.Vec
	for i, k := range keep {
		if k {
			r = append(r, v[i])
		}
	}
	return r
}

func maskValues(v []float64, keep []bool) []float64 {
	var r []float64
	for i, k := range keep {
		if k {
			r = append(r, v[i])
		}
	}
	return r
}

// Simplify returns a copy of m with points removed from each section
// by Ramer-Douglas-Peucker with distance tolerance tol. Section
// endpoints are always kept and no new points are created; a tol of
// zero keeps everything. m is not modified.
func (m *Morphology) Simplify(tol float64) *Morphology {
	c := m.Copy()
	for s := range c.Sections() {
		if len(s.Points) <= 2 {
			continue
		}
		keep := simplifyMask(s.Points, tol)
		s.Points = maskPoints(s.Points, keep)
		s.Diameters = maskValues(s.Diameters, keep)
		if len(s.Perimeters) > 0 {
			s.Perimeters = maskValues(s.Perimeters, keep)
		}
	}
	return c
}
