package morph

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// pathLengths returns the cumulative length along points, starting at 0.
func pathLengths(points []r3.Vec) []float64 {
	seg := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		seg[i] = r3.Norm(r3.Sub(points[i], points[i-1]))
	}
	return floats.CumSum(seg, seg)
}

// resampleSites places the interior points of a resampling at the
// given linear density. Point k lies a fraction fracs[k] of the way
// along segment ids[k].
func resampleSites(points []r3.Vec, density float64) (ids []int, fracs []float64) {
	cum := pathLengths(points)
	total := cum[len(cum)-1]
	if total <= 0 || density <= 0 {
		return nil, nil
	}
	n := int(total * density)
	if n < 1 {
		n = 1
	}
	dl := total / float64(n)
	for k := 1; k < n; k++ {
		x := float64(k) * dl
		i := sort.SearchFloat64s(cum, x) - 1
		if i < 0 {
			i = 0
		}
		if i > len(cum)-2 {
			i = len(cum) - 2
		}
		var f float64
		if l := cum[i+1] - cum[i]; l > 0 {
			f = (x - cum[i]) / l
		}
		ids = append(ids, i)
		fracs = append(fracs, f)
	}
	return ids, fracs
}

func lerpValues(v []float64, ids []int, fracs []float64) []float64 {
	r := make([]float64, 0, len(ids)+2)
	r = append(r, v[0])
	for k, i := range ids {
		r = append(r, v[i]+fracs[k]*(v[i+1]-v[i]))
	}
	return append(r, v[len(v)-1])
}

func lerpPoints(v []r3.Vec, ids []int, fracs []float64) []r3.Vec {
	r := make([]r3.Vec, 0, len(ids)+2)
	r = append(r, v[0])
	for k, i := range ids {
		r = append(r, r3.Add(v[i], r3.Scale(fracs[k], r3.Sub(v[i+1], v[i]))))
	}
	return append(r, v[len(v)-1])
}

// ResampleLinearDensity returns a copy of m whose sections are
// resampled to about density points per unit length. The first and
// last points of each section are kept verbatim; topology and soma are
// untouched. Perimeters are resampled for glia only. m is not modified.
func (m *Morphology) ResampleLinearDensity(density float64) *Morphology {
	c := m.Copy()
	for s := range c.Sections() {
		if len(s.Points) < 2 {
			continue
		}
		ids, fracs := resampleSites(s.Points, density)
		s.Points = lerpPoints(s.Points, ids, fracs)
		s.Diameters = lerpValues(s.Diameters, ids, fracs)
		switch {
		case c.Family == FamilyGlia && len(s.Perimeters) > 0:
			s.Perimeters = lerpValues(s.Perimeters, ids, fracs)
		case len(s.Perimeters) != len(s.Points):
			s.Perimeters = nil
		}
	}
	return c
}
