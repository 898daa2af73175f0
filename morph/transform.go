package morph

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Bounds describes an axis-aligned bounding box.
type Bounds struct {
	Min, Max r3.Vec
}

// Contains reports whether p lies strictly inside b. Infinite bounds
// leave an axis unconstrained.
func (b Bounds) Contains(p r3.Vec) bool {
	return p.X > b.Min.X && p.X < b.Max.X &&
		p.Y > b.Min.Y && p.Y < b.Max.Y &&
		p.Z > b.Min.Z && p.Z < b.Max.Z
}

// Bounds returns the box that exactly contains the section points.
// If there are no sections, the bounds are zero.
func (m *Morphology) Bounds() Bounds {
	inf := math.Inf(1)
	min := r3.Vec{X: inf, Y: inf, Z: inf}
	max := r3.Vec{X: -inf, Y: -inf, Z: -inf}
	i := 0
	for s := range m.Sections() {
		for _, v := range s.Points {
			i++
			min = r3.Vec{X: math.Min(min.X, v.X), Y: math.Min(min.Y, v.Y), Z: math.Min(min.Z, v.Z)}
			max = r3.Vec{X: math.Max(max.X, v.X), Y: math.Max(max.Y, v.Y), Z: math.Max(max.Z, v.Z)}
		}
	}
	if i == 0 {
		return Bounds{}
	}
	return Bounds{Min: min, Max: max}
}

func (m *Morphology) apply(f func(r3.Vec) r3.Vec) {
	for i, p := range m.Soma.Points {
		m.Soma.Points[i] = f(p)
	}
	for s := range m.Sections() {
		applySection(s, f)
	}
}

func applySection(s *Section, f func(r3.Vec) r3.Vec) {
	for i, p := range s.Points {
		s.Points[i] = f(p)
	}
}

// Translate moves the soma and all sections by shift.
func (m *Morphology) Translate(shift r3.Vec) {
	m.apply(func(p r3.Vec) r3.Vec { return r3.Add(p, shift) })
}

// TranslateSection moves the section id and its subtree by shift.
func (m *Morphology) TranslateSection(id int, shift r3.Vec) {
	for s := range m.Subtree(id) {
		applySection(s, func(p r3.Vec) r3.Vec { return r3.Add(p, shift) })
	}
}

// Rotate applies the 3x3 matrix a, about the origin, to the soma and
// all sections.
func (m *Morphology) Rotate(a mat.Matrix) error {
	if r, c := a.Dims(); r != 3 || c != 3 {
		return errors.Errorf("rotation should be a 3x3 matrix, got %dx%d", r, c)
	}
	m.apply(func(p r3.Vec) r3.Vec { return mulVec(a, p, 0) })
	return nil
}

// Transform applies the 4x4 affine matrix a to the soma and all
// sections.
func (m *Morphology) Transform(a mat.Matrix) error {
	if r, c := a.Dims(); r != 4 || c != 4 {
		return errors.Errorf("transform should be a 4x4 matrix, got %dx%d", r, c)
	}
	m.apply(func(p r3.Vec) r3.Vec { return mulVec(a, p, 1) })
	return nil
}

// mulVec computes the first three rows of a * (p, w).
func mulVec(a mat.Matrix, p r3.Vec, w float64) r3.Vec {
	x := [4]float64{p.X, p.Y, p.Z, w}
	_, c := a.Dims()
	var r [3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < c; j++ {
			r[i] += a.At(i, j) * x[j]
		}
	}
	return r3.Vec{X: r[0], Y: r[1], Z: r[2]}
}

// RemoveUnifurcations merges every section that has exactly one child
// with that child. The merged section keeps its own type.
func (m *Morphology) RemoveUnifurcations() {
	for _, s := range m.sections {
		if s == nil {
			continue
		}
		for len(s.Children) == 1 {
			c := m.sections[s.Children[0]]
			start := 0
			if len(c.Points) > 0 && len(s.Points) > 0 && c.Points[0] == s.Points[len(s.Points)-1] {
				start = 1
			}
			s.Points = append(s.Points, c.Points[start:]...)
			s.Diameters = append(s.Diameters, c.Diameters[start:]...)
			if len(s.Perimeters) > 0 && len(c.Perimeters) > 0 {
				s.Perimeters = append(s.Perimeters, c.Perimeters[start:]...)
			}
			s.Children = c.Children
			for _, gc := range c.Children {
				m.sections[gc].Parent = s.ID
			}
			m.sections[c.ID] = nil
		}
	}
}
