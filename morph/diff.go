package morph

import (
	"fmt"
	"iter"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// DiffResult is the outcome of comparing two morphologies. Info
// explains the first difference found (or all of them).
type DiffResult struct {
	Different bool
	Info      string
}

// DiffOptions controls Diff. The zero value compares exactly and
// stops at the first difference.
type DiffOptions struct {
	RTol, ATol     float64
	SkipPerimeters bool
	AllDiffs       bool
}

// DefaultDiffOptions returns the usual tolerances.
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{RTol: 1e-5, ATol: 1e-8}
}

// IsClose reports whether |a-b| <= atol + rtol*|b|.
func IsClose(a, b, rtol, atol float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= atol+rtol*math.Abs(b)
}

// VecIsClose applies IsClose componentwise.
func VecIsClose(a, b r3.Vec, rtol, atol float64) bool {
	return IsClose(a.X, b.X, rtol, atol) && IsClose(a.Y, b.Y, rtol, atol) && IsClose(a.Z, b.Z, rtol, atol)
}

// Diff compares the sections of a and b, paired in depth-first order:
// their points, diameters, perimeters, types and number of children.
// Somata are ignored.
func Diff(a, b *Morphology, opts DiffOptions) DiffResult {
	if len(a.roots) != len(b.roots) {
		return DiffResult{Different: true, Info: "Both morphologies have a different number of root sections"}
	}
	var diffs []string
	report := func(s string) bool {
		diffs = append(diffs, s)
		return !opts.AllDiffs
	}

	next1, stop1 := iter.Pull(a.Sections())
	defer stop1()
	next2, stop2 := iter.Pull(b.Sections())
	defer stop2()
	for {
		s1, ok1 := next1()
		s2, ok2 := next2()
		if !ok1 || !ok2 {
			break
		}
		for _, at := range sectionAttrs(opts.SkipPerimeters) {
			if d := at.diff(s1, s2, opts); d != "" && report(d) {
				return DiffResult{Different: true, Info: d}
			}
		}
		if s1.Type != s2.Type {
			if report(fmt.Sprintf("%v and %v have different section types", s1, s2)) {
				return DiffResult{Different: true, Info: diffs[0]}
			}
		}
		if len(s1.Children) != len(s2.Children) {
			if report(fmt.Sprintf("%v and %v have a different number of children", s1, s2)) {
				return DiffResult{Different: true, Info: diffs[0]}
			}
		}
	}
	if len(diffs) > 0 {
		return DiffResult{Different: true, Info: strings.Join(diffs, "\n\n")}
	}
	return DiffResult{}
}

type sectionAttr struct {
	name string
	// n and at view the attribute as a vector of rows.
	n    func(s *Section) int
	cols int
	at   func(s *Section, i int) []float64
}

func sectionAttrs(skipPerimeters bool) []sectionAttr {
	attrs := []sectionAttr{
		{
			name: "points",
			n:    func(s *Section) int { return len(s.Points) },
			cols: 3,
			at: func(s *Section, i int) []float64 {
				p := s.Points[i]
				return []float64{p.X, p.Y, p.Z}
			},
		},
		{
			name: "diameters",
			n:    func(s *Section) int { return len(s.Diameters) },
			at:   func(s *Section, i int) []float64 { return []float64{s.Diameters[i]} },
		},
	}
	if !skipPerimeters {
		attrs = append(attrs, sectionAttr{
			name: "perimeters",
			n:    func(s *Section) int { return len(s.Perimeters) },
			at:   func(s *Section, i int) []float64 { return []float64{s.Perimeters[i]} },
		})
	}
	return attrs
}

func (at sectionAttr) shape(s *Section) string {
	if at.cols > 0 {
		return fmt.Sprintf("(%d, %d)", at.n(s), at.cols)
	}
	return fmt.Sprintf("(%d,)", at.n(s))
}

func fmtRow(v []float64) string {
	if len(v) == 1 {
		return fmtFloat(v[0])
	}
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmtFloat(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (at sectionAttr) diff(s1, s2 *Section, opts DiffOptions) string {
	if at.n(s1) != at.n(s2) {
		return fmt.Sprintf("Attributes Section.%s of:\n%v\n%v\nhave different shapes: %s vs %s",
			at.name, s1, s2, at.shape(s1), at.shape(s2))
	}
	for i := 0; i < at.n(s1); i++ {
		v1, v2 := at.at(s1, i), at.at(s2, i)
		for j := range v1 {
			if !IsClose(v1[j], v2[j], opts.RTol, opts.ATol) {
				return fmt.Sprintf("Attributes Section.%s of:\n%v\n%v\nhave the same shape but different values\n"+
					"Vector %s differs at index %d: %s != %s", at.name, s1, s2, at.name, i, fmtRow(v1), fmtRow(v2))
			}
		}
	}
	return ""
}
