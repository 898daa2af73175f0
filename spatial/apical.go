package spatial

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/morph"
)

// DefaultTuftPercent is the share of the apical height searched for
// tuft leaves.
const DefaultTuftPercent = 20

// ErrNoApicalPoint is returned when a morphology has no apical
// dendrite to find the apical point of.
var ErrNoApicalPoint = errors.New("could not find apical point")

// ApicalPoint finds the point where the apical dendrite of a tufted
// neuron splits into its tuft. The leaves of the first apical
// dendrite ending in the last tuftPercent of its height are gathered,
// and the deepest section upstream of all of them is returned along
// with its last point. The height is measured along y, away from the
// soma.
func ApicalPoint(m *morph.Morphology, tuftPercent float64) (r3.Vec, int, bool) {
	var apical *morph.Section
	for _, r := range m.RootSections() {
		if r.Type == morph.SectionApicalDendrite {
			apical = r
			break
		}
	}
	if apical == nil {
		return r3.Vec{}, -1, false
	}

	minY, maxY := math.Inf(1), math.Inf(-1)
	common := map[int]bool{}
	for s := range m.Subtree(apical.ID) {
		common[s.ID] = true
		for _, p := range s.Points {
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	meanY := 0.0
	for _, p := range apical.Points {
		meanY += p.Y
	}
	meanY /= float64(len(apical.Points))

	var lo, hi float64
	if m.Soma.Center().Y < meanY {
		hi = maxY
		lo = (1 - tuftPercent/100) * hi
	} else {
		lo = minY
		hi = (1 - tuftPercent/100) * lo
	}

	for s := range m.Subtree(apical.ID) {
		if !s.IsLeaf() {
			continue
		}
		if end := s.Points[len(s.Points)-1].Y; end < lo || end > hi {
			continue
		}
		up := map[int]bool{}
		for u := range m.Upstream(s.ID) {
			up[u.ID] = true
		}
		for id := range common {
			if !up[id] {
				delete(common, id)
			}
		}
	}

	for s := range m.Subtree(apical.ID) {
		if !common[s.ID] {
			continue
		}
		delete(common, s.ID)
		if len(common) == 0 {
			return s.Points[len(s.Points)-1], s.ID, true
		}
	}
	return r3.Vec{}, -1, false
}

// ApicalPointSectionSegment returns the section and point index of
// the apical point.
func ApicalPointSectionSegment(m *morph.Morphology, tuftPercent float64) (int, int, error) {
	p, _, ok := ApicalPoint(m, tuftPercent)
	if !ok {
		return -1, -1, ErrNoApicalPoint
	}
	return PointToSectionSegment(m, p, DefaultRTol, DefaultATol)
}
