// Package spatial locates landmark points of morphologies, such as
// the apical point and the end of the main axon, and aligns
// morphologies along the principal direction of a neurite.
package spatial

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/morph"
)

// ErrPointNotFound is returned when no section point matches.
var ErrPointNotFound = errors.New("cannot find point in morphology")

// Default tolerances of PointToSectionSegment.
const (
	DefaultRTol = 1e-5
	DefaultATol = 1e-8
)

// PointToSectionSegment returns the id of the first section, in depth
// first order, holding a point close to p, along with the index of
// the first such point. Coordinates match when
// |q-p| <= atol + rtol*|p| for each of x, y and z.
func PointToSectionSegment(m *morph.Morphology, p r3.Vec, rtol, atol float64) (int, int, error) {
	for s := range m.Sections() {
		for i, q := range s.Points {
			if morph.VecIsClose(q, p, rtol, atol) {
				return s.ID, i, nil
			}
		}
	}
	return -1, -1, errors.Wrapf(ErrPointNotFound, "%v", p)
}
