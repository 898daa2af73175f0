package morph

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrNoAxon       = errors.New("no axon found")
	ErrTooManyAxons = errors.New("too many axons found")
)

// FindAxon returns the single root section of type axon.
func (m *Morphology) FindAxon() (*Section, error) {
	var axons []*Section
	for _, r := range m.RootSections() {
		if r.Type == SectionAxon {
			axons = append(axons, r)
		}
	}
	switch len(axons) {
	case 0:
		return nil, ErrNoAxon
	case 1:
		return axons[0], nil
	}
	return nil, ErrTooManyAxons
}

// GraftAxon replaces the axon of m by a copy of the subtree of donor
// rooted at section root, translated so that it starts where the old
// axon did. No other check is made.
func (m *Morphology) GraftAxon(donor *Morphology, root int) error {
	old, err := m.FindAxon()
	if err != nil {
		return err
	}
	start := old.Points[0]
	if err := m.DeleteSection(old.ID, true); err != nil {
		return err
	}
	s, err := m.AppendSubtree(-1, donor, root)
	if err != nil {
		return err
	}
	m.TranslateSection(s.ID, r3.Sub(start, s.Points[0]))
	return nil
}
