// Package morph provides an in-memory neuron morphology: a soma and
// a tree of sections, each section a polyline of 3d points with
// diameters.
package morph

import (
	"fmt"
	"iter"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// SectionType is the type tag of a section. Values follow the SWC
// numbering.
type SectionType int

const (
	SectionUndefined SectionType = iota
	SectionSoma
	SectionAxon
	SectionBasalDendrite
	SectionApicalDendrite
	SectionCustom5
	SectionCustom6
	SectionCustom7
	SectionCustom8
	SectionCustom9
	SectionCustom10
)

var sectionTypeNames = [...]string{
	SectionUndefined:      "undefined",
	SectionSoma:           "soma",
	SectionAxon:           "axon",
	SectionBasalDendrite:  "basal_dendrite",
	SectionApicalDendrite: "apical_dendrite",
	SectionCustom5:        "custom5",
	SectionCustom6:        "custom6",
	SectionCustom7:        "custom7",
	SectionCustom8:        "custom8",
	SectionCustom9:        "custom9",
	SectionCustom10:       "custom10",
}

func (t SectionType) String() string {
	if t < 0 || int(t) >= len(sectionTypeNames) {
		return fmt.Sprintf("SectionType(%d)", int(t))
	}
	return sectionTypeNames[t]
}

// IsCustom reports whether t is one of the custom section types.
func (t SectionType) IsCustom() bool {
	return t >= SectionCustom5 && t <= SectionCustom10
}

// SomaType says how the soma points and diameters are to be read.
type SomaType int

const (
	SomaUndefined SomaType = iota
	SomaSinglePoint
	SomaNeuromorphoThreePointCylinders
	SomaCylinders
	SomaSimpleContour
)

func (t SomaType) String() string {
	switch t {
	case SomaUndefined:
		return "SOMA_UNDEFINED"
	case SomaSinglePoint:
		return "SOMA_SINGLE_POINT"
	case SomaNeuromorphoThreePointCylinders:
		return "SOMA_NEUROMORPHO_THREE_POINT_CYLINDERS"
	case SomaCylinders:
		return "SOMA_CYLINDERS"
	case SomaSimpleContour:
		return "SOMA_SIMPLE_CONTOUR"
	}
	return fmt.Sprintf("SomaType(%d)", int(t))
}

// CellFamily distinguishes neurons from glia. Only glia carry
// perimeters.
type CellFamily int

const (
	FamilyNeuron CellFamily = iota
	FamilyGlia
)

func (f CellFamily) String() string {
	if f == FamilyGlia {
		return "glia"
	}
	return "neuron"
}

// Soma is the cell body. Type determines the geometric meaning of
// Points and Diameters; anything changing Type must rewrite both.
type Soma struct {
	Type      SomaType
	Points    []r3.Vec
	Diameters []float64
}

// Center returns the mean of the soma points, or the zero vector
// if there are none.
func (s *Soma) Center() r3.Vec {
	var c r3.Vec
	if len(s.Points) == 0 {
		return c
	}
	for _, p := range s.Points {
		c = r3.Add(c, p)
	}
	return r3.Scale(1/float64(len(s.Points)), c)
}

// Copy returns a deep copy of the soma.
func (s Soma) Copy() Soma {
	return Soma{
		Type:      s.Type,
		Points:    append([]r3.Vec(nil), s.Points...),
		Diameters: append([]float64(nil), s.Diameters...),
	}
}

// A Section is an unbranched piece of neurite. Its first point
// coincides with the last point of its parent, if it has one.
type Section struct {
	ID         int
	Type       SectionType
	Points     []r3.Vec
	Diameters  []float64
	Perimeters []float64

	// Parent is -1 for root sections.
	Parent   int
	Children []int
}

// IsRoot reports whether the section hangs off the soma.
func (s *Section) IsRoot() bool { return s.Parent < 0 }

// IsLeaf reports whether the section has no children.
func (s *Section) IsLeaf() bool { return len(s.Children) == 0 }

func (s *Section) String() string {
	n := len(s.Points)
	switch n {
	case 0:
		return fmt.Sprintf("Section(id=%d, points=[])", s.ID)
	case 1:
		return fmt.Sprintf("Section(id=%d, points=[%s])", s.ID, fmtPoint(s.Points[0]))
	}
	return fmt.Sprintf("Section(id=%d, points=[%s,..., %s])", s.ID, fmtPoint(s.Points[0]), fmtPoint(s.Points[n-1]))
}

func fmtPoint(p r3.Vec) string {
	return fmt.Sprintf("(%g %g %g)", p.X, p.Y, p.Z)
}

func (s *Section) clone() *Section {
	return &Section{
		ID:         s.ID,
		Type:       s.Type,
		Points:     append([]r3.Vec(nil), s.Points...),
		Diameters:  append([]float64(nil), s.Diameters...),
		Perimeters: append([]float64(nil), s.Perimeters...),
		Parent:     s.Parent,
		Children:   append([]int(nil), s.Children...),
	}
}

// Morphology owns a soma and a forest of sections. Sections are
// stored by id; ids of deleted sections are never reused.
type Morphology struct {
	Soma   Soma
	Format Format
	Family CellFamily

	sections []*Section
	roots    []int
}

// New returns an empty morphology that records format as its origin.
func New(format Format) *Morphology {
	return &Morphology{Format: format}
}

var errBadSection = errors.New("invalid section")

func (m *Morphology) newSection(parent int, s Section) (*Section, error) {
	if len(s.Points) != len(s.Diameters) {
		return nil, errors.Wrapf(errBadSection, "%d points but %d diameters", len(s.Points), len(s.Diameters))
	}
	if len(s.Perimeters) != 0 && len(s.Perimeters) != len(s.Points) {
		return nil, errors.Wrapf(errBadSection, "%d points but %d perimeters", len(s.Points), len(s.Perimeters))
	}
	ns := &Section{
		ID:         len(m.sections),
		Type:       s.Type,
		Points:     append([]r3.Vec(nil), s.Points...),
		Diameters:  append([]float64(nil), s.Diameters...),
		Perimeters: append([]float64(nil), s.Perimeters...),
		Parent:     parent,
	}
	m.sections = append(m.sections, ns)
	return ns, nil
}

// AppendRootSection adds a new root section holding a copy of the
// data of s. The id, parent and children of s are ignored.
func (m *Morphology) AppendRootSection(s Section) (*Section, error) {
	ns, err := m.newSection(-1, s)
	if err != nil {
		return nil, err
	}
	m.roots = append(m.roots, ns.ID)
	return ns, nil
}

// AppendSection adds a new child of the section with the given id.
func (m *Morphology) AppendSection(parent int, s Section) (*Section, error) {
	p := m.Section(parent)
	if p == nil {
		return nil, errors.Errorf("no section with id %d", parent)
	}
	ns, err := m.newSection(parent, s)
	if err != nil {
		return nil, err
	}
	p.Children = append(p.Children, ns.ID)
	return ns, nil
}

// AppendSubtree copies the subtree of donor rooted at section root
// under the section parent of m (or as a root section if parent is
// -1). It returns the copy of root.
func (m *Morphology) AppendSubtree(parent int, donor *Morphology, root int) (*Section, error) {
	src := donor.Section(root)
	if src == nil {
		return nil, errors.Errorf("no section with id %d in donor", root)
	}
	var top *Section
	var err error
	if parent < 0 {
		top, err = m.AppendRootSection(*src)
	} else {
		top, err = m.AppendSection(parent, *src)
	}
	if err != nil {
		return nil, err
	}
	for _, c := range src.Children {
		if _, err := m.AppendSubtree(top.ID, donor, c); err != nil {
			return nil, err
		}
	}
	return top, nil
}

// Section returns the section with the given id, or nil.
func (m *Morphology) Section(id int) *Section {
	if id < 0 || id >= len(m.sections) {
		return nil
	}
	return m.sections[id]
}

// RootSections returns the root sections in order.
func (m *Morphology) RootSections() []*Section {
	r := make([]*Section, 0, len(m.roots))
	for _, id := range m.roots {
		r = append(r, m.sections[id])
	}
	return r
}

// NumSections returns the number of live sections.
func (m *Morphology) NumSections() int {
	n := 0
	for _, s := range m.sections {
		if s != nil {
			n++
		}
	}
	return n
}

// Sections iterates over all sections in depth-first pre-order,
// visiting root sections in order and children in order.
func (m *Morphology) Sections() iter.Seq[*Section] {
	return func(yield func(*Section) bool) {
		for _, r := range m.roots {
			if !m.preorder(r, yield) {
				return
			}
		}
	}
}

// Subtree iterates in pre-order over the section id and its
// descendants.
func (m *Morphology) Subtree(id int) iter.Seq[*Section] {
	return func(yield func(*Section) bool) {
		if m.Section(id) == nil {
			return
		}
		m.preorder(id, yield)
	}
}

func (m *Morphology) preorder(id int, yield func(*Section) bool) bool {
	stack := []int{id}
	for len(stack) > 0 {
		s := m.sections[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if !yield(s) {
			return false
		}
		for i := len(s.Children) - 1; i >= 0; i-- {
			stack = append(stack, s.Children[i])
		}
	}
	return true
}

// Upstream iterates from section id up to its root section.
func (m *Morphology) Upstream(id int) iter.Seq[*Section] {
	return func(yield func(*Section) bool) {
		for s := m.Section(id); s != nil; s = m.Section(s.Parent) {
			if !yield(s) {
				return
			}
		}
	}
}

// DeleteSection removes the section with the given id. If recursive
// is set its whole subtree goes too; otherwise its children are
// attached to its parent (or become root sections) in its place.
func (m *Morphology) DeleteSection(id int, recursive bool) error {
	s := m.Section(id)
	if s == nil {
		return errors.Errorf("no section with id %d", id)
	}
	siblings := &m.roots
	if !s.IsRoot() {
		siblings = &m.sections[s.Parent].Children
	}
	var repl []int
	if recursive {
		var doomed []int
		for d := range m.Subtree(id) {
			doomed = append(doomed, d.ID)
		}
		for _, d := range doomed {
			m.sections[d] = nil
		}
	} else {
		repl = s.Children
		for _, c := range s.Children {
			m.sections[c].Parent = s.Parent
		}
		m.sections[id] = nil
	}
	*siblings = spliceID(*siblings, id, repl)
	return nil
}

// spliceID replaces id in ids by repl.
func spliceID(ids []int, id int, repl []int) []int {
	r := make([]int, 0, len(ids)+len(repl))
	for _, x := range ids {
		if x == id {
			r = append(r, repl...)
			continue
		}
		r = append(r, x)
	}
	return r
}

// Copy returns a deep copy of m. Section ids are preserved.
func (m *Morphology) Copy() *Morphology {
	c := &Morphology{
		Soma:     m.Soma.Copy(),
		Format:   m.Format,
		Family:   m.Family,
		sections: make([]*Section, len(m.sections)),
		roots:    append([]int(nil), m.roots...),
	}
	for i, s := range m.sections {
		if s != nil {
			c.sections[i] = s.clone()
		}
	}
	return c
}

// HasPerimeters reports whether any section carries perimeters.
func (m *Morphology) HasPerimeters() bool {
	for s := range m.Sections() {
		if len(s.Perimeters) > 0 {
			return true
		}
	}
	return false
}

// ClearPerimeters drops the perimeters of every section.
func (m *Morphology) ClearPerimeters() {
	for s := range m.Sections() {
		s.Perimeters = nil
	}
}
