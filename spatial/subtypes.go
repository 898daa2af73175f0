package spatial

import (
	"log/slog"

	"github.com/paulhankin/morphtool/morph"
)

// Apical dendrite subtypes, stored in custom section types.
const (
	Trunk   = morph.SectionCustom5
	Oblique = morph.SectionCustom6
	Tuft    = morph.SectionCustom7
)

// Axon subtypes.
const (
	MainAxon   = morph.SectionCustom5
	Collateral = morph.SectionCustom6
)

// ApicalSubtypes labels the sections of m. Apical sections upstream
// of the apical point are the trunk, those below it the tuft and the
// rest obliques. Basal and axon sections keep their types. Without an
// apical point apical sections stay apical.
func ApicalSubtypes(m *morph.Morphology, tuftPercent float64) map[int]morph.SectionType {
	types := map[int]morph.SectionType{}
	sec, _, err := ApicalPointSectionSegment(m, tuftPercent)
	for s := range m.Sections() {
		switch s.Type {
		case morph.SectionApicalDendrite:
			types[s.ID] = morph.SectionApicalDendrite
			if err == nil {
				types[s.ID] = Oblique
			}
		case morph.SectionBasalDendrite, morph.SectionAxon:
			types[s.ID] = s.Type
		}
	}
	if err != nil {
		return types
	}
	for s := range m.Subtree(sec) {
		types[s.ID] = Tuft
	}
	for s := range m.Upstream(sec) {
		types[s.ID] = Trunk
	}
	return types
}

// AxonSubtypes labels the axon sections of m: the path from the soma
// to the axon point is the main axon and the rest are collaterals.
// Without an axon point the sections stay axon.
func AxonSubtypes(m *morph.Morphology, opts AxonPointOptions) map[int]morph.SectionType {
	types := map[int]morph.SectionType{}
	leaf, ok := AxonPoint(m, opts)
	for s := range m.Sections() {
		if s.Type != morph.SectionAxon {
			continue
		}
		types[s.ID] = morph.SectionAxon
		if ok {
			types[s.ID] = Collateral
		}
	}
	if !ok {
		return types
	}
	for s := range m.Upstream(leaf) {
		types[s.ID] = MainAxon
	}
	return types
}

func setTypes(m *morph.Morphology, types map[int]morph.SectionType) {
	for id, t := range types {
		m.Section(id).Type = t
	}
}

// SetApicalSubtypes writes ApicalSubtypes into m.
func SetApicalSubtypes(m *morph.Morphology, tuftPercent float64) {
	setTypes(m, ApicalSubtypes(m, tuftPercent))
}

// SetAxonSubtypes writes AxonSubtypes into m.
func SetAxonSubtypes(m *morph.Morphology, opts AxonPointOptions) {
	setTypes(m, AxonSubtypes(m, opts))
}

// UnsetSubtypes gives every custom typed section the type base.
func UnsetSubtypes(m *morph.Morphology, base morph.SectionType) {
	n := 0
	for s := range m.Sections() {
		if s.Type.IsCustom() {
			s.Type = base
			n++
		}
	}
	slog.Debug("unset section subtypes", "sections", n, "type", base)
}
