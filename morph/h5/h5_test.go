package h5

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/morph"
)

func glia(t *testing.T) *morph.Morphology {
	t.Helper()
	m := morph.New(morph.FormatH5)
	m.Family = morph.FamilyGlia
	m.Soma = morph.Soma{
		Type:      morph.SomaSimpleContour,
		Points:    []r3.Vec{{X: 1}, {Y: 1}, {X: -1}, {Y: -1}},
		Diameters: []float64{0, 0, 0, 0},
	}
	root, err := m.AppendRootSection(morph.Section{
		Type:       morph.SectionApicalDendrite,
		Points:     []r3.Vec{{Y: 1}, {Y: 5}},
		Diameters:  []float64{2, 1.5},
		Perimeters: []float64{6, 4.5},
	})
	if err != nil {
		t.Fatal(err)
	}
	// A unifurcation, which only h5 can hold.
	mid, err := m.AppendSection(root.ID, morph.Section{
		Type:       morph.SectionApicalDendrite,
		Points:     []r3.Vec{{Y: 5}, {X: 0.5, Y: 9}},
		Diameters:  []float64{1.5, 1},
		Perimeters: []float64{4.5, 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range []float64{-2, 2} {
		if _, err := m.AppendSection(mid.ID, morph.Section{
			Type:       morph.SectionApicalDendrite,
			Points:     []r3.Vec{{X: 0.5, Y: 9}, {X: x, Y: 12, Z: 0.25}},
			Diameters:  []float64{1, 0.5},
			Perimeters: []float64{3, 1.5},
		}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.AppendRootSection(morph.Section{
		Type:       morph.SectionAxon,
		Points:     []r3.Vec{{Y: -1}, {Y: -8}, {X: 1, Y: -16}},
		Diameters:  []float64{1, 1, 0.75},
		Perimeters: []float64{3, 3, 2},
	}); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	m := glia(t)
	path := filepath.Join(t.TempDir(), "glia.h5")
	if err := morph.WriteFile(m, path); err != nil {
		t.Fatalf("WriteFile = %v", err)
	}
	got, err := morph.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile = %v", err)
	}
	if d := morph.Diff(m, got, morph.DefaultDiffOptions()); d.Different {
		t.Errorf("round trip changed the neurites: %s", d.Info)
	}
	if diff := cmp.Diff(m.Soma, got.Soma); diff != "" {
		t.Errorf("soma mismatch (-want +got):\n%s", diff)
	}
	if got.Family != morph.FamilyGlia {
		t.Errorf("family %v, want %v", got.Family, morph.FamilyGlia)
	}
	if got.Format != morph.FormatH5 {
		t.Errorf("format %v, want %v", got.Format, morph.FormatH5)
	}
	if !got.HasPerimeters() {
		t.Errorf("perimeters lost")
	}
}

func TestRoundTripSinglePoint(t *testing.T) {
	m := morph.New(morph.FormatSWC)
	m.Soma = morph.Soma{Type: morph.SomaSinglePoint, Points: []r3.Vec{{X: 1, Y: 2, Z: 3}}, Diameters: []float64{8}}
	if _, err := m.AppendRootSection(morph.Section{
		Type:      morph.SectionBasalDendrite,
		Points:    []r3.Vec{{X: 1, Y: 6, Z: 3}, {X: 1, Y: 10, Z: 3}},
		Diameters: []float64{1, 1},
	}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "point.h5")
	if err := Write(m, path); err != nil {
		t.Fatalf("Write = %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read = %v", err)
	}
	if diff := cmp.Diff(m.Soma, got.Soma); diff != "" {
		t.Errorf("soma mismatch (-want +got):\n%s", diff)
	}
	if got.Family != morph.FamilyNeuron || got.HasPerimeters() {
		t.Errorf("got family %v, perimeters %v, want a neuron without perimeters", got.Family, got.HasPerimeters())
	}
	if d := morph.Diff(m, got, morph.DefaultDiffOptions()); d.Different {
		t.Errorf("round trip changed the neurites: %s", d.Info)
	}
}

func TestWriteRejectsCylinders(t *testing.T) {
	for _, typ := range []morph.SomaType{morph.SomaCylinders, morph.SomaNeuromorphoThreePointCylinders} {
		m := morph.New(morph.FormatSWC)
		m.Soma = morph.Soma{Type: typ, Points: []r3.Vec{{}, {Y: 1}, {Y: -1}}, Diameters: []float64{1, 1, 1}}
		if err := Write(m, filepath.Join(t.TempDir(), "bad.h5")); !errors.Is(err, morph.ErrInvalidSoma) {
			t.Errorf("Write(%v soma) = %v, want %v", typ, err, morph.ErrInvalidSoma)
		}
	}
}

func TestReadMissing(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "missing.h5")); err == nil {
		t.Errorf("Read of a missing file succeeded")
	}
}
