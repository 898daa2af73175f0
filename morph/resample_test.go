package morph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r3"
)

func single(t *testing.T, family CellFamily, s Section) *Morphology {
	t.Helper()
	m := New(FormatUnknown)
	m.Family = family
	if _, err := m.AppendRootSection(s); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestResampleLinearDensity(t *testing.T) {
	zigzag := pts(t, 0, 0, 0, 1, 0, 0, 1, 2, 0, 2, 2, 0)
	cases := []struct {
		desc    string
		points  []r3.Vec
		diams   []float64
		density float64
		want    []r3.Vec
		wantD   []float64
	}{
		{
			desc:    "thirds of a zigzag",
			points:  zigzag,
			diams:   []float64{1, 2, 3, 4},
			density: 0.75,
			want:    pts(t, 0, 0, 0, 1, 1.0/3, 0, 1, 5.0/3, 0, 2, 2, 0),
			wantD:   []float64{1, 2 + 1.0/6, 2 + 5.0/6, 4},
		},
		{
			desc:    "unit spacing at density one",
			points:  pts(t, 0, 0, 0, 1, 0, 0, 2, 0, 0, 3, 0, 0),
			diams:   []float64{1, 2, 3, 4},
			density: 1,
			want:    pts(t, 0, 0, 0, 1, 0, 0, 2, 0, 0, 3, 0, 0),
			wantD:   []float64{1, 2, 3, 4},
		},
		{
			desc:    "upsampling",
			points:  pts(t, 0, 0, 0, 2, 0, 0),
			diams:   []float64{2, 4},
			density: 2,
			want:    pts(t, 0, 0, 0, 0.5, 0, 0, 1, 0, 0, 1.5, 0, 0, 2, 0, 0),
			wantD:   []float64{2, 2.5, 3, 3.5, 4},
		},
		{
			desc:    "zero density keeps endpoints",
			points:  zigzag,
			diams:   []float64{1, 2, 3, 4},
			density: 0,
			want:    pts(t, 0, 0, 0, 2, 2, 0),
			wantD:   []float64{1, 4},
		},
		{
			desc:    "negative density keeps endpoints",
			points:  zigzag,
			diams:   []float64{1, 2, 3, 4},
			density: -3,
			want:    pts(t, 0, 0, 0, 2, 2, 0),
			wantD:   []float64{1, 4},
		},
		{
			desc:    "zero length section",
			points:  pts(t, 1, 1, 1, 1, 1, 1, 1, 1, 1),
			diams:   []float64{1, 2, 3},
			density: 10,
			want:    pts(t, 1, 1, 1, 1, 1, 1),
			wantD:   []float64{1, 3},
		},
		{
			desc:    "repeated point",
			points:  pts(t, 0, 0, 0, 1, 0, 0, 1, 0, 0, 2, 0, 0),
			diams:   []float64{1, 1, 1, 1},
			density: 2,
			want:    pts(t, 0, 0, 0, 0.5, 0, 0, 1, 0, 0, 1.5, 0, 0, 2, 0, 0),
			wantD:   []float64{1, 1, 1, 1, 1},
		},
	}
	approx := cmpopts.EquateApprox(0, 1e-12)
	for _, c := range cases {
		m := single(t, FamilyNeuron, Section{Type: SectionAxon, Points: c.points, Diameters: c.diams})
		before := m.Copy()
		got := m.ResampleLinearDensity(c.density).Section(0)
		if diff := cmp.Diff(c.want, got.Points, approx); diff != "" {
			t.Errorf("%s: points mismatch (-want +got):\n%s", c.desc, diff)
		}
		if diff := cmp.Diff(c.wantD, got.Diameters, approx); diff != "" {
			t.Errorf("%s: diameters mismatch (-want +got):\n%s", c.desc, diff)
		}
		if got.Points[0] != c.points[0] || got.Points[len(got.Points)-1] != c.points[len(c.points)-1] {
			t.Errorf("%s: endpoints not preserved exactly", c.desc)
		}
		if d := Diff(before, m, DiffOptions{}); d.Different {
			t.Errorf("%s: input modified: %s", c.desc, d.Info)
		}
	}
}

func TestResamplePerimeters(t *testing.T) {
	s := Section{
		Type:       SectionBasalDendrite,
		Points:     pts(t, 0, 0, 0, 2, 0, 0),
		Diameters:  []float64{1, 1},
		Perimeters: []float64{2, 4},
	}
	glia := single(t, FamilyGlia, s).ResampleLinearDensity(1).Section(0)
	if diff := cmp.Diff([]float64{2, 3, 4}, glia.Perimeters); diff != "" {
		t.Errorf("glia perimeters mismatch (-want +got):\n%s", diff)
	}
	neuron := single(t, FamilyNeuron, s).ResampleLinearDensity(1).Section(0)
	if len(neuron.Perimeters) != 0 {
		t.Errorf("neuron perimeters = %v, want none", neuron.Perimeters)
	}
}

func TestResampleKeepsTopology(t *testing.T) {
	m := readTestFile(t, "simple.swc")
	r := m.ResampleLinearDensity(2)
	if got, want := ids(r.Sections()), ids(m.Sections()); !cmp.Equal(got, want) {
		t.Errorf("resampled sections = %v, want %v", got, want)
	}
	if diff := cmp.Diff(m.Soma, r.Soma); diff != "" {
		t.Errorf("soma changed (-want +got):\n%s", diff)
	}
	if n := len(r.Section(1).Points); n != 11 {
		t.Errorf("section 1 has %d points, want 11", n)
	}
}
