package morph

import (
	"reflect"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// pts builds a point list from a flat list of x, y, z triples.
func pts(t *testing.T, args ...float64) []r3.Vec {
	t.Helper()
	if len(args)%3 != 0 {
		t.Fatalf("pts helper needs a multiple of three args, got %v", args)
	}
	var r []r3.Vec
	for i := 0; i < len(args); i += 3 {
		r = append(r, r3.Vec{X: args[i], Y: args[i+1], Z: args[i+2]})
	}
	return r
}

func ones(n int) []float64 {
	r := make([]float64, n)
	for i := range r {
		r[i] = 1
	}
	return r
}

// tree builds
//
//	0 -> 1 -> 3
//	  -> 2
//	4
func tree(t *testing.T) *Morphology {
	t.Helper()
	m := New(FormatUnknown)
	add := func(parent int, typ SectionType, p ...float64) *Section {
		v := pts(t, p...)
		s := Section{Type: typ, Points: v, Diameters: ones(len(v))}
		var ns *Section
		var err error
		if parent < 0 {
			ns, err = m.AppendRootSection(s)
		} else {
			ns, err = m.AppendSection(parent, s)
		}
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		return ns
	}
	add(-1, SectionBasalDendrite, 0, 0, 0, 0, 1, 0)
	add(0, SectionBasalDendrite, 0, 1, 0, 1, 2, 0)
	add(0, SectionBasalDendrite, 0, 1, 0, -1, 2, 0)
	add(1, SectionBasalDendrite, 1, 2, 0, 1, 3, 0)
	add(-1, SectionAxon, 0, 0, 0, 0, -1, 0)
	return m
}

func ids(seq func(func(*Section) bool)) []int {
	var r []int
	for s := range seq {
		r = append(r, s.ID)
	}
	return r
}

func TestTraversal(t *testing.T) {
	m := tree(t)
	cases := []struct {
		desc string
		got  []int
		want []int
	}{
		{"sections", ids(m.Sections()), []int{0, 1, 3, 2, 4}},
		{"subtree of 1", ids(m.Subtree(1)), []int{1, 3}},
		{"subtree of missing", ids(m.Subtree(42)), nil},
		{"upstream of 3", ids(m.Upstream(3)), []int{3, 1, 0}},
		{"upstream of root", ids(m.Upstream(4)), []int{4}},
	}
	for _, c := range cases {
		if !reflect.DeepEqual(c.got, c.want) {
			t.Errorf("%s: got %v, want %v", c.desc, c.got, c.want)
		}
	}
}

func TestAppendSectionErrors(t *testing.T) {
	m := New(FormatUnknown)
	if _, err := m.AppendSection(3, Section{}); err == nil {
		t.Errorf("AppendSection to missing parent succeeded")
	}
	bad := Section{Points: pts(t, 0, 0, 0, 1, 0, 0), Diameters: []float64{1}}
	if _, err := m.AppendRootSection(bad); err == nil {
		t.Errorf("AppendRootSection with mismatched diameters succeeded")
	}
}

func TestDeleteSection(t *testing.T) {
	cases := []struct {
		desc      string
		id        int
		recursive bool
		want      []int
		wantRoots []int
	}{
		{"recursive leaf", 3, true, []int{0, 1, 2, 4}, []int{0, 4}},
		{"recursive inner", 1, true, []int{0, 2, 4}, []int{0, 4}},
		{"recursive root", 0, true, []int{4}, []int{4}},
		{"splice inner", 1, false, []int{0, 3, 2, 4}, []int{0, 4}},
		{"splice root", 0, false, []int{1, 3, 2, 4}, []int{1, 2, 4}},
	}
	for _, c := range cases {
		m := tree(t)
		if err := m.DeleteSection(c.id, c.recursive); err != nil {
			t.Fatalf("%s: DeleteSection(%d) = %v", c.desc, c.id, err)
		}
		if got := ids(m.Sections()); !reflect.DeepEqual(got, c.want) {
			t.Errorf("%s: sections = %v, want %v", c.desc, got, c.want)
		}
		var roots []int
		for _, r := range m.RootSections() {
			roots = append(roots, r.ID)
			if !r.IsRoot() {
				t.Errorf("%s: root %d has parent %d", c.desc, r.ID, r.Parent)
			}
		}
		if !reflect.DeepEqual(roots, c.wantRoots) {
			t.Errorf("%s: roots = %v, want %v", c.desc, roots, c.wantRoots)
		}
		if m.NumSections() != len(c.want) {
			t.Errorf("%s: NumSections = %d, want %d", c.desc, m.NumSections(), len(c.want))
		}
	}
	m := tree(t)
	if err := m.DeleteSection(1, true); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteSection(3, true); err == nil {
		t.Errorf("deleting an already deleted section succeeded")
	}
}

func TestCopyIsDeep(t *testing.T) {
	m := tree(t)
	m.Soma = Soma{Type: SomaSinglePoint, Points: pts(t, 0, 0, 0), Diameters: []float64{2}}
	c := m.Copy()
	c.Section(1).Points[0].X = 100
	c.Section(1).Children = nil
	c.Soma.Points[0].Y = 7
	if m.Section(1).Points[0].X == 100 || len(m.Section(1).Children) != 1 || m.Soma.Points[0].Y == 7 {
		t.Errorf("modifying a copy changed the original")
	}
	if got, want := ids(c.Sections()), []int{0, 1, 2, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("copy sections = %v, want %v", got, want)
	}
}

func TestAppendSubtree(t *testing.T) {
	donor := tree(t)
	m := New(FormatUnknown)
	s, err := m.AppendSubtree(-1, donor, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ids(m.Sections()), []int{0, 1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("sections = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(s.Points, donor.Section(0).Points) {
		t.Errorf("subtree root points = %v, want %v", s.Points, donor.Section(0).Points)
	}
	if got := m.Section(2).Points; !reflect.DeepEqual(got, donor.Section(3).Points) {
		t.Errorf("grandchild points = %v, want %v", got, donor.Section(3).Points)
	}
}

func TestSomaCenter(t *testing.T) {
	s := Soma{Points: pts(t, 0, 0, 0, 2, 0, 0, 2, 4, 0, 0, 4, 0)}
	if got, want := s.Center(), (r3.Vec{X: 1, Y: 2}); got != want {
		t.Errorf("Center() = %v, want %v", got, want)
	}
	var empty Soma
	if got := empty.Center(); got != (r3.Vec{}) {
		t.Errorf("empty Center() = %v, want zero", got)
	}
}

func TestSectionString(t *testing.T) {
	s := &Section{ID: 1, Points: pts(t, 0, 5, 0, -5, 5, 0)}
	if got, want := s.String(), "Section(id=1, points=[(0 5 0),..., (-5 5 0)])"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
