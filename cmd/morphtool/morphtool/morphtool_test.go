package morphtool

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/convert"
	"github.com/paulhankin/morphtool/morph"
)

func testdata(name string) string {
	return filepath.Join("..", "..", "..", "morph", "testdata", name)
}

func quiet() *Config {
	var buf bytes.Buffer
	return &Config{Logger: NewLogger(&buf, true)}
}

func copyFile(t *testing.T, from, to string) {
	t.Helper()
	b, err := os.ReadFile(from)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(to, b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestConvert(t *testing.T) {
	out := filepath.Join(t.TempDir(), "simple.h5")
	if err := Convert(context.Background(), quiet(), testdata("simple.swc"), out); err != nil {
		t.Fatalf("Convert = %v", err)
	}
	d, err := Diff(testdata("simple.swc"), out)
	if err != nil || d.Different {
		t.Errorf("Diff after conversion = %v, %v", d, err)
	}
	m, err := morph.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if m.Soma.Type != morph.SomaSimpleContour {
		t.Errorf("h5 soma %v, want a contour", m.Soma.Type)
	}

	cases := []struct {
		desc string
		cfg  Config
	}{
		{"unknown oracle", Config{Oracle: "neuron"}},
		{"ensure area without oracle", Config{EnsureArea: true}},
	}
	for _, c := range cases {
		c.cfg.Logger = quiet().Logger
		if err := Convert(context.Background(), &c.cfg, testdata("simple.swc"), out); err == nil {
			t.Errorf("%s: Convert succeeded", c.desc)
		}
	}
}

func TestConvertFolder(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	for _, name := range []string{"simple.swc", "cylinders.swc", "three_point.swc"} {
		copyFile(t, testdata(name), filepath.Join(in, name))
	}
	if err := os.WriteFile(filepath.Join(in, "notes.txt"), []byte("not a morphology"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := quiet()
	cfg.Ext = ".ASC"
	cfg.Jobs = 2
	if err := ConvertFolder(context.Background(), cfg, in, out); err != nil {
		t.Fatalf("ConvertFolder = %v", err)
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	sort.Strings(got)
	want := []string{"cylinders.asc", "simple.asc", "three_point.asc"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("converted files mismatch (-want +got):\n%s", diff)
	}

	// One failing file fails the run, the others are still converted.
	copyFile(t, testdata("unifurcation.asc"), filepath.Join(in, "unifurcation.asc"))
	out2 := filepath.Join(t.TempDir(), "out")
	cfg.Ext = "swc"
	if err := ConvertFolder(context.Background(), cfg, in, out2); !errors.Is(err, convert.ErrNeedsSanitize) {
		t.Errorf("ConvertFolder = %v, want %v", err, convert.ErrNeedsSanitize)
	}
	if _, err := os.Stat(filepath.Join(out2, "cylinders.swc")); err != nil {
		t.Errorf("other files not converted: %v", err)
	}

	cfg.Ext = "obj"
	if err := ConvertFolder(context.Background(), cfg, in, out); !errors.Is(err, convert.ErrUnsupportedExtension) {
		t.Errorf("ConvertFolder to obj = %v, want %v", err, convert.ErrUnsupportedExtension)
	}
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "dense.swc")
	cfg := quiet()
	cfg.Density = 2
	if err := Resample(cfg, testdata("simple.swc"), out); err != nil {
		t.Fatalf("Resample = %v", err)
	}
	d, err := Diff(testdata("simple.swc"), out)
	if err != nil || !d.Different {
		t.Errorf("Diff after resampling = %v, %v, want different", d, err)
	}

	back := filepath.Join(dir, "back.swc")
	cfg.Epsilon = 1e-3
	if err := Simplify(cfg, out, back); err != nil {
		t.Fatalf("Simplify = %v", err)
	}
	d, err = Diff(testdata("simple.swc"), back)
	if err != nil || d.Different {
		t.Errorf("Diff after simplifying the resampled file = %v, %v, want identical", d, err)
	}

	if _, err := Diff(testdata("simple.swc"), filepath.Join(dir, "missing.swc")); err == nil {
		t.Errorf("Diff with a missing file succeeded")
	}
}

func TestSomaSurface(t *testing.T) {
	cfg := quiet()
	a, err := SomaSurface(context.Background(), cfg, testdata("simple.swc"))
	if err != nil || math.Abs(a-4*math.Pi) > 1e-9 {
		t.Errorf("SomaSurface = %v, %v, want 4π", a, err)
	}
	cfg.Oracle = "mesh"
	cfg.MeshCells = 60
	a, err = SomaSurface(context.Background(), cfg, testdata("three_point.swc"))
	if want := 100 * math.Pi; err != nil || math.Abs(a-want) > 0.05*want {
		t.Errorf("mesh SomaSurface = %v, %v, want about %v", a, err, want)
	}
}

func TestAlign(t *testing.T) {
	out := filepath.Join(t.TempDir(), "aligned.swc")
	cfg := quiet()
	cfg.Direction = r3.Vec{X: 1}
	cfg.Neurite = "axon"
	cfg.Method = "first_section"
	r, err := Align(cfg, testdata("simple.swc"), out)
	if err != nil {
		t.Fatalf("Align = %v", err)
	}
	if d := mat.Det(r); math.Abs(d-1) > 1e-9 {
		t.Errorf("rotation determinant %v", d)
	}
	m, err := morph.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	// The first axon section runs from the origin to (0,-4,0).
	ax, err := m.FindAxon()
	if err != nil {
		t.Fatal(err)
	}
	if p := ax.Points[1]; r3.Norm(r3.Sub(p, r3.Vec{X: 4})) > 1e-6 {
		t.Errorf("axon end at %v, want (4,0,0)", p)
	}

	for _, bad := range []Config{{Method: "sideways"}, {Neurite: "soma"}} {
		bad.Logger = cfg.Logger
		bad.Direction = r3.Vec{Y: 1}
		if _, err := Align(&bad, testdata("simple.swc"), out); err == nil {
			t.Errorf("Align with %+v succeeded", bad)
		}
	}
}

func TestSetSomaOutline(t *testing.T) {
	out := filepath.Join(t.TempDir(), "outlined.asc")
	if err := SetSomaOutline(testdata("simple.asc"), testdata("soma.svg"), out); err != nil {
		t.Fatalf("SetSomaOutline = %v", err)
	}
	m, err := morph.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := []r3.Vec{{X: 10, Y: 20}, {X: 18, Y: 20}, {X: 18, Y: 24}, {X: 10, Y: 24}}
	if m.Soma.Type != morph.SomaSimpleContour || !cmp.Equal(want, m.Soma.Points) {
		t.Errorf("soma %v %v, want contour %v", m.Soma.Type, m.Soma.Points, want)
	}
	err = SetSomaOutline(testdata("simple.asc"), testdata("missing.svg"), out)
	if err == nil || !strings.Contains(err.Error(), "missing.svg") {
		t.Errorf("SetSomaOutline with a missing svg = %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, true).Info("hidden")
	NewLogger(&buf, false).Info("shown")
	if s := buf.String(); strings.Contains(s, "hidden") || !strings.Contains(s, "shown") {
		t.Errorf("log output %q", s)
	}
}
