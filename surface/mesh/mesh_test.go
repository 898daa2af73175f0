package mesh

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/convert"
	"github.com/paulhankin/morphtool/morph"
)

func TestArea(t *testing.T) {
	cases := []struct {
		desc string
		soma morph.Soma
		want float64
		tol  float64
	}{
		{
			desc: "sphere",
			soma: morph.Soma{Type: morph.SomaSinglePoint, Points: []r3.Vec{{X: 1, Y: 2, Z: 3}}, Diameters: []float64{10}},
			want: 100 * math.Pi,
			tol:  0.05,
		},
		{
			desc: "cylinder with caps",
			soma: morph.Soma{Type: morph.SomaCylinders, Points: []r3.Vec{{Y: -4}, {Y: 4}}, Diameters: []float64{4, 4}},
			want: 2*math.Pi*2*8 + 2*math.Pi*4,
			tol:  0.1,
		},
		{
			desc: "tilted cylinder",
			soma: morph.Soma{Type: morph.SomaCylinders, Points: []r3.Vec{{}, {X: 4, Y: 4, Z: 4}}, Diameters: []float64{4, 4}},
			want: 2*math.Pi*2*math.Sqrt(48) + 2*math.Pi*4,
			tol:  0.1,
		},
	}
	o := &Oracle{Cells: 80}
	for _, c := range cases {
		got, err := o.Area(c.soma)
		if err != nil {
			t.Errorf("%s: Area = %v", c.desc, err)
			continue
		}
		if math.Abs(got-c.want) > c.tol*c.want {
			t.Errorf("%s: Area = %v, want %v within %v%%", c.desc, got, c.want, 100*c.tol)
		}
	}
}

func TestAreaContour(t *testing.T) {
	// A circular contour meshes close to the frustum sum plus the two
	// small end caps.
	s := convert.CreateContour(r3.Vec{}, 5, 40, 0)
	o := &Oracle{}
	got, err := o.Area(s)
	if err != nil {
		t.Fatal(err)
	}
	frustums, err := convert.SurfaceArea(s)
	if err != nil {
		t.Fatal(err)
	}
	if got < 0.95*frustums || got > 1.15*frustums {
		t.Errorf("mesh area %v, frustum area %v", got, frustums)
	}
}

func TestAreaDegenerate(t *testing.T) {
	cases := []morph.Soma{
		{},
		{Type: morph.SomaSinglePoint, Points: []r3.Vec{{}}, Diameters: []float64{0}},
		{Type: morph.SomaCylinders, Points: []r3.Vec{{}, {}}, Diameters: []float64{1, 1}},
	}
	for _, s := range cases {
		if _, err := (&Oracle{}).Area(s); !errors.Is(err, convert.ErrDegenerate) {
			t.Errorf("Area(%v) = %v, want %v", s, err, convert.ErrDegenerate)
		}
	}
}

func TestSomaSurface(t *testing.T) {
	o := &Oracle{Cells: 60}
	got, err := o.SomaSurface(context.Background(), filepath.Join("..", "..", "morph", "testdata", "three_point.swc"))
	if err != nil {
		t.Fatal(err)
	}
	if want := 100 * math.Pi; math.Abs(got-want) > 0.05*want {
		t.Errorf("SomaSurface = %v, want about %v", got, want)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.SomaSurface(ctx, "any.swc"); !errors.Is(err, context.Canceled) {
		t.Errorf("SomaSurface with cancelled context = %v", err)
	}
}
