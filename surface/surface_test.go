package surface

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

func TestFrustum(t *testing.T) {
	cases := []struct {
		file string
		want float64
	}{
		{"simple.swc", 4 * math.Pi},
		{"three_point.swc", 100 * math.Pi},
		{"unifurcation.asc", 100 * math.Pi},
		{"cylinders.swc", 2 * (4*math.Sqrt(8) + 7*math.Sqrt(5)) * math.Pi},
	}
	for _, c := range cases {
		got, err := Frustum{}.SomaSurface(context.Background(), filepath.Join("..", "morph", "testdata", c.file))
		if err != nil || math.Abs(got-c.want) > 1e-9 {
			t.Errorf("SomaSurface(%s) = %v, %v, want %v", c.file, got, err, c.want)
		}
	}
	if _, err := (Frustum{}).SomaSurface(context.Background(), "missing.swc"); err == nil {
		t.Errorf("SomaSurface(missing.swc) succeeded")
	}
}
