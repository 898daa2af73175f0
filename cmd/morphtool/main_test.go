package main

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestFlagVecValue(t *testing.T) {
	cases := []struct {
		desc    string
		in      string
		want    r3.Vec
		wantErr bool
	}{
		{"plain", "1,2,3", r3.Vec{X: 1, Y: 2, Z: 3}, false},
		{"spaces and blanks", " 0, -1 ,", r3.Vec{Y: -1}, false},
		{"too short", "1,2", r3.Vec{}, true},
		{"not a number", "1,b,3", r3.Vec{}, true},
	}
	for _, c := range cases {
		var v r3.Vec
		err := flagVecValue{&v}.Set(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("%s: Set(%q) = %v, want error %v", c.desc, c.in, err, c.wantErr)
			continue
		}
		if err == nil && v != c.want {
			t.Errorf("%s: Set(%q) gave %v, want %v", c.desc, c.in, v, c.want)
		}
	}
	v := r3.Vec{X: 1, Y: 0.5}
	if s := (flagVecValue{&v}).String(); s != "1,0.5,0" {
		t.Errorf("String = %q", s)
	}
}
