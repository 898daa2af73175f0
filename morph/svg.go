package morph

import (
	"bytes"
	"encoding/xml"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/JoshVarga/svgparser"
	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// affine returns the homogeneous matrix of the svg transform
// matrix(a, b, c, d, e, f).
func affine(a, b, c, d, e, f float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{a, c, e, b, d, f, 0, 0, 1})
}

func identity2D() *mat.Dense { return affine(1, 0, 0, 1, 0, 0) }

func parseNumbers(s string) ([]float64, error) {
	var r []float64
	for _, f := range strings.FieldsFunc(s, func(c rune) bool { return c == ',' || unicode.IsSpace(c) }) {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		r = append(r, x)
	}
	return r, nil
}

func transformStep(name string, a []float64) (*mat.Dense, error) {
	switch {
	case name == "translate" && len(a) == 1:
		return affine(1, 0, 0, 1, a[0], 0), nil
	case name == "translate" && len(a) == 2:
		return affine(1, 0, 0, 1, a[0], a[1]), nil
	case name == "scale" && len(a) == 1:
		return affine(a[0], 0, 0, a[0], 0, 0), nil
	case name == "scale" && len(a) == 2:
		return affine(a[0], 0, 0, a[1], 0, 0), nil
	case name == "matrix" && len(a) == 6:
		return affine(a[0], a[1], a[2], a[3], a[4], a[5]), nil
	}
	return nil, errors.Errorf("unsupported transform %s with %d arguments", name, len(a))
}

// parseTransform parses a transform attribute such as
// "translate(10, 20) scale(2)".
func parseTransform(attr string) (*mat.Dense, error) {
	m := identity2D()
	rest := strings.TrimSpace(attr)
	for rest != "" {
		name, after, ok := strings.Cut(rest, "(")
		if !ok {
			return nil, errors.Errorf("missing ( in transform %q", attr)
		}
		args, tail, ok := strings.Cut(after, ")")
		if !ok {
			return nil, errors.Errorf("missing ) in transform %q", attr)
		}
		a, err := parseNumbers(args)
		if err != nil {
			return nil, errors.Wrapf(err, "transform %q", attr)
		}
		step, err := transformStep(strings.TrimSpace(name), a)
		if err != nil {
			return nil, err
		}
		m.Mul(m, step)
		rest = strings.TrimLeft(tail, ", \t\n")
	}
	return m, nil
}

// svgPoint maps the point (x, y) into the z=0 plane.
func svgPoint(m mat.Matrix, x, y float64) r3.Vec {
	var v mat.VecDense
	v.MulVec(m, mat.NewVecDense(3, []float64{x, y, 1}))
	w := v.AtVec(2)
	return r3.Vec{X: v.AtVec(0) / w, Y: v.AtVec(1) / w}
}

func pairs(m mat.Matrix, a []float64) ([]r3.Vec, error) {
	if len(a)%2 != 0 {
		return nil, errors.Errorf("odd number of coordinates: %v", a)
	}
	var r []r3.Vec
	for i := 0; i < len(a); i += 2 {
		r = append(r, svgPoint(m, a[i], a[i+1]))
	}
	return r, nil
}

// pathPoints reads the first subpath of a path made of absolute
// moveto and lineto commands.
func pathPoints(m mat.Matrix, d string) ([]r3.Vec, error) {
	var r []r3.Vec
	var nums strings.Builder
	flush := func() error {
		a, err := parseNumbers(nums.String())
		nums.Reset()
		if err != nil {
			return err
		}
		p, err := pairs(m, a)
		r = append(r, p...)
		return err
	}
	for _, c := range d {
		switch c {
		case 'M', 'L', 'Z', 'z':
			if err := flush(); err != nil {
				return nil, err
			}
			if c == 'Z' || c == 'z' || (c == 'M' && len(r) > 0) {
				return r, nil
			}
		default:
			if unicode.IsLetter(c) && c != 'e' && c != 'E' {
				return nil, errors.Errorf("unsupported path command %q", c)
			}
			nums.WriteRune(c)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return r, nil
}

func findOutline(m *mat.Dense, e *svgparser.Element) ([]r3.Vec, error) {
	for _, c := range e.Children {
		var pts []r3.Vec
		var err error
		switch c.Name {
		case "g":
			var gm *mat.Dense
			if gm, err = parseTransform(c.Attributes["transform"]); err != nil {
				return nil, err
			}
			gm.Mul(m, gm)
			pts, err = findOutline(gm, c)
		case "polygon", "polyline":
			var a []float64
			if a, err = parseNumbers(c.Attributes["points"]); err == nil {
				pts, err = pairs(m, a)
			}
		case "path":
			pts, err = pathPoints(m, c.Attributes["d"])
		default:
			slog.Debug("ignoring svg element", "name", c.Name)
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(pts) > 0 {
			return pts, nil
		}
	}
	return nil, nil
}

// ReadSVGOutline returns the first polygon, polyline or path of an
// SVG file as a list of points in the z=0 plane, with the transforms
// of enclosing groups applied. Only translate, scale and matrix
// transforms and absolute M/L paths are understood.
func ReadSVGOutline(r io.Reader) ([]r3.Vec, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	decoder.CharsetReader = charset.NewReaderLabel
	elt, err := svgparser.DecodeFirst(decoder)
	if err != nil {
		return nil, err
	}
	if err := elt.Decode(decoder); err != nil && err != io.EOF {
		return nil, err
	}
	pts, err := findOutline(identity2D(), elt)
	if err != nil {
		return nil, err
	}
	if len(pts) == 0 {
		return nil, errors.New("svg has no polygon, polyline or path")
	}
	return pts, nil
}

// SetContour replaces the soma by a contour through points.
func (s *Soma) SetContour(points []r3.Vec) {
	s.Type = SomaSimpleContour
	s.Points = append([]r3.Vec(nil), points...)
	s.Diameters = make([]float64, len(points))
}
