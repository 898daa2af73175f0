package morph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

type swcRow struct {
	id, parent int
	typ        SectionType
	p          r3.Vec
	d          float64
	line       int
}

// ReadSWC parses an SWC file. Rows of type 1 make up the soma; the
// remaining rows are cut into sections at branch points, at type
// changes and where they attach to the soma.
func ReadSWC(r io.Reader) (*Morphology, error) {
	var rows []swcRow
	byID := map[int]int{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		f := strings.Fields(text)
		if len(f) == 0 {
			continue
		}
		if len(f) < 7 {
			return nil, &ParseError{Line: line, Msg: fmt.Sprintf("expected 7 fields, got %d", len(f))}
		}
		row, err := parseSWCRow(f)
		if err != nil {
			return nil, &ParseError{Line: line, Msg: err.Error()}
		}
		row.line = line
		if _, dup := byID[row.id]; dup {
			return nil, &ParseError{Line: line, Msg: fmt.Sprintf("duplicate id %d", row.id)}
		}
		byID[row.id] = len(rows)
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	m := New(FormatSWC)
	var soma []swcRow
	children := map[int][]int{}
	var roots []int
	for i, row := range rows {
		if row.typ == SectionSoma {
			soma = append(soma, row)
			continue
		}
		pi, ok := byID[row.parent]
		switch {
		case row.parent == -1 || (ok && rows[pi].typ == SectionSoma):
			roots = append(roots, i)
		case !ok:
			return nil, &ParseError{Line: row.line, Msg: fmt.Sprintf("parent %d of row %d does not exist", row.parent, row.id)}
		default:
			children[pi] = append(children[pi], i)
		}
	}
	m.Soma = swcSoma(soma)

	var build func(parent int, start []r3.Vec, startD []float64, i int) error
	build = func(parent int, start []r3.Vec, startD []float64, i int) error {
		pts := append(start, rows[i].p)
		ds := append(startD, rows[i].d)
		typ := rows[i].typ
		for {
			c := children[i]
			if len(c) != 1 || rows[c[0]].typ != typ {
				break
			}
			i = c[0]
			pts = append(pts, rows[i].p)
			ds = append(ds, rows[i].d)
		}
		if len(pts) < 2 {
			return &ParseError{Line: rows[i].line, Msg: fmt.Sprintf("section ending at row %d has a single point", rows[i].id)}
		}
		sec := Section{Type: typ, Points: pts, Diameters: ds}
		var s *Section
		var err error
		if parent < 0 {
			s, err = m.AppendRootSection(sec)
		} else {
			s, err = m.AppendSection(parent, sec)
		}
		if err != nil {
			return err
		}
		last := rows[i]
		for _, c := range children[i] {
			if err := build(s.ID, []r3.Vec{last.p}, []float64{last.d}, c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, i := range roots {
		if err := build(-1, nil, nil, i); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func parseSWCRow(f []string) (swcRow, error) {
	var row swcRow
	var err error
	pi := func(s string) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = strconv.Atoi(s)
		return v
	}
	pf := func(s string) float64 {
		if err != nil {
			return 0
		}
		var v float64
		v, err = strconv.ParseFloat(s, 64)
		return v
	}
	row.id = pi(f[0])
	row.typ = SectionType(pi(f[1]))
	row.p = r3.Vec{X: pf(f[2]), Y: pf(f[3]), Z: pf(f[4])}
	row.d = 2 * pf(f[5])
	row.parent = pi(f[6])
	return row, err
}

// swcSoma classifies the soma rows. Three rows where the second and
// third hang off the first with equal radii are the NeuroMorpho
// three point convention.
func swcSoma(rows []swcRow) Soma {
	var s Soma
	for _, r := range rows {
		s.Points = append(s.Points, r.p)
		s.Diameters = append(s.Diameters, r.d)
	}
	switch {
	case len(rows) == 0:
		s.Type = SomaUndefined
	case len(rows) == 1:
		s.Type = SomaSinglePoint
	case len(rows) == 3 &&
		rows[1].parent == rows[0].id && rows[2].parent == rows[0].id &&
		rows[0].d == rows[1].d && rows[0].d == rows[2].d:
		s.Type = SomaNeuromorphoThreePointCylinders
	default:
		s.Type = SomaCylinders
	}
	return s
}

// HasUnifurcations reports whether any section has exactly one child.
func (m *Morphology) HasUnifurcations() bool {
	for s := range m.Sections() {
		if len(s.Children) == 1 {
			return true
		}
	}
	return false
}

// WriteSWC writes m in SWC format. Contour somata must be converted
// first, and unifurcations removed.
func WriteSWC(w io.Writer, m *Morphology) error {
	switch m.Soma.Type {
	case SomaSimpleContour:
		return errors.Wrapf(ErrInvalidSoma, "cannot write %v to swc", m.Soma.Type)
	case SomaUndefined:
		if len(m.Soma.Points) > 0 {
			return errors.Wrapf(ErrInvalidSoma, "cannot write %v with points to swc", m.Soma.Type)
		}
	}
	if m.HasUnifurcations() {
		return errors.Wrap(ErrUnifurcation, "swc")
	}

	var werr error
	wr := func(f string, args ...interface{}) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(w, f, args...)
	}
	row := func(id int, t SectionType, p r3.Vec, d float64, parent int) {
		wr("%d %d %s %s %s %s %d\n", id, int(t), fmtFloat(p.X), fmtFloat(p.Y), fmtFloat(p.Z), fmtFloat(d/2), parent)
	}

	wr("# index type X Y Z radius parent\n")
	id := 0
	for i, p := range m.Soma.Points {
		id++
		parent := id - 1
		if i == 0 {
			parent = -1
		} else if m.Soma.Type == SomaNeuromorphoThreePointCylinders {
			parent = 1
		}
		row(id, SectionSoma, p, m.Soma.Diameters[i], parent)
	}
	somaLast := id
	if somaLast == 0 {
		somaLast = -1
	}
	lastRow := map[int]int{}
	for s := range m.Sections() {
		parent := somaLast
		start := 0
		if !s.IsRoot() {
			parent = lastRow[s.Parent]
			start = 1
		}
		for i := start; i < len(s.Points); i++ {
			id++
			row(id, s.Type, s.Points[i], s.Diameters[i], parent)
			parent = id
		}
		lastRow[s.ID] = parent
	}
	return werr
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
