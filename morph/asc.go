package morph

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
	"gonum.org/v1/gonum/spatial/r3"
)

// sexp is a node of a Neurolucida s-expression. Lists have list set;
// atoms carry their text, with quoted strings keeping their quotes.
// Spines are the lists written between < and >.
type sexp struct {
	atom  string
	list  []*sexp
	line  int
	spine bool
}

func (e *sexp) isList() bool { return e.atom == "" }

func (e *sexp) isBar() bool { return e.atom == "|" }

// head returns the first atom of a list, or "".
func (e *sexp) head() string {
	if !e.isList() || len(e.list) == 0 {
		return ""
	}
	return e.list[0].atom
}

type ascLexer struct {
	src  []byte
	pos  int
	line int
}

const (
	tokEOF = iota
	tokOpen
	tokClose
	tokAtom
	tokSpineOpen
	tokSpineClose
)

func (l *ascLexer) next() (int, string) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == ',':
			l.pos++
		case c == ';':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '(':
			l.pos++
			return tokOpen, "("
		case c == ')':
			l.pos++
			return tokClose, ")"
		case c == '<':
			l.pos++
			return tokSpineOpen, "<"
		case c == '>':
			l.pos++
			return tokSpineClose, ">"
		case c == '|':
			l.pos++
			return tokAtom, "|"
		case c == '"':
			start := l.pos
			l.pos++
			for l.pos < len(l.src) && l.src[l.pos] != '"' {
				if l.src[l.pos] == '\n' {
					l.line++
				}
				l.pos++
			}
			l.pos++
			if l.pos > len(l.src) {
				l.pos = len(l.src)
			}
			return tokAtom, string(l.src[start:l.pos])
		default:
			start := l.pos
			for l.pos < len(l.src) && !strings.ContainsRune(" \t\r\n,;()|\"<>", rune(l.src[l.pos])) {
				l.pos++
			}
			return tokAtom, string(l.src[start:l.pos])
		}
	}
	return tokEOF, ""
}

func parseSexps(src []byte) ([]*sexp, error) {
	l := &ascLexer{src: src, line: 1}
	root := &sexp{}
	stack := []*sexp{root}
	for {
		tok, text := l.next()
		top := stack[len(stack)-1]
		switch tok {
		case tokEOF:
			if len(stack) != 1 {
				return nil, &ParseError{Line: l.line, Msg: "unexpected end of file: unbalanced parentheses"}
			}
			return root.list, nil
		case tokOpen:
			n := &sexp{line: l.line}
			top.list = append(top.list, n)
			stack = append(stack, n)
		case tokSpineOpen:
			n := &sexp{line: l.line, spine: true}
			top.list = append(top.list, n)
			stack = append(stack, n)
		case tokClose, tokSpineClose:
			if len(stack) == 1 || top.spine != (tok == tokSpineClose) {
				return nil, &ParseError{Line: l.line, Msg: "unexpected " + text}
			}
			stack = stack[:len(stack)-1]
		case tokAtom:
			top.list = append(top.list, &sexp{atom: text, line: l.line})
		}
	}
}

// asPoint interprets a list of numbers (x y z d [sN]) as a point.
func (e *sexp) asPoint() (r3.Vec, float64, bool) {
	if !e.isList() || e.spine || len(e.list) < 3 {
		return r3.Vec{}, 0, false
	}
	var v [4]float64
	n := 0
	for _, a := range e.list {
		if a.isList() || n == 4 {
			break
		}
		f, err := strconv.ParseFloat(a.atom, 64)
		if err != nil {
			break
		}
		v[n] = f
		n++
	}
	if n < 3 {
		return r3.Vec{}, 0, false
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, v[3], true
}

// isBranchGroup reports whether e is a list of child branches, which
// starts with a point list or a separator rather than a keyword.
func (e *sexp) isBranchGroup() bool {
	if !e.isList() || len(e.list) == 0 {
		return false
	}
	first := e.list[0]
	if first.isBar() {
		return true
	}
	if !first.isList() {
		return false
	}
	_, _, ok := first.asPoint()
	return ok || first.isBranchGroup()
}

var ascNeuriteTypes = map[string]SectionType{
	"Axon":     SectionAxon,
	"Dendrite": SectionBasalDendrite,
	"Apical":   SectionApicalDendrite,
}

// ReadASC parses a Neurolucida ASC file. Input that is not valid
// UTF-8 is decoded as windows-1252.
func ReadASC(r io.Reader) (*Morphology, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		cr, err := charset.NewReaderLabel("windows-1252", bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		if raw, err = io.ReadAll(cr); err != nil {
			return nil, err
		}
	}
	top, err := parseSexps(raw)
	if err != nil {
		return nil, err
	}

	m := New(FormatASC)
	somaSeen := false
	for _, e := range top {
		if !e.isList() {
			continue
		}
		kind, typ := classifyASC(e)
		switch kind {
		case ascSoma:
			if somaSeen {
				continue
			}
			somaSeen = true
			for _, c := range e.list {
				if p, d, ok := c.asPoint(); ok {
					m.Soma.Points = append(m.Soma.Points, p)
					m.Soma.Diameters = append(m.Soma.Diameters, d)
				}
			}
		case ascNeurite:
			if err := readASCSection(m, -1, typ, nil, nil, e.list); err != nil {
				return nil, err
			}
		}
	}
	switch n := len(m.Soma.Points); {
	case n == 1:
		m.Soma.Type = SomaSinglePoint
	case n >= 3:
		m.Soma.Type = SomaSimpleContour
	default:
		m.Soma.Type = SomaUndefined
	}
	return m, nil
}

const (
	ascIgnore = iota
	ascSoma
	ascNeurite
)

func classifyASC(e *sexp) (int, SectionType) {
	if e.head() == `"CellBody"` {
		return ascSoma, SectionUndefined
	}
	for _, c := range e.list {
		if !c.isList() || len(c.list) != 1 {
			continue
		}
		if c.head() == "CellBody" {
			return ascSoma, SectionUndefined
		}
		if t, ok := ascNeuriteTypes[c.head()]; ok {
			return ascNeurite, t
		}
	}
	return ascIgnore, SectionUndefined
}

// readASCSection reads the points of one section from elts, then
// recurses into its branch group, if any.
func readASCSection(m *Morphology, parent int, typ SectionType, pts []r3.Vec, ds []float64, elts []*sexp) error {
	var group *sexp
	line := 0
	for _, c := range elts {
		if line == 0 {
			line = c.line
		}
		if !c.isList() || c.spine {
			continue
		}
		if p, d, ok := c.asPoint(); ok {
			if group != nil {
				return &ParseError{Line: c.line, Msg: "point after branch group"}
			}
			pts = append(pts, p)
			ds = append(ds, d)
			continue
		}
		if c.isBranchGroup() {
			group = c
		}
	}
	if len(pts) < 2 {
		return &ParseError{Line: line, Msg: "section with fewer than two points"}
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
	if group == nil {
		return nil
	}
	last, lastD := pts[len(pts)-1], ds[len(ds)-1]
	var branch []*sexp
	flush := func() error {
		err := readASCSection(m, s.ID, typ, []r3.Vec{last}, []float64{lastD}, branch)
		branch = nil
		return err
	}
	for _, c := range group.list {
		if c.isBar() {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		branch = append(branch, c)
	}
	return flush()
}

var ascNeuriteNames = map[SectionType]string{
	SectionAxon:           "Axon",
	SectionBasalDendrite:  "Dendrite",
	SectionApicalDendrite: "Apical",
}

// WriteASC writes m in Neurolucida ASC format. Only contour, single
// point and undefined somata, and axon and dendrite sections, can be
// written.
func WriteASC(w io.Writer, m *Morphology) error {
	switch m.Soma.Type {
	case SomaSimpleContour, SomaSinglePoint, SomaUndefined:
	default:
		return errors.Wrapf(ErrInvalidSoma, "cannot write %v to asc", m.Soma.Type)
	}
	if m.HasUnifurcations() {
		return errors.Wrap(ErrUnifurcation, "asc")
	}
	for s := range m.Sections() {
		if _, ok := ascNeuriteNames[s.Type]; !ok {
			return errors.Errorf("section type %v cannot be written to asc", s.Type)
		}
	}

	var werr error
	wr := func(f string, args ...interface{}) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(w, f, args...)
	}
	pt := func(indent string, p r3.Vec, d float64) {
		wr("%s(%s %s %s %s)\n", indent, fmtFloat(p.X), fmtFloat(p.Y), fmtFloat(p.Z), fmtFloat(d))
	}

	if len(m.Soma.Points) > 0 {
		wr("(\"CellBody\"\n  (Color Red)\n  (CellBody)\n")
		for i, p := range m.Soma.Points {
			pt("  ", p, m.Soma.Diameters[i])
		}
		wr(")\n\n")
	}

	var section func(s *Section, indent string, start int)
	section = func(s *Section, indent string, start int) {
		for i := start; i < len(s.Points); i++ {
			pt(indent, s.Points[i], s.Diameters[i])
		}
		if s.IsLeaf() {
			return
		}
		wr("%s(\n", indent)
		for i, c := range s.Children {
			if i > 0 {
				wr("%s|\n", indent)
			}
			section(m.sections[c], indent+"  ", 1)
		}
		wr("%s)\n", indent)
	}
	for _, r := range m.RootSections() {
		wr("( (Color White)\n  (%s)\n", ascNeuriteNames[r.Type])
		section(r, "  ", 0)
		wr(")\n\n")
	}
	return werr
}
