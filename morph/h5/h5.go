// Package h5 reads and writes morphologies stored in HDF5 files.
// Importing it registers the format with package morph.
//
// The layout has a /points dataset of rows (x, y, z, diameter), a
// /structure dataset of rows (first point, type, parent row) whose
// row 0 is the soma, an optional /perimeters dataset, and a /metadata
// group holding the cell family.
package h5

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/hdf5"

	"github.com/paulhankin/morphtool/morph"
)

func init() {
	morph.RegisterFormat(morph.FormatH5, morph.Codec{Read: Read, Write: Write})
}

func readDataset(f *hdf5.File, name string, cols uint) ([]uint, *hdf5.Dataset, error) {
	ds, err := f.OpenDataset(name)
	if err != nil {
		return nil, nil, err
	}
	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		ds.Close()
		return nil, nil, err
	}
	if cols > 0 && (len(dims) != 2 || dims[1] != cols) {
		ds.Close()
		return nil, nil, &morph.ParseError{Msg: "dataset " + name + " has the wrong shape"}
	}
	return dims, ds, nil
}

// Read reads the morphology stored in the HDF5 file at path.
func Read(path string) (*morph.Morphology, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	dims, ds, err := readDataset(f, "points", 4)
	if err != nil {
		return nil, errors.Wrap(err, "points")
	}
	points := make([]float32, dims[0]*dims[1])
	err = ds.Read(&points)
	ds.Close()
	if err != nil {
		return nil, errors.Wrap(err, "reading points")
	}
	np := int(dims[0])

	dims, ds, err = readDataset(f, "structure", 3)
	if err != nil {
		return nil, errors.Wrap(err, "structure")
	}
	structure := make([]int32, dims[0]*dims[1])
	err = ds.Read(&structure)
	ds.Close()
	if err != nil {
		return nil, errors.Wrap(err, "reading structure")
	}
	ns := int(dims[0])

	var perimeters []float32
	if dims, ds, err := readDataset(f, "perimeters", 0); err == nil {
		perimeters = make([]float32, dims[0])
		err = ds.Read(&perimeters)
		ds.Close()
		if err != nil {
			return nil, errors.Wrap(err, "reading perimeters")
		}
		if len(perimeters) != np {
			return nil, &morph.ParseError{File: path, Msg: "perimeters and points differ in length"}
		}
	}

	m := morph.New(morph.FormatH5)
	m.Family = readFamily(f)

	end := func(row int) int {
		if row+1 < ns {
			return int(structure[3*(row+1)])
		}
		return np
	}
	vec := func(i int) r3.Vec {
		return r3.Vec{X: float64(points[4*i]), Y: float64(points[4*i+1]), Z: float64(points[4*i+2])}
	}

	// Section rows map to morphology ids; row 0 is the soma.
	ids := make([]int, ns)
	for row := 0; row < ns; row++ {
		off, typ, parent := int(structure[3*row]), morph.SectionType(structure[3*row+1]), int(structure[3*row+2])
		hi := end(row)
		if off < 0 || hi > np || off > hi {
			return nil, &morph.ParseError{File: path, Msg: "structure offsets out of range"}
		}
		if row == 0 && typ == morph.SectionSoma {
			for i := off; i < hi; i++ {
				m.Soma.Points = append(m.Soma.Points, vec(i))
				m.Soma.Diameters = append(m.Soma.Diameters, float64(points[4*i+3]))
			}
			ids[row] = -1
			continue
		}
		var sec morph.Section
		sec.Type = typ
		for i := off; i < hi; i++ {
			sec.Points = append(sec.Points, vec(i))
			sec.Diameters = append(sec.Diameters, float64(points[4*i+3]))
			if perimeters != nil {
				sec.Perimeters = append(sec.Perimeters, float64(perimeters[i]))
			}
		}
		var s *morph.Section
		switch {
		case parent >= row:
			err = &morph.ParseError{File: path, Msg: "section listed before its parent"}
		case parent < 0 || ids[parent] < 0:
			s, err = m.AppendRootSection(sec)
		default:
			s, err = m.AppendSection(ids[parent], sec)
		}
		if err != nil {
			return nil, err
		}
		ids[row] = s.ID
	}

	switch n := len(m.Soma.Points); {
	case n == 1:
		m.Soma.Type = morph.SomaSinglePoint
	case n >= 3:
		m.Soma.Type = morph.SomaSimpleContour
	default:
		m.Soma.Type = morph.SomaUndefined
	}
	return m, nil
}

func readFamily(f *hdf5.File) morph.CellFamily {
	g, err := f.OpenGroup("metadata")
	if err != nil {
		return morph.FamilyNeuron
	}
	defer g.Close()
	ds, err := g.OpenDataset("cell_family")
	if err != nil {
		return morph.FamilyNeuron
	}
	defer ds.Close()
	v := make([]int32, 1)
	if err := ds.Read(&v); err != nil {
		return morph.FamilyNeuron
	}
	return morph.CellFamily(v[0])
}

func writeDataset(loc interface {
	CreateDataset(string, *hdf5.Datatype, *hdf5.Dataspace) (*hdf5.Dataset, error)
}, name string, dtype *hdf5.Datatype, dims []uint, data interface{}) error {
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer space.Close()
	ds, err := loc.CreateDataset(name, dtype, space)
	if err != nil {
		return errors.Wrapf(err, "creating %s", name)
	}
	if err := ds.Write(data); err != nil {
		ds.Close()
		return errors.Wrapf(err, "writing %s", name)
	}
	return ds.Close()
}

// Write stores m in a new HDF5 file at path. Cylinder and three point
// somata cannot be stored.
func Write(m *morph.Morphology, path string) error {
	switch m.Soma.Type {
	case morph.SomaSimpleContour, morph.SomaSinglePoint, morph.SomaUndefined:
	default:
		return errors.Wrapf(morph.ErrInvalidSoma, "cannot write %v to h5", m.Soma.Type)
	}

	var points []float32
	var perimeters []float32
	withPerimeters := m.HasPerimeters()
	add := func(p r3.Vec, d, perim float64) {
		points = append(points, float32(p.X), float32(p.Y), float32(p.Z), float32(d))
		if withPerimeters {
			perimeters = append(perimeters, float32(perim))
		}
	}
	structure := []int32{0, int32(morph.SectionSoma), -1}
	for i, p := range m.Soma.Points {
		add(p, m.Soma.Diameters[i], 0)
	}
	rows := map[int]int32{}
	for s := range m.Sections() {
		parent := int32(0)
		if !s.IsRoot() {
			parent = rows[s.Parent]
		}
		rows[s.ID] = int32(len(structure) / 3)
		structure = append(structure, int32(len(points)/4), int32(s.Type), parent)
		for i, p := range s.Points {
			perim := 0.0
			if i < len(s.Perimeters) {
				perim = s.Perimeters[i]
			}
			add(p, s.Diameters[i], perim)
		}
	}

	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	werr := func() error {
		if err := writeDataset(f, "points", hdf5.T_NATIVE_FLOAT, []uint{uint(len(points) / 4), 4}, &points); err != nil {
			return err
		}
		if err := writeDataset(f, "structure", hdf5.T_NATIVE_INT32, []uint{uint(len(structure) / 3), 3}, &structure); err != nil {
			return err
		}
		if withPerimeters {
			if err := writeDataset(f, "perimeters", hdf5.T_NATIVE_FLOAT, []uint{uint(len(perimeters))}, &perimeters); err != nil {
				return err
			}
		}
		g, err := f.CreateGroup("metadata")
		if err != nil {
			return err
		}
		defer g.Close()
		family := []int32{int32(m.Family)}
		return writeDataset(g, "cell_family", hdf5.T_NATIVE_INT32, []uint{1}, &family)
	}()
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}
