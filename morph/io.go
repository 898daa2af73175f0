package morph

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Format is an on-disk morphology format.
type Format int

const (
	FormatUnknown Format = iota
	FormatSWC
	FormatASC
	FormatH5
)

func (f Format) String() string {
	switch f {
	case FormatSWC:
		return "swc"
	case FormatASC:
		return "asc"
	case FormatH5:
		return "h5"
	}
	return "unknown"
}

// FormatFromExt maps a file extension, with or without the leading
// dot and in any case, to a format.
func FormatFromExt(ext string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "swc":
		return FormatSWC, true
	case "asc":
		return FormatASC, true
	case "h5":
		return FormatH5, true
	}
	return FormatUnknown, false
}

// FormatOf returns the format implied by the extension of path.
func FormatOf(path string) (Format, bool) {
	return FormatFromExt(filepath.Ext(path))
}

// ValidSoma reports whether morphologies read from f can carry a soma
// of type t. Unknown formats accept every type.
func (f Format) ValidSoma(t SomaType) bool {
	switch f {
	case FormatSWC:
		return t == SomaSinglePoint || t == SomaCylinders || t == SomaNeuromorphoThreePointCylinders
	case FormatASC, FormatH5:
		return t == SomaSimpleContour || t == SomaSinglePoint || t == SomaUndefined
	}
	return true
}

var (
	// ErrUnknownFormat is returned for paths whose extension maps to
	// no registered format.
	ErrUnknownFormat = errors.New("unknown morphology format")
	// ErrUnifurcation is returned by writers that cannot encode
	// sections with a single child.
	ErrUnifurcation = errors.New("morphology has sections with a single child")
	// ErrInvalidSoma is returned by writers given a soma type their
	// format cannot hold.
	ErrInvalidSoma = errors.New("soma type not supported by format")
)

// ParseError reports a malformed morphology file.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	f := e.File
	if f == "" {
		f = "<input>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", f, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", f, e.Msg)
}

// A Codec reads and writes one format from and to files.
type Codec struct {
	Read  func(path string) (*Morphology, error)
	Write func(m *Morphology, path string) error
}

var (
	codecsMu sync.RWMutex
	codecs   = map[Format]Codec{}
)

// RegisterFormat installs the codec for f, replacing any previous one.
func RegisterFormat(f Format, c Codec) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	codecs[f] = c
}

func codecFor(path string) (Format, Codec, error) {
	f, ok := FormatOf(path)
	if !ok {
		return f, Codec{}, errors.Wrapf(ErrUnknownFormat, "%q", path)
	}
	codecsMu.RLock()
	c, ok := codecs[f]
	codecsMu.RUnlock()
	if !ok {
		return f, Codec{}, errors.Wrapf(ErrUnknownFormat, "no codec registered for %s", f)
	}
	return f, c, nil
}

// ReadFile reads a morphology, picking the format from the file
// extension.
func ReadFile(path string) (*Morphology, error) {
	f, c, err := codecFor(path)
	if err != nil {
		return nil, err
	}
	m, err := c.Read(path)
	if err != nil {
		return nil, err
	}
	m.Format = f
	return m, nil
}

// WriteFile writes m, picking the format from the file extension.
func WriteFile(m *Morphology, path string) error {
	_, c, err := codecFor(path)
	if err != nil {
		return err
	}
	return c.Write(m, path)
}

func init() {
	RegisterFormat(FormatSWC, Codec{
		Read: func(path string) (*Morphology, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			m, err := ReadSWC(f)
			return m, withFile(err, path)
		},
		Write: func(m *Morphology, path string) error {
			return writeFile(path, func(w *bufio.Writer) error { return WriteSWC(w, m) })
		},
	})
	RegisterFormat(FormatASC, Codec{
		Read: func(path string) (*Morphology, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			m, err := ReadASC(f)
			return m, withFile(err, path)
		},
		Write: func(m *Morphology, path string) error {
			return writeFile(path, func(w *bufio.Writer) error { return WriteASC(w, m) })
		},
	})
}

func withFile(err error, path string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.File == "" {
		pe.File = path
	}
	return err
}

// writeFile creates path only after the morphology encodes cleanly.
func writeFile(path string, enc func(w *bufio.Writer) error) error {
	var sb strings.Builder
	bw := bufio.NewWriter(&sb)
	if err := enc(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, []byte(sb.String()), 0o644), "writing morphology")
}
