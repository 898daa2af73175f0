// Package morphtool provides the functionality for the morphtool
// binary as a library.
package morphtool

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/convert"
	"github.com/paulhankin/morphtool/morph"
	_ "github.com/paulhankin/morphtool/morph/h5"
	"github.com/paulhankin/morphtool/spatial"
	"github.com/paulhankin/morphtool/surface"
	"github.com/paulhankin/morphtool/surface/mesh"
)

type Config struct {
	Quiet bool

	// Oracle is one of none, frustum or mesh.
	Oracle    string
	MeshCells int

	EnsureArea      bool
	Recenter        bool
	SinglePointSoma bool
	Sanitize        bool

	// Ext is the output extension of ConvertFolder, and Jobs the
	// number of files converted at once.
	Ext  string
	Jobs int

	Density float64
	Epsilon float64

	Direction   r3.Vec
	Method      string
	Neurite     string
	TuftPercent float64

	Logger *slog.Logger
}

// NewLogger returns a text logger writing to w, at Info level unless
// quiet.
func NewLogger(w io.Writer, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (cfg *Config) logger() *slog.Logger {
	if cfg.Logger == nil {
		cfg.Logger = NewLogger(os.Stderr, cfg.Quiet)
	}
	return cfg.Logger
}

// SurfaceOracle returns the oracle named by cfg.Oracle, or nil for
// none.
func (cfg *Config) SurfaceOracle() (convert.SurfaceOracle, error) {
	switch strings.ToLower(cfg.Oracle) {
	case "", "none":
		return nil, nil
	case "frustum":
		return surface.Frustum{}, nil
	case "mesh":
		return &mesh.Oracle{Cells: cfg.MeshCells, Logger: cfg.logger()}, nil
	}
	return nil, errors.Errorf("unknown oracle %q, want none, frustum or mesh", cfg.Oracle)
}

func (cfg *Config) fileOptions() (convert.FileOptions, error) {
	o, err := cfg.SurfaceOracle()
	if err != nil {
		return convert.FileOptions{}, err
	}
	if cfg.EnsureArea && o == nil {
		return convert.FileOptions{}, errors.New("--ensure-area needs an oracle")
	}
	return convert.FileOptions{
		Options: convert.Options{
			EnsureArea: cfg.EnsureArea,
			Oracle:     o,
			Logger:     cfg.logger(),
		},
		Recenter:        cfg.Recenter,
		SinglePointSoma: cfg.SinglePointSoma,
		Sanitize:        cfg.Sanitize,
	}, nil
}

// Convert converts the morphology in file in to the format of out.
func Convert(ctx context.Context, cfg *Config, in, out string) error {
	opts, err := cfg.fileOptions()
	if err != nil {
		return err
	}
	return convert.File(ctx, in, out, opts)
}

// ConvertFolder converts every morphology file in inDir into a file of
// the same name with extension cfg.Ext in outDir. Files that fail are
// logged; the first failure is returned once all files are done.
func ConvertFolder(ctx context.Context, cfg *Config, inDir, outDir string) error {
	opts, err := cfg.fileOptions()
	if err != nil {
		return err
	}
	ext := strings.TrimPrefix(strings.ToLower(cfg.Ext), ".")
	if _, ok := morph.FormatFromExt(ext); !ok {
		return errors.Wrapf(convert.ErrUnsupportedExtension, "%q", cfg.Ext)
	}
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	log := cfg.logger()
	var g errgroup.Group
	g.SetLimit(jobs)
	for _, e := range entries {
		name := e.Name()
		if _, ok := morph.FormatOf(name); e.IsDir() || !ok {
			continue
		}
		in := filepath.Join(inDir, name)
		out := filepath.Join(outDir, strings.TrimSuffix(name, filepath.Ext(name))+"."+ext)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := convert.File(ctx, in, out, opts); err != nil {
				log.Error("conversion failed", "file", in, "err", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Diff compares the morphologies in two files.
func Diff(a, b string) (morph.DiffResult, error) {
	ma, err := morph.ReadFile(a)
	if err != nil {
		return morph.DiffResult{}, err
	}
	mb, err := morph.ReadFile(b)
	if err != nil {
		return morph.DiffResult{}, err
	}
	return morph.Diff(ma, mb, morph.DefaultDiffOptions()), nil
}

// SomaSurface measures the soma of the morphology in path with the
// configured oracle, defaulting to the frustum sum.
func SomaSurface(ctx context.Context, cfg *Config, path string) (float64, error) {
	o, err := cfg.SurfaceOracle()
	if err != nil {
		return 0, err
	}
	if o == nil {
		o = surface.Frustum{}
	}
	return o.SomaSurface(ctx, path)
}

func rewrite(in, out string, f func(m *morph.Morphology) (*morph.Morphology, error)) error {
	m, err := morph.ReadFile(in)
	if err != nil {
		return err
	}
	r, err := f(m)
	if err != nil {
		return err
	}
	return morph.WriteFile(r, out)
}

// Resample writes in to out with points resampled at cfg.Density
// points per micron.
func Resample(cfg *Config, in, out string) error {
	return rewrite(in, out, func(m *morph.Morphology) (*morph.Morphology, error) {
		return m.ResampleLinearDensity(cfg.Density), nil
	})
}

// Simplify writes in to out with sections simplified to within
// cfg.Epsilon.
func Simplify(cfg *Config, in, out string) error {
	return rewrite(in, out, func(m *morph.Morphology) (*morph.Morphology, error) {
		return m.Simplify(cfg.Epsilon), nil
	})
}

var neuriteTypes = map[string]morph.SectionType{
	"":       morph.SectionApicalDendrite,
	"apical": morph.SectionApicalDendrite,
	"basal":  morph.SectionBasalDendrite,
	"axon":   morph.SectionAxon,
}

// Align writes in to out rotated so that the chosen neurite points
// along cfg.Direction, and returns the rotation.
func Align(cfg *Config, in, out string) (*mat.Dense, error) {
	method := spatial.AlignWhole
	if cfg.Method != "" {
		var err error
		if method, err = spatial.ParseAlignMethod(cfg.Method); err != nil {
			return nil, err
		}
	}
	typ, ok := neuriteTypes[strings.ToLower(cfg.Neurite)]
	if !ok {
		return nil, errors.Errorf("unknown neurite %q, want apical, basal or axon", cfg.Neurite)
	}
	var rot *mat.Dense
	err := rewrite(in, out, func(m *morph.Morphology) (*morph.Morphology, error) {
		var err error
		rot, err = spatial.AlignToDirection(m, cfg.Direction, spatial.AlignOptions{
			Method:      method,
			NeuriteType: typ,
			TuftPercent: cfg.TuftPercent,
			Logger:      cfg.logger(),
		})
		return m, err
	})
	return rot, err
}

// SetSomaOutline writes in to out with its soma replaced by the
// outline drawn in the svg file.
func SetSomaOutline(in, svg, out string) error {
	f, err := os.Open(svg)
	if err != nil {
		return err
	}
	defer f.Close()
	outline, err := morph.ReadSVGOutline(f)
	if err != nil {
		return errors.Wrapf(err, "reading outline from %s", svg)
	}
	return rewrite(in, out, func(m *morph.Morphology) (*morph.Morphology, error) {
		m.Soma.SetContour(outline)
		return m, nil
	})
}
