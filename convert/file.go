package convert

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/morph"
)

// FileOptions configures File.
type FileOptions struct {
	Options

	// Recenter translates the output so the soma center is at the
	// origin.
	Recenter bool
	// SinglePointSoma collapses the converted soma into a single
	// point. Only valid for swc output.
	SinglePointSoma bool
	// Sanitize merges sections that have a single child before
	// converting. Without it such morphologies cannot be written to
	// swc or asc.
	Sanitize bool
}

// File converts the morphology in file in to the format implied by
// the extension of out, and writes it there.
//
// If an oracle is configured, the soma surfaces of the input and
// output files are logged; oracle failures are logged and ignored.
func File(ctx context.Context, in, out string, opts FileOptions) error {
	target, ok := morph.FormatOf(out)
	if opts.SinglePointSoma && target != morph.FormatSWC {
		return ErrSinglePointSoma
	}
	if !ok {
		return errors.Wrapf(ErrUnsupportedExtension, "%q", out)
	}
	log := opts.logger()

	m, err := morph.ReadFile(in)
	if err != nil {
		return err
	}
	if opts.Sanitize {
		m.RemoveUnifurcations()
	}

	log.Info("original soma type", "type", m.Soma.Type, "file", in)
	c, err := Soma(ctx, m, target.String(), opts.Options)
	if err != nil {
		return errors.Wrapf(err, "converting %s", in)
	}
	if opts.SinglePointSoma {
		log.Info("converting soma to a single point sphere, while preserving the surface")
		c.Soma = ToSinglePoint(c.Soma)
	}
	if opts.Recenter {
		c.Translate(r3.Scale(-1, c.Soma.Center()))
	}
	if m.Format == morph.FormatH5 && target != morph.FormatH5 {
		c.ClearPerimeters()
	}

	if err := morph.WriteFile(c, out); err != nil {
		if errors.Is(err, morph.ErrUnifurcation) {
			return errors.Wrapf(ErrNeedsSanitize, "writing %s: %v", out, err)
		}
		return errors.Wrapf(err, "writing %s", out)
	}

	if opts.Oracle != nil {
		logSurfaces(ctx, in, out, opts.Options)
	}
	return nil
}

func logSurfaces(ctx context.Context, in, out string, opts Options) {
	log := opts.logger()
	before, err := opts.Oracle.SomaSurface(ctx, in)
	if err != nil {
		log.Info("final soma surface check skipped", "err", err)
		return
	}
	after, err := opts.Oracle.SomaSurface(ctx, out)
	if err != nil {
		log.Info("final soma surface check skipped", "err", err)
		return
	}
	log.Info("soma surface", "before", before, "after", after)
}
