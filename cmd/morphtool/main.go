package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/paulhankin/morphtool/cmd/morphtool/morphtool"
)

type flagVecValue struct {
	v *r3.Vec
}

var _ pflag.Value = flagVecValue{}

func (fv flagVecValue) String() string {
	if fv.v == nil {
		return ""
	}
	return fmt.Sprintf("%g,%g,%g", fv.v.X, fv.v.Y, fv.v.Z)
}

func (fv flagVecValue) Type() string { return "x,y,z" }

func parseVecPart(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func (fv flagVecValue) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return fmt.Errorf("can't parse %q as a vector", s)
	}
	var xyz [3]float64
	for i, p := range parts {
		var err error
		if xyz[i], err = parseVecPart(p); err != nil {
			return err
		}
	}
	*fv.v = r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}
	return nil
}

var cfg = morphtool.Config{
	Direction: r3.Vec{Y: 1},
}

func fail(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(2)
}

func oracleFlags(fs *pflag.FlagSet) {
	fs.StringVar(&cfg.Oracle, "oracle", "none", "soma surface oracle: none, frustum or mesh")
	fs.IntVar(&cfg.MeshCells, "mesh-cells", 0, "marching cubes resolution of the mesh oracle")
}

func convertFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&cfg.Recenter, "recenter", false, "move the soma center to the origin")
	fs.BoolVar(&cfg.SinglePointSoma, "single-point-soma", false, "write the soma as a single point (swc only)")
	fs.BoolVar(&cfg.Sanitize, "sanitize", false, "merge sections with a single child before writing")
	fs.BoolVar(&cfg.EnsureArea, "ensure-area", false, "search the contour radius matching the sphere surface with the oracle")
	oracleFlags(fs)
}

func main() {
	ctx := context.Background()

	rootCmd := &cobra.Command{
		Use:   "morphtool",
		Short: "Convert, compare and transform neuron morphologies",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Logger = morphtool.NewLogger(os.Stderr, cfg.Quiet)
		},
	}
	rootCmd.PersistentFlags().BoolVar(&cfg.Quiet, "quiet", false, "only log warnings and errors")

	convertCmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert files from/to the following formats: ASC, SWC, H5",
		Long: `Convert a morphology between file formats.

Each format has its own representation of the soma. The soma shape
cannot be preserved, but its surface is.`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := morphtool.Convert(ctx, &cfg, args[0], args[1]); err != nil {
				fail(err)
			}
		},
	}
	convertFlags(convertCmd.Flags())
	rootCmd.AddCommand(convertCmd)

	folderCmd := &cobra.Command{
		Use:   "convert-folder IN_DIR OUT_DIR",
		Short: "Convert every morphology in a directory",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := morphtool.ConvertFolder(ctx, &cfg, args[0], args[1]); err != nil {
				fail(err)
			}
		},
	}
	convertFlags(folderCmd.Flags())
	folderCmd.Flags().StringVar(&cfg.Ext, "ext", "swc", "output extension: swc, asc or h5")
	folderCmd.Flags().IntVar(&cfg.Jobs, "jobs", 0, "files converted at once; 0 means one per CPU")
	rootCmd.AddCommand(folderCmd)

	diffCmd := &cobra.Command{
		Use:   "diff A B",
		Short: "Compare two morphology files",
		Long: `Compare two morphology files.

Exits with status 0 if the morphologies are identical and 1 otherwise.
Morphologies in different formats can be compared; somata are ignored.`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			d, err := morphtool.Diff(args[0], args[1])
			if err != nil {
				fail(err)
			}
			if d.Different {
				cfg.Logger.Info("morphologies not identical", "reason", d.Info)
				os.Exit(1)
			}
		},
	}
	rootCmd.AddCommand(diffCmd)

	surfaceCmd := &cobra.Command{
		Use:   "soma-surface FILE",
		Short: "Print the soma surface",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a, err := morphtool.SomaSurface(ctx, &cfg, args[0])
			if err != nil {
				fail(err)
			}
			fmt.Printf("Soma surface: %g\n", a)
		},
	}
	oracleFlags(surfaceCmd.Flags())
	rootCmd.AddCommand(surfaceCmd)

	resampleCmd := &cobra.Command{
		Use:   "resample IN OUT",
		Short: "Resample section points at a constant linear density",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := morphtool.Resample(&cfg, args[0], args[1]); err != nil {
				fail(err)
			}
		},
	}
	resampleCmd.Flags().Float64Var(&cfg.Density, "density", 1, "points per micron")
	rootCmd.AddCommand(resampleCmd)

	simplifyCmd := &cobra.Command{
		Use:   "simplify IN OUT",
		Short: "Drop section points within a distance of the simplified line",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := morphtool.Simplify(&cfg, args[0], args[1]); err != nil {
				fail(err)
			}
		},
	}
	simplifyCmd.Flags().Float64Var(&cfg.Epsilon, "epsilon", 0.1, "largest distance of a dropped point from the kept line")
	rootCmd.AddCommand(simplifyCmd)

	alignCmd := &cobra.Command{
		Use:   "align IN OUT",
		Short: "Rotate a morphology so a neurite points along a direction",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			r, err := morphtool.Align(&cfg, args[0], args[1])
			if err != nil {
				fail(err)
			}
			fmt.Printf("%v\n", mat.Formatted(r))
		},
	}
	alignCmd.Flags().Var(flagVecValue{&cfg.Direction}, "direction", "target direction")
	alignCmd.Flags().StringVar(&cfg.Method, "method", "whole", "points aligned: whole, trunk, first_section or first_segment")
	alignCmd.Flags().StringVar(&cfg.Neurite, "neurite", "apical", "neurite aligned: apical, basal or axon")
	alignCmd.Flags().Float64Var(&cfg.TuftPercent, "tuft-percent", 20, "apical height searched for the tuft, for trunk alignment")
	rootCmd.AddCommand(alignCmd)

	outlineCmd := &cobra.Command{
		Use:   "set-soma-outline IN SVG OUT",
		Short: "Replace the soma by an outline drawn in an svg file",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			if err := morphtool.SetSomaOutline(args[0], args[1], args[2]); err != nil {
				fail(err)
			}
		},
	}
	rootCmd.AddCommand(outlineCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}
