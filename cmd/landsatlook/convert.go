package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/input"
)

var convertCmd = &cobra.Command{
	Use:   "convert <src> <dst>",
	Short: "Apply a per-pixel transform to a single-band GeoTIFF",
	Long: `Convert reads a single-band GeoTIFF, applies a pixel transform and writes
the result with the source georeferencing. Nodata pixels are transformed
like any other pixel unless --preserve-nodata is set.

Operations:
  db-to-linear   10^(v/10)
  linear-to-db   10*log10(v)`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.String("op", string(domain.OpDBToLinear), "pixel operation (db-to-linear, linear-to-db)")
	f.String("dtype", "", "output data type (default float32, float64 stays float64)")
	f.Bool("preserve-nodata", false, "copy nodata pixels unchanged")
}

func runConvert(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, map[string]string{
		"convert.data_type":       "dtype",
		"convert.preserve_nodata": "preserve-nodata",
	})
	if err != nil {
		return err
	}
	defer closeApp(a)

	opName, _ := cmd.Flags().GetString("op")
	op := domain.PixelOp(opName)
	fn, err := op.Func()
	if err != nil {
		return err
	}

	src, dst := args[0], args[1]
	err = a.Raster.ApplyPixelTransform(cmd.Context(), src, dst, fn, input.ConvertOptions{
		Operation:      string(op),
		DataType:       a.Config.Convert.OutputType(),
		PreserveNoData: a.Config.Convert.PreserveNoData,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), dst)
	return err
}
