package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stackCmd = &cobra.Command{
	Use:   "stack <dst> <src>...",
	Short: "Stack single-band GeoTIFFs on the same grid into one multi-band GeoTIFF",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runStack,
}

func runStack(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, nil)
	if err != nil {
		return err
	}
	defer closeApp(a)

	dst, srcs := args[0], args[1:]
	if err := a.Raster.Stack(cmd.Context(), srcs, dst); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bands)\n", dst, len(srcs))
	return err
}
