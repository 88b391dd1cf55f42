package main

import (
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Convert GeoTIFFs from dB to linear as they arrive in a directory",
	Long: `Watch monitors a directory and converts every new or updated GeoTIFF
from dB to linear power, writing <name>_linear.tif to the output directory.
Bursts of write events for the same file are debounced into one conversion.`,
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.String("dir", "", "directory to watch")
	f.String("out", "", "output directory (default: the watched directory)")
	f.Duration("debounce", 0, "quiet period before a file is converted")
	f.String("listen", "", "serve health and metrics on this address")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, map[string]string{
		"watch.dir":        "dir",
		"watch.output_dir": "out",
		"watch.debounce":   "debounce",
		"server.listen":    "listen",
	})
	if err != nil {
		return err
	}
	defer closeApp(a)

	a.Logger.Info("watching for rasters", "dir", a.Config.Watch.Dir)
	return a.Watch(cmd.Context())
}
