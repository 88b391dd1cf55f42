package main

import (
	"time"

	"github.com/spf13/cobra"
)

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Poll the catalog and fetch new scenes as they are published",
	Long: `Follow repeats a search on an interval and fetches the configured bands of
every scene not seen before. With the download index enabled, scenes
fetched by earlier runs are skipped.`,
	Example: `  landsatlook follow --bbox -122.5,37.5,-122,38 --cloud 20 --interval 6h --convert`,
	RunE:    runFollow,
}

func init() {
	addSearchFlags(followCmd, 100)
	f := followCmd.Flags()
	f.Duration("interval", time.Hour, "poll interval")
	f.StringSlice("bands", nil, "asset keys to download (default from config)")
	f.String("out", "", "output directory")
	f.Bool("prefer-s3", false, "download from the requester-pays S3 alternate")
	f.Bool("convert", false, "convert each band from dB to linear")
	f.Bool("publish", false, "upload results through the configured publisher")
	f.String("listen", "", "serve health, metrics and the poll API on this address")
}

func runFollow(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, map[string]string{
		"stac.collection":     "collection",
		"download.bands":      "bands",
		"download.output_dir": "out",
		"download.prefer_s3":  "prefer-s3",
		"server.listen":       "listen",
	})
	if err != nil {
		return err
	}
	defer closeApp(a)

	params, err := searchParams(cmd, a.Config.STAC.Collection)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	opts := a.FetchOptions()
	opts.SkipExists = true
	opts.Convert, _ = cmd.Flags().GetBool("convert")
	opts.Publish, _ = cmd.Flags().GetBool("publish")

	if !opts.PreferS3 {
		if err := a.Authenticate(ctx); err != nil {
			return err
		}
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	return a.Follow(ctx, params, interval, opts)
}
