package main

import (
	"github.com/spf13/cobra"

	"github.com/jobrunner/landsatlook/internal/domain"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <item-id>...",
	Short: "Download band assets of one or more scenes",
	Example: `  landsatlook fetch LC09_L2SP_044034_20240105_20240106_02_T1 --bands red,nir08 --out data
  landsatlook fetch LC09_L2SP_044034_20240105_20240106_02_T1 --prefer-s3 --convert --publish`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.String("collection", "", "STAC collection (default from config)")
	f.StringSlice("bands", nil, "asset keys to download (default from config)")
	f.String("out", "", "output directory")
	f.Bool("prefer-s3", false, "download from the requester-pays S3 alternate")
	f.Bool("skip-exists", false, "skip bands already on disk")
	f.Bool("convert", false, "convert each band from dB to linear")
	f.Bool("publish", false, "upload results through the configured publisher")
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, map[string]string{
		"stac.collection":      "collection",
		"download.bands":       "bands",
		"download.output_dir":  "out",
		"download.prefer_s3":   "prefer-s3",
		"download.skip_exists": "skip-exists",
	})
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := cmd.Context()
	opts := a.FetchOptions()
	opts.Convert, _ = cmd.Flags().GetBool("convert")
	opts.Publish, _ = cmd.Flags().GetBool("publish")

	if !opts.PreferS3 {
		if err := a.Authenticate(ctx); err != nil {
			return err
		}
	}

	var all []domain.DownloadedAsset
	for _, id := range args {
		item, err := a.Scenes.Item(ctx, a.Config.STAC.Collection, id)
		if err != nil {
			return err
		}
		assets, err := a.Scenes.FetchBands(ctx, *item, a.Config.Download.Bands, a.Config.Download.OutputDir, opts)
		all = append(all, assets...)
		if err != nil {
			_ = printOutput(cmd.OutOrStdout(), outputFormat, all, func() string { return assetsTable(all) })
			return err
		}
	}

	return printOutput(cmd.OutOrStdout(), outputFormat, all, func() string { return assetsTable(all) })
}
