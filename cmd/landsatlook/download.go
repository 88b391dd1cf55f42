package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download <url> <dest>",
	Short: "Download a URL through the authenticated session",
	Long: `Download streams a URL to a local file in chunks using the ERS session.
The session logs in first when credentials are configured. The destination
directory must exist.`,
	Args: cobra.ExactArgs(2),
	RunE: runDownload,
}

func init() {
	f := downloadCmd.Flags()
	f.Int("chunk-size", 0, "bytes per chunk")
	f.Duration("timeout", 0, "per-read timeout")
}

func runDownload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, map[string]string{
		"download.chunk_size": "chunk-size",
		"download.timeout":    "timeout",
	})
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := cmd.Context()
	if err := a.Authenticate(ctx); err != nil {
		return err
	}

	url, dest := args[0], args[1]
	opts := a.DownloadOptions()
	if pf := progressFor(a.Config.Download.Progress); pf != nil {
		opts.Progress = pf(filepath.Base(dest))
	}

	n, err := a.Downloader.Download(ctx, a.Session, url, dest, opts)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", dest, humanize.IBytes(uint64(n)))
	return err
}
