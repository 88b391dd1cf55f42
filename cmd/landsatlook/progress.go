package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressFor returns a factory of per-download progress bars drawn on
// stderr, or nil when progress is off or stderr is not a terminal.
func progressFor(enabled bool) func(string) io.Writer {
	if !enabled || !isTerminal(os.Stderr) {
		return nil
	}
	return newProgressBar
}

// newProgressBar starts as a spinner; the downloader sets the size once the
// response headers arrive.
func newProgressBar(name string) io.Writer {
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}
