// Package application contains the application services.
package application

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/input"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// Download defaults.
const (
	DefaultChunkSize       = 1 << 20
	DefaultDownloadTimeout = 120 * time.Second
)

const sourceHTTP = "http"

// Downloader streams a URL through a caller-owned session into a local file.
type Downloader struct {
	metrics output.MetricsCollector
	logger  *slog.Logger
}

var _ input.Downloader = (*Downloader)(nil)

// NewDownloader creates a new downloader.
func NewDownloader(metrics output.MetricsCollector, logger *slog.Logger) *Downloader {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &Downloader{metrics: metrics, logger: logger}
}

// Download fetches url into dest and returns the number of bytes written.
// The destination is created or truncated; its parent directory must exist.
// A failure mid-stream leaves the bytes received so far on disk.
func (d *Downloader) Download(ctx context.Context, session output.Session, url, dest string, opts input.DownloadOptions) (n int64, err error) {
	if url == "" {
		return 0, &domain.ValidationError{Field: "url", Value: url, Constraint: "non-empty", Message: "download url is required"}
	}
	if dest == "" {
		return 0, &domain.ValidationError{Field: "dest", Value: dest, Constraint: "non-empty", Message: "destination path is required"}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDownloadTimeout
	}

	start := time.Now()
	defer func() {
		d.metrics.IncDownloads(sourceHTTP, err == nil)
		d.metrics.AddDownloadBytes(sourceHTTP, n)
		d.metrics.ObserveDownloadDuration(sourceHTTP, time.Since(start))
	}()

	resp, err := session.Get(ctx, url, opts.Timeout)
	if err != nil {
		return 0, &domain.TransportError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := RaiseForStatus(resp, url); err != nil {
		return 0, err
	}

	if s, ok := opts.Progress.(interface{ ChangeMax64(int64) }); ok && resp.ContentLength > 0 {
		s.ChangeMax64(resp.ContentLength)
	}

	f, err := os.Create(dest) //#nosec G304 -- dest is chosen by the caller
	if err != nil {
		return 0, &domain.StorageError{Operation: "create", Key: dest, Err: err}
	}

	n, err = writeChunks(f, iterContent(resp.Body, opts.ChunkSize), opts.Progress, url, dest)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = &domain.StorageError{Operation: "close", Key: dest, Err: cerr}
	}
	if err != nil {
		return n, err
	}

	d.logger.Debug("download completed", "url", url, "dest", dest, "bytes", n, "duration", time.Since(start))
	return n, nil
}

func writeChunks(w io.Writer, chunks iter.Seq2[[]byte, error], progress io.Writer, url, dest string) (int64, error) {
	var n int64
	for chunk, err := range chunks {
		if err != nil {
			return n, &domain.TransportError{URL: url, Err: err}
		}
		m, err := w.Write(chunk)
		n += int64(m)
		if err != nil {
			return n, &domain.StorageError{Operation: "write", Key: dest, Err: err}
		}
		if progress != nil {
			_, _ = progress.Write(chunk)
		}
	}
	return n, nil
}

// iterContent yields the reader's content in chunks of at most size bytes.
// The yielded slice is reused between iterations. The sequence is single-use.
func iterContent(r io.Reader, size int) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			if n > 0 && !yield(buf[:n], nil) {
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// RaiseForStatus returns an *domain.HTTPError for non-2xx responses.
func RaiseForStatus(resp *http.Response, url string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &domain.HTTPError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
}
