// Package storage provides asset fetchers and publishers for local files and object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// LocalFetcher copies assets whose href is a local path or file:// URL.
type LocalFetcher struct {
	basePath string
}

var _ output.AssetFetcher = (*LocalFetcher)(nil)

// NewLocalFetcher creates a new local fetcher. Relative hrefs resolve against basePath.
func NewLocalFetcher(basePath string) *LocalFetcher {
	return &LocalFetcher{basePath: basePath}
}

// Supports reports whether href refers to the local filesystem.
func (f *LocalFetcher) Supports(href string) bool {
	if href == "" {
		return false
	}
	if strings.HasPrefix(strings.ToLower(href), "file://") {
		return true
	}
	return !strings.Contains(href, "://")
}

// Path returns the filesystem path an href refers to.
func (f *LocalFetcher) Path(href string) (string, error) {
	if strings.HasPrefix(strings.ToLower(href), "file://") {
		u, err := url.Parse(href)
		if err != nil {
			return "", err
		}
		return filepath.FromSlash(u.Path), nil
	}
	if filepath.IsAbs(href) || f.basePath == "" {
		return href, nil
	}
	return filepath.Join(f.basePath, href), nil
}

// Fetch copies the file to dest. Copying a file onto itself is a no-op.
func (f *LocalFetcher) Fetch(ctx context.Context, href string, dest string) (int64, error) {
	srcPath, err := f.Path(href)
	if err != nil {
		return 0, &domain.StorageError{Operation: "fetch", Key: href, Err: err}
	}

	if same, size := samePath(srcPath, dest); same {
		return size, nil
	}

	src, err := os.Open(srcPath) //#nosec G304 -- href comes from the catalog or the user
	if err != nil {
		return 0, &domain.StorageError{Operation: "fetch", Key: href, Err: err}
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(dest) //#nosec G304 -- dest is a controlled local path
	if err != nil {
		return 0, &domain.StorageError{Operation: "create", Key: dest, Err: err}
	}

	n, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src})
	if cerr := dst.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return n, &domain.StorageError{Operation: "fetch", Key: href, Err: fmt.Errorf("copying to %s: %w", dest, err)}
	}
	return n, nil
}

func samePath(a, b string) (bool, int64) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, 0
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, 0
	}
	return os.SameFile(ai, bi), ai.Size()
}

// ctxReader stops a copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
