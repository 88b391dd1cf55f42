package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/input"
)

// linearSuffix marks rasters produced by a dB-to-linear conversion.
const linearSuffix = "_linear"

// WatchConverter converts rasters that arrive in a watched directory.
type WatchConverter struct {
	raster input.RasterTransformer
	outDir string
	logger *slog.Logger
}

// NewWatchConverter creates a converter writing into outDir.
func NewWatchConverter(raster input.RasterTransformer, outDir string, logger *slog.Logger) *WatchConverter {
	return &WatchConverter{raster: raster, outDir: outDir, logger: logger}
}

// LinearName returns the output file name for a converted raster: "<stem>_linear.tif".
func LinearName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + linearSuffix + ".tif"
}

// Handle converts path unless it is itself a conversion output.
// It returns the written path, or "" when the file was skipped.
func (c *WatchConverter) Handle(ctx context.Context, path string) (string, error) {
	base := filepath.Base(path)
	if strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), linearSuffix) {
		c.logger.Debug("skipping converted raster", "path", path)
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		// Removed before the debounce settled.
		return "", &domain.RasterError{Op: "open", Path: path, Kind: domain.ErrRasterIO, Err: err}
	}

	if err := os.MkdirAll(c.outDir, 0o750); err != nil {
		return "", &domain.StorageError{Operation: "mkdir", Key: c.outDir, Err: err}
	}

	dst := filepath.Join(c.outDir, LinearName(path))
	if err := c.raster.ConvertDBToLinear(ctx, path, dst); err != nil {
		return "", fmt.Errorf("converting %s: %w", path, err)
	}

	c.logger.Info("converted raster", "src", path, "dst", dst)
	return dst, nil
}
