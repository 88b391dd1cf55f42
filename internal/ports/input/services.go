// Package input defines the primary/driving ports of the application.
package input

import (
	"context"
	"io"
	"time"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// Downloader defines the primary port for streaming a URL to a local file.
type Downloader interface {
	// Download fetches url through the session into dest.
	Download(ctx context.Context, session output.Session, url string, dest string, opts DownloadOptions) (int64, error)
}

// DownloadOptions controls a single download.
type DownloadOptions struct {
	ChunkSize int           // Bytes per chunk (default 1 MiB)
	Timeout   time.Duration // Request timeout (default 120s)
	Progress  io.Writer     // Optional progress sink, receives every chunk
}

// RasterTransformer defines the primary port for raster post-processing.
type RasterTransformer interface {
	// ConvertDBToLinear writes 10^(v/10) of every pixel of src to dst.
	ConvertDBToLinear(ctx context.Context, src string, dst string) error

	// ApplyPixelTransform applies fn to every pixel of the single band of src.
	ApplyPixelTransform(ctx context.Context, src string, dst string, fn domain.PixelFunc, opts ConvertOptions) error

	// Stack merges single-band rasters on the same grid into one multi-band raster.
	Stack(ctx context.Context, srcs []string, dst string) error
}

// ConvertOptions controls a pixel transform.
type ConvertOptions struct {
	Operation      string          // Name used for metrics and logs
	DataType       domain.DataType // Output type; zero promotes to float32 (float64 stays float64)
	PreserveNoData bool            // Copy pixels equal to the nodata value unchanged
}

// SceneService defines the primary port for discovering and fetching scenes.
type SceneService interface {
	// Search queries the catalog.
	Search(ctx context.Context, params domain.SearchParams) ([]domain.Item, error)

	// Item returns one item by collection and id.
	Item(ctx context.Context, collection string, id string) (*domain.Item, error)

	// FetchBands downloads the named bands of an item into outDir.
	FetchBands(ctx context.Context, item domain.Item, bands []string, outDir string, opts FetchOptions) ([]domain.DownloadedAsset, error)
}

// FetchOptions controls band fetching.
type FetchOptions struct {
	PreferS3   bool // Use the s3 alternate href when available
	Convert    bool // Convert each band from dB to linear after download
	Publish    bool // Upload results through the configured publisher
	SkipExists bool // Skip bands whose destination file already exists
}
