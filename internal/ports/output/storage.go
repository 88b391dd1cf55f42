// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"net/http"
	"time"

	"github.com/jobrunner/landsatlook/internal/domain"
)

// Session defines the secondary port for an authenticated HTTP session.
// Cookie and header state persists across calls; implementations are not
// required to be safe for concurrent use.
type Session interface {
	// Get issues a streaming GET request. The caller must close the body.
	Get(ctx context.Context, url string, timeout time.Duration) (*http.Response, error)

	// Jar returns the cookie jar backing the session.
	Jar() http.CookieJar
}

// AssetFetcher defines the secondary port for retrieving an asset href to a local file.
type AssetFetcher interface {
	// Supports reports whether the fetcher can handle the href.
	Supports(href string) bool

	// Fetch copies the asset to dest and returns the number of bytes written.
	Fetch(ctx context.Context, href string, dest string) (int64, error)
}

// Publisher defines the secondary port for uploading produced files to object storage.
type Publisher interface {
	// Publish uploads localPath under key and returns the object URI.
	Publish(ctx context.Context, localPath string, key string) (string, error)
}

// Catalog defines the secondary port for STAC catalog access.
type Catalog interface {
	// Search returns the items matching the parameters.
	Search(ctx context.Context, params domain.SearchParams) ([]domain.Item, error)

	// GetItem returns a single item from a collection.
	GetItem(ctx context.Context, collection string, id string) (*domain.Item, error)
}

// RasterStore defines the secondary port for raster file I/O.
type RasterStore interface {
	// Read decodes the raster at path.
	Read(path string) (*domain.Raster, error)

	// Write encodes the raster to path, creating or truncating it.
	Write(path string, r *domain.Raster) error
}

// StorageType represents the type of publishing backend.
type StorageType string

const (
	StorageTypeNone  StorageType = ""
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "azure"
)
