package output

import (
	"context"

	"github.com/jobrunner/landsatlook/internal/domain"
)

// DownloadIndex defines the secondary port for the local record of fetched assets.
type DownloadIndex interface {
	// Record stores a fetched asset.
	Record(ctx context.Context, asset domain.DownloadedAsset) error

	// List returns recorded assets, optionally filtered by scene id.
	List(ctx context.Context, sceneID string) ([]domain.DownloadedAsset, error)
}

// NoOpIndex is a no-op implementation of DownloadIndex.
type NoOpIndex struct{}

// Record implements DownloadIndex.
func (NoOpIndex) Record(_ context.Context, _ domain.DownloadedAsset) error { return nil }

// List implements DownloadIndex.
func (NoOpIndex) List(_ context.Context, _ string) ([]domain.DownloadedAsset, error) {
	return nil, nil
}
