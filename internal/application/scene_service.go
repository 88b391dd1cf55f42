package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/input"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// SceneService searches the catalog and fetches band assets of scenes.
type SceneService struct {
	catalog    output.Catalog
	downloader input.Downloader
	session    output.Session
	raster     input.RasterTransformer
	index      output.DownloadIndex
	metrics    output.MetricsCollector
	logger     *slog.Logger
	cfg        SceneServiceConfig
}

// SceneServiceConfig holds configuration for the scene service.
type SceneServiceConfig struct {
	DefaultCollection string
	Download          input.DownloadOptions
	Fetchers          []output.AssetFetcher // Tried in order before falling back to HTTP
	Publisher         output.Publisher      // Optional
	PublishPrefix     string

	// ProgressFor returns a progress sink for one asset download, or nil.
	ProgressFor func(name string) io.Writer
}

var _ input.SceneService = (*SceneService)(nil)

// NewSceneService creates a new scene service.
func NewSceneService(
	catalog output.Catalog,
	downloader input.Downloader,
	session output.Session,
	raster input.RasterTransformer,
	index output.DownloadIndex,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg SceneServiceConfig,
) *SceneService {
	if index == nil {
		index = output.NoOpIndex{}
	}
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &SceneService{
		catalog:    catalog,
		downloader: downloader,
		session:    session,
		raster:     raster,
		index:      index,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Search queries the catalog, defaulting to the configured collection.
func (s *SceneService) Search(ctx context.Context, params domain.SearchParams) ([]domain.Item, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(params.Collections) == 0 && len(params.IDs) == 0 && s.cfg.DefaultCollection != "" {
		params.Collections = []string{s.cfg.DefaultCollection}
	}

	items, err := s.catalog.Search(ctx, params)
	s.metrics.IncSearches(err == nil)
	if err != nil {
		return nil, err
	}
	s.metrics.SetItemsFound(len(items))

	s.logger.Debug("search completed", "collections", params.Collections, "items", len(items))
	return items, nil
}

// Item returns one item; an empty collection selects the configured default.
func (s *SceneService) Item(ctx context.Context, collection, id string) (*domain.Item, error) {
	if id == "" {
		return nil, &domain.ValidationError{Field: "id", Value: id, Constraint: "non-empty", Message: "item id is required"}
	}
	if collection == "" {
		collection = s.cfg.DefaultCollection
	}
	return s.catalog.GetItem(ctx, collection, id)
}

// FetchBands downloads the named bands of item into outDir, one after another.
// The first failure stops processing; assets completed so far are returned with it.
func (s *SceneService) FetchBands(ctx context.Context, item domain.Item, bands []string, outDir string, opts input.FetchOptions) ([]domain.DownloadedAsset, error) {
	if len(bands) == 0 {
		return nil, &domain.ValidationError{Field: "bands", Value: bands, Constraint: "non-empty", Message: "at least one band is required"}
	}
	if opts.Publish && s.cfg.Publisher == nil {
		return nil, &domain.ConfigError{Field: "publish.type", Message: "publishing requested but no publisher is configured"}
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, &domain.StorageError{Operation: "mkdir", Key: outDir, Err: err}
	}

	sceneID := item.SceneID()
	results := make([]domain.DownloadedAsset, 0, len(bands))
	for _, band := range bands {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		asset, err := s.fetchBand(ctx, item, sceneID, band, outDir, opts)
		if err != nil {
			return results, fmt.Errorf("scene %s band %s: %w", sceneID, band, err)
		}
		results = append(results, asset)
	}

	s.logger.Info("bands fetched", "scene", sceneID, "bands", len(results), "dir", outDir)
	return results, nil
}

func (s *SceneService) fetchBand(ctx context.Context, item domain.Item, sceneID, band, outDir string, opts input.FetchOptions) (domain.DownloadedAsset, error) {
	asset, err := item.Asset(band)
	if err != nil {
		return domain.DownloadedAsset{}, err
	}
	href := asset.Href
	if opts.PreferS3 {
		if alt, ok := asset.AlternateHref("s3"); ok {
			href = alt
		}
	}

	dest := filepath.Join(outDir, domain.AssetFileName(sceneID, band, href))
	rec := domain.DownloadedAsset{SceneID: sceneID, Band: band, Href: href, Path: dest}

	if fi, statErr := os.Stat(dest); opts.SkipExists && statErr == nil {
		s.logger.Debug("asset exists, skipping download", "path", dest)
		rec.Bytes = fi.Size()
	} else {
		n, err := s.fetch(ctx, href, dest, filepath.Base(dest))
		if err != nil {
			return rec, err
		}
		rec.Bytes = n
	}
	rec.FetchedAt = time.Now().UTC()

	if opts.Convert {
		linear := filepath.Join(outDir, sceneID+"_"+band+"_linear.tif")
		if err := s.raster.ConvertDBToLinear(ctx, dest, linear); err != nil {
			return rec, err
		}
		rec.Converted = linear
	}

	if opts.Publish {
		local := dest
		if rec.Converted != "" {
			local = rec.Converted
		}
		key := path.Join(s.cfg.PublishPrefix, sceneID, filepath.Base(local))
		uri, err := s.cfg.Publisher.Publish(ctx, local, key)
		if err != nil {
			return rec, err
		}
		rec.Published = uri
	}

	if err := s.index.Record(ctx, rec); err != nil {
		s.logger.Warn("failed to record download", "scene", sceneID, "band", band, "error", err)
	}
	return rec, nil
}

// fetch copies href to dest using the first fetcher that supports it, or the
// HTTP downloader for http(s) hrefs.
func (s *SceneService) fetch(ctx context.Context, href, dest, name string) (int64, error) {
	for _, f := range s.cfg.Fetchers {
		if f.Supports(href) {
			start := time.Now()
			n, err := f.Fetch(ctx, href, dest)
			source := hrefSource(href)
			s.metrics.IncDownloads(source, err == nil)
			s.metrics.AddDownloadBytes(source, n)
			s.metrics.ObserveDownloadDuration(source, time.Since(start))
			return n, err
		}
	}

	if !isHTTP(href) {
		return 0, fmt.Errorf("%q: %w", href, domain.ErrUnsupportedHref)
	}
	opts := s.cfg.Download
	if s.cfg.ProgressFor != nil {
		opts.Progress = s.cfg.ProgressFor(name)
	}
	return s.downloader.Download(ctx, s.session, href, dest, opts)
}

// hrefSource names the metrics source label for an href.
func hrefSource(href string) string {
	scheme, _, ok := strings.Cut(href, "://")
	if !ok || strings.EqualFold(scheme, "file") {
		return "local"
	}
	return strings.ToLower(scheme)
}

func isHTTP(href string) bool {
	h := strings.ToLower(href)
	return strings.HasPrefix(h, "http://") || strings.HasPrefix(h, "https://")
}
