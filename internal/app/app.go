// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/jobrunner/landsatlook/internal/adapters/geotiff"
	httpserver "github.com/jobrunner/landsatlook/internal/adapters/http"
	"github.com/jobrunner/landsatlook/internal/adapters/index"
	"github.com/jobrunner/landsatlook/internal/adapters/metrics"
	"github.com/jobrunner/landsatlook/internal/adapters/session"
	"github.com/jobrunner/landsatlook/internal/adapters/stac"
	"github.com/jobrunner/landsatlook/internal/adapters/storage"
	"github.com/jobrunner/landsatlook/internal/adapters/watcher"
	"github.com/jobrunner/landsatlook/internal/application"
	"github.com/jobrunner/landsatlook/internal/config"
	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/input"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Collector // nil when disabled
	Session    *session.Session
	Catalog    *stac.Client
	Downloader *application.Downloader
	Raster     *application.RasterService
	Scenes     *application.SceneService
	Index      output.DownloadIndex

	sqlIndex *index.SQLiteIndex
}

// Options holds wiring options supplied by the caller rather than configuration.
type Options struct {
	// ProgressFor returns a progress sink for one asset download, or nil.
	ProgressFor func(name string) io.Writer

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		Index:  output.NoOpIndex{},
	}

	// Initialize metrics
	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	transport := opts.Transport
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("landsatlook")
		metricsCollector = app.Metrics
		transport = app.Metrics.Transport(transport)
	}

	// Initialize the HTTP session
	sess, err := session.New(session.Config{
		UserAgent: cfg.Auth.UserAgent,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing session: %w", err)
	}
	app.Session = sess

	if cfg.Auth.CookieFile != "" {
		n, err := sess.LoadCookies(cfg.Auth.CookieFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Debug("cookie file not found", "path", cfg.Auth.CookieFile)
		case err != nil:
			return nil, fmt.Errorf("loading cookies: %w", err)
		default:
			logger.Debug("cookies loaded", "path", cfg.Auth.CookieFile, "count", n)
		}
	}

	// Initialize catalog client
	app.Catalog = stac.NewClient(sess, stac.Config{
		URL:      cfg.STAC.URL,
		Timeout:  cfg.STAC.Timeout,
		PageSize: cfg.STAC.PageSize,
	}, logger)

	// Initialize download index
	if cfg.Index.Enabled {
		idx, err := index.Open(ctx, cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("opening index: %w", err)
		}
		app.sqlIndex = idx
		app.Index = idx
	}

	// Initialize fetchers and publisher
	fetchers, err := initFetchers(ctx, cfg.S3)
	if err != nil {
		app.closeIndex()
		return nil, fmt.Errorf("initializing fetchers: %w", err)
	}
	publisher, err := initPublisher(ctx, cfg)
	if err != nil {
		app.closeIndex()
		return nil, fmt.Errorf("initializing publisher: %w", err)
	}

	// Initialize services
	app.Downloader = application.NewDownloader(metricsCollector, logger)
	app.Raster = application.NewRasterService(
		geotiff.NewStore(),
		metricsCollector,
		logger,
		application.RasterServiceConfig{
			DataType:       cfg.Convert.OutputType(),
			PreserveNoData: cfg.Convert.PreserveNoData,
		},
	)
	app.Scenes = application.NewSceneService(
		app.Catalog,
		app.Downloader,
		sess,
		app.Raster,
		app.Index,
		metricsCollector,
		logger,
		application.SceneServiceConfig{
			DefaultCollection: cfg.STAC.Collection,
			Download:          app.DownloadOptions(),
			Fetchers:          fetchers,
			Publisher:         publisher,
			PublishPrefix:     cfg.Publish.Prefix,
			ProgressFor:       opts.ProgressFor,
		},
	)

	return app, nil
}

// DownloadOptions returns the configured per-download options.
func (a *App) DownloadOptions() input.DownloadOptions {
	return input.DownloadOptions{
		ChunkSize: a.Config.Download.ChunkSize,
		Timeout:   a.Config.Download.Timeout,
	}
}

// FetchOptions returns the configured band fetch options.
func (a *App) FetchOptions() input.FetchOptions {
	return input.FetchOptions{
		PreferS3:   a.Config.Download.PreferS3,
		SkipExists: a.Config.Download.SkipExists,
	}
}

// Login authenticates the session against USGS ERS and saves the cookies
// when a cookie file is configured.
func (a *App) Login(ctx context.Context) error {
	auth := a.Config.Auth
	if !auth.HasCredentials() {
		return &domain.ConfigError{Field: "auth.username", Message: "username and password are required to log in"}
	}

	start := time.Now()
	if err := a.Session.Login(ctx, auth.LoginURL, auth.Username, auth.Password); err != nil {
		return err
	}
	a.Logger.Info("logged in", "user", auth.Username, "duration", time.Since(start))

	if auth.CookieFile != "" {
		if err := a.Session.SaveCookiesForGDAL(auth.CookieFile); err != nil {
			return err
		}
		a.Logger.Debug("cookies saved", "path", auth.CookieFile)
	}
	return nil
}

// Authenticate logs in when credentials are configured. Without credentials the
// session relies on previously loaded cookies.
func (a *App) Authenticate(ctx context.Context) error {
	if !a.Config.Auth.HasCredentials() {
		a.Logger.Debug("no ERS credentials configured, using anonymous session")
		return nil
	}
	return a.Login(ctx)
}

// NewPoller creates a scene poller using the configured bands and output directory.
func (a *App) NewPoller(params domain.SearchParams, interval time.Duration, fetch input.FetchOptions) *application.ScenePoller {
	return application.NewScenePoller(a.Scenes, a.Index, application.PollerConfig{
		Params:   params,
		Bands:    a.Config.Download.Bands,
		OutDir:   a.Config.Download.OutputDir,
		Fetch:    fetch,
		Interval: interval,
	}, a.Logger)
}

// Watch converts rasters arriving in the watch directory until ctx is canceled.
func (a *App) Watch(ctx context.Context) error {
	wc := a.Config.Watch
	if wc.Dir == "" {
		return &domain.ConfigError{Field: "watch.dir", Message: "watch directory is required"}
	}
	outDir := wc.OutputDir
	if outDir == "" {
		outDir = wc.Dir
	}

	conv := application.NewWatchConverter(a.Raster, outDir, a.Logger)
	w, err := watcher.New(
		watcher.Config{
			Dir:        wc.Dir,
			Extensions: wc.Extensions,
			Debounce:   wc.Debounce,
		},
		func(ctx context.Context, e watcher.Event) error {
			_, err := conv.Handle(ctx, e.Path)
			return err
		},
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("initializing watcher: %w", err)
	}

	stop := a.startServer("watch", nil)
	defer stop()

	return w.Run(ctx)
}

// Follow polls the catalog and fetches new scenes until ctx is canceled.
func (a *App) Follow(ctx context.Context, params domain.SearchParams, interval time.Duration, fetch input.FetchOptions) error {
	if err := params.Validate(); err != nil {
		return err
	}

	poller := a.NewPoller(params, interval, fetch)
	stop := a.startServer("follow", poller)
	defer stop()

	poller.Start(ctx)
	<-ctx.Done()
	a.Logger.Info("stopping")
	poller.Stop()
	return nil
}

// startServer runs the status server when server.listen is set and returns
// a function that shuts it down.
func (a *App) startServer(mode string, poller httpserver.Poller) func() {
	sc := a.Config.Server
	if sc.Listen == "" {
		return func() {}
	}

	var metricsHandler http.Handler
	if a.Metrics != nil {
		metricsHandler = a.Metrics.Handler()
	}
	srv := httpserver.NewServer(httpserver.Config{
		Address:      sc.Listen,
		Mode:         mode,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
	}, a.Index, metricsHandler, poller, a.Logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("status server error", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("status server shutdown error", "error", err)
		}
	}
}

// Close flushes metrics and releases resources.
func (a *App) Close() error {
	var errs []error
	if a.Metrics != nil && a.Config.Metrics.Textfile != "" {
		if err := a.Metrics.WriteTextfile(a.Config.Metrics.Textfile); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics textfile: %w", err))
		}
	}
	if err := a.closeIndex(); err != nil {
		errs = append(errs, fmt.Errorf("closing index: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) closeIndex() error {
	if a.sqlIndex == nil {
		return nil
	}
	err := a.sqlIndex.Close()
	a.sqlIndex = nil
	return err
}

// initFetchers returns the non-HTTP asset fetchers in the order they are tried.
func initFetchers(ctx context.Context, cfg config.S3Config) ([]output.AssetFetcher, error) {
	s3f, err := storage.NewS3Fetcher(ctx, storage.S3Config{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		RequesterPays:   cfg.RequesterPays,
	})
	if err != nil {
		return nil, err
	}
	return []output.AssetFetcher{s3f, storage.NewLocalFetcher("")}, nil
}

// initPublisher initializes the configured publisher, or nil when publishing is off.
func initPublisher(ctx context.Context, cfg *config.Config) (output.Publisher, error) {
	switch output.StorageType(cfg.Publish.Type) {
	case output.StorageTypeNone, "none":
		return nil, nil

	case output.StorageTypeS3:
		return storage.NewS3Publisher(ctx, storage.S3Config{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.Publish.S3.Bucket,
			Prefix:          cfg.Publish.S3.Prefix,
		})

	case output.StorageTypeAzure:
		return storage.NewAzurePublisher(storage.AzureConfig{
			Container:        cfg.Publish.Azure.Container,
			AccountName:      cfg.Publish.Azure.AccountName,
			AccountKey:       cfg.Publish.Azure.AccountKey,
			ConnectionString: cfg.Publish.Azure.ConnectionString,
			Prefix:           cfg.Publish.Azure.Prefix,
		})

	default:
		return nil, &domain.ConfigError{Field: "publish.type", Message: fmt.Sprintf("unknown publish type %q", cfg.Publish.Type)}
	}
}
