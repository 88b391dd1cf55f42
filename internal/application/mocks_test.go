package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeResponse is one programmed answer of fakeSession.
type fakeResponse struct {
	status  int
	body    []byte
	failErr error // returned by the body after body is exhausted
}

// fakeSession implements output.Session with programmed responses per URL.
type fakeSession struct {
	responses map[string]fakeResponse
	getErr    error

	mu       sync.Mutex
	requests []string
	timeouts []time.Duration
	bodies   []*trackingBody
	jar      http.CookieJar
}

func newFakeSession(responses map[string]fakeResponse) *fakeSession {
	jar, _ := cookiejar.New(nil)
	return &fakeSession{responses: responses, jar: jar}
}

func (s *fakeSession) Get(_ context.Context, url string, timeout time.Duration) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, url)
	s.timeouts = append(s.timeouts, timeout)
	if s.getErr != nil {
		return nil, s.getErr
	}

	r, ok := s.responses[url]
	if !ok {
		r = fakeResponse{status: http.StatusNotFound}
	}

	var body io.Reader = bytes.NewReader(r.body)
	if r.failErr != nil {
		body = io.MultiReader(body, &failingReader{err: r.failErr})
	}
	tb := &trackingBody{Reader: body}
	s.bodies = append(s.bodies, tb)

	return &http.Response{
		StatusCode:    r.status,
		Status:        http.StatusText(r.status),
		ContentLength: int64(len(r.body)),
		Body:          tb,
	}, nil
}

func (s *fakeSession) Jar() http.CookieJar {
	return s.jar
}

func (s *fakeSession) allClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bodies {
		if !b.closed {
			return false
		}
	}
	return true
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

type failingReader struct {
	err error
}

func (r *failingReader) Read(_ []byte) (int, error) {
	return 0, r.err
}

// memoryStore implements output.RasterStore in memory.
type memoryStore struct {
	rasters map[string]*domain.Raster
	readErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rasters: make(map[string]*domain.Raster)}
}

func (m *memoryStore) Read(path string) (*domain.Raster, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	r, ok := m.rasters[path]
	if !ok {
		return nil, &domain.RasterError{Op: "open", Path: path, Kind: domain.ErrRasterIO, Err: os.ErrNotExist}
	}
	return r, nil
}

func (m *memoryStore) Write(path string, r *domain.Raster) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.rasters[path] = r
	return nil
}

// mockCatalog implements output.Catalog.
type mockCatalog struct {
	items     []domain.Item
	searchErr error
	lastQuery domain.SearchParams
}

func (m *mockCatalog) Search(_ context.Context, params domain.SearchParams) ([]domain.Item, error) {
	m.lastQuery = params
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.items, nil
}

func (m *mockCatalog) GetItem(_ context.Context, collection, id string) (*domain.Item, error) {
	for i := range m.items {
		if m.items[i].ID == id && (collection == "" || m.items[i].Collection == collection) {
			return &m.items[i], nil
		}
	}
	return nil, domain.ErrItemNotFound
}

// mockFetcher implements output.AssetFetcher for a URL scheme prefix.
type mockFetcher struct {
	prefix  string
	content []byte
	err     error
	fetched []string
}

func (m *mockFetcher) Supports(href string) bool {
	return strings.HasPrefix(href, m.prefix)
}

func (m *mockFetcher) Fetch(_ context.Context, href, dest string) (int64, error) {
	m.fetched = append(m.fetched, href)
	if m.err != nil {
		return 0, m.err
	}
	if err := os.WriteFile(dest, m.content, 0o600); err != nil {
		return 0, err
	}
	return int64(len(m.content)), nil
}

// mockPublisher implements output.Publisher.
type mockPublisher struct {
	keys []string
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, _ string, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	return "mem://bucket/" + key, nil
}

// mockIndex implements output.DownloadIndex.
type mockIndex struct {
	records []domain.DownloadedAsset
	err     error
}

func (m *mockIndex) Record(_ context.Context, a domain.DownloadedAsset) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, a)
	return nil
}

func (m *mockIndex) List(_ context.Context, sceneID string) ([]domain.DownloadedAsset, error) {
	var out []domain.DownloadedAsset
	for _, r := range m.records {
		if sceneID == "" || r.SceneID == sceneID {
			out = append(out, r)
		}
	}
	return out, nil
}

// countingMetrics records calls made through output.MetricsCollector.
type countingMetrics struct {
	output.NoOpMetrics
	downloads   map[bool]int
	bytes       int64
	conversions map[bool]int
	searches    map[bool]int
	itemsFound  int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		downloads:   map[bool]int{},
		conversions: map[bool]int{},
		searches:    map[bool]int{},
	}
}

func (m *countingMetrics) IncDownloads(_ string, success bool)   { m.downloads[success]++ }
func (m *countingMetrics) AddDownloadBytes(_ string, n int64)    { m.bytes += n }
func (m *countingMetrics) IncConversions(_ string, success bool) { m.conversions[success]++ }
func (m *countingMetrics) IncSearches(success bool)              { m.searches[success]++ }
func (m *countingMetrics) SetItemsFound(count int)               { m.itemsFound = count }

var errBoom = errors.New("boom")
