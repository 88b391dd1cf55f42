package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jobrunner/landsatlook/internal/application"
	"github.com/jobrunner/landsatlook/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockIndex implements output.DownloadIndex for testing.
type mockIndex struct {
	records []domain.DownloadedAsset
	err     error
}

func (m *mockIndex) Record(_ context.Context, a domain.DownloadedAsset) error {
	m.records = append(m.records, a)
	return m.err
}

func (m *mockIndex) List(_ context.Context, sceneID string) ([]domain.DownloadedAsset, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.DownloadedAsset
	for _, r := range m.records {
		if sceneID == "" || r.SceneID == sceneID {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockPoller implements Poller for testing.
type mockPoller struct {
	result application.PollResult
	err    error
	last   *application.PollResult
	calls  int
}

func (m *mockPoller) TriggerPoll(_ context.Context) (application.PollResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockPoller) LastResult() (application.PollResult, bool) {
	if m.last == nil {
		return application.PollResult{}, false
	}
	return *m.last, true
}

func (m *mockPoller) Interval() time.Duration { return 6 * time.Hour }

func newTestServer(idx *mockIndex, poller Poller) *Server {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("landsatlook_downloads_total 1\n"))
	})
	return NewServer(Config{Mode: "follow"}, idx, metrics, poller, testLogger())
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return body
}

func testRecords() []domain.DownloadedAsset {
	return []domain.DownloadedAsset{
		{SceneID: "LC90440342024005LGN00", Band: "red", Path: "/data/a_red.TIF", Bytes: 10},
		{SceneID: "LC90440342024005LGN00", Band: "nir08", Path: "/data/a_nir08.TIF", Bytes: 10},
		{SceneID: "LC90440342024021LGN00", Band: "red", Path: "/data/b_red.TIF", Bytes: 10},
	}
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		poller     *mockPoller
		wantStatus string
		wantPoll   bool
	}{
		{"watch mode", nil, "ok", false},
		{"no poll yet", &mockPoller{}, "ok", false},
		{"last poll ok", &mockPoller{last: &application.PollResult{Fetched: 2}}, "ok", true},
		{"last poll failed", &mockPoller{last: &application.PollResult{Error: "boom"}}, "degraded", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Poller
			if tt.poller != nil {
				p = tt.poller
			}
			s := newTestServer(&mockIndex{}, p)

			rec := do(t, s, http.MethodGet, "/health")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			body := decode(t, rec)
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
			if _, ok := body["last_poll"]; ok != tt.wantPoll {
				t.Errorf("last_poll present = %v, want %v", ok, tt.wantPoll)
			}
		})
	}
}

func TestHandleLivenessAndMetrics(t *testing.T) {
	s := newTestServer(&mockIndex{}, nil)

	if rec := do(t, s, http.MethodGet, "/health/live"); rec.Code != http.StatusOK {
		t.Errorf("/health/live status = %d", rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "landsatlook_downloads_total") {
		t.Errorf("/metrics = %d %q", rec.Code, rec.Body.String())
	}

	noMetrics := NewServer(Config{}, nil, nil, nil, testLogger())
	if rec := do(t, noMetrics, http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("/metrics without collector status = %d, want 404", rec.Code)
	}
}

func TestHandleListDownloads(t *testing.T) {
	s := newTestServer(&mockIndex{records: testRecords()}, nil)

	tests := []struct {
		target string
		want   float64
	}{
		{"/api/v1/downloads", 3},
		{"/api/v1/downloads?scene_id=LC90440342024005LGN00", 2},
		{"/api/v1/downloads?scene_id=unknown", 0},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodGet, tt.target)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", tt.target, rec.Code)
		}
		body := decode(t, rec)
		if body["count"] != tt.want {
			t.Errorf("%s count = %v, want %v", tt.target, body["count"], tt.want)
		}
		if _, ok := body["downloads"].([]any); !ok {
			t.Errorf("%s downloads = %v, want array", tt.target, body["downloads"])
		}
	}

	failing := newTestServer(&mockIndex{err: errors.New("disk gone")}, nil)
	if rec := do(t, failing, http.MethodGet, "/api/v1/downloads"); rec.Code != http.StatusInternalServerError {
		t.Errorf("index error status = %d, want 500", rec.Code)
	}
}

func TestHandleGetScene(t *testing.T) {
	s := newTestServer(&mockIndex{records: testRecords()}, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/scenes/LC90440342024005LGN00")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	bands, _ := decode(t, rec)["bands"].([]any)
	if len(bands) != 2 || bands[0] != "red" || bands[1] != "nir08" {
		t.Errorf("bands = %v", bands)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/scenes/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("missing scene status = %d, want 404", rec.Code)
	}
}

func TestHandlePoll(t *testing.T) {
	tests := []struct {
		name       string
		poller     *mockPoller
		wantStatus int
	}{
		{"success", &mockPoller{result: application.PollResult{Found: 3, Fetched: 1}}, http.StatusOK},
		{"in progress", &mockPoller{err: application.ErrPollInProgress}, http.StatusConflict},
		{"failure", &mockPoller{err: domain.ErrTransport}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&mockIndex{}, tt.poller)
			rec := do(t, s, http.MethodPost, "/api/v1/poll")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.poller.calls != 1 {
				t.Errorf("TriggerPoll calls = %d, want 1", tt.poller.calls)
			}
		})
	}

	watchOnly := newTestServer(&mockIndex{}, nil)
	if rec := do(t, watchOnly, http.MethodPost, "/api/v1/poll"); rec.Code != http.StatusNotFound {
		t.Errorf("poll without poller status = %d, want 404", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newTestServer(&mockIndex{}, nil)
	s.Router().HandleFunc("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	if rec := do(t, s, http.MethodGet, "/panic"); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
