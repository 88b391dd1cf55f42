package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// metricValue returns the value of the counter or gauge sample with the given labels.
func metricValue(t *testing.T, c *Collector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("")

	c.IncDownloads("http", true)
	c.IncDownloads("http", true)
	c.IncDownloads("s3", false)
	c.AddDownloadBytes("http", 1024)
	c.AddDownloadBytes("http", 0)
	c.IncConversions("db-to-linear", true)
	c.IncSearches(true)
	c.SetItemsFound(7)
	c.ObserveDownloadDuration("http", time.Second)
	c.ObserveConversionDuration("db-to-linear", time.Millisecond)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"http success", metricValue(t, c, "landsatlook_downloads_total", map[string]string{"source": "http", "status": "success"}), 2},
		{"s3 error", metricValue(t, c, "landsatlook_downloads_total", map[string]string{"source": "s3", "status": "error"}), 1},
		{"bytes", metricValue(t, c, "landsatlook_download_bytes_total", map[string]string{"source": "http"}), 1024},
		{"conversions", metricValue(t, c, "landsatlook_conversions_total", map[string]string{"operation": "db-to-linear", "status": "success"}), 1},
		{"searches", metricValue(t, c, "landsatlook_searches_total", map[string]string{"status": "success"}), 1},
		{"items found", metricValue(t, c, "landsatlook_search_items_found", nil), 7},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCollector_SeparateRegistries(t *testing.T) {
	// Two collectors must not collide on registration.
	a, b := NewCollector("test"), NewCollector("test")
	a.IncSearches(true)
	if got := metricValue(t, b, "test_searches_total", map[string]string{"status": "success"}); got != 0 {
		t.Errorf("collectors share state: %v", got)
	}
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := NewCollector("landsatlook")
	c.IncDownloads("http", true)

	path := filepath.Join(t.TempDir(), "landsatlook.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `landsatlook_downloads_total{source="http",status="success"} 1`) {
		t.Errorf("textfile missing download counter:\n%s", data)
	}
}

func TestCollector_HandlerAndTransport(t *testing.T) {
	c := NewCollector("landsatlook")

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer upstream.Close()

	client := &http.Client{Transport: c.Transport(nil)}
	for _, p := range []string{"/a", "/missing"} {
		resp, err := client.Get(upstream.URL + p)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	host := strings.TrimPrefix(upstream.URL, "http://")
	for _, want := range []string{
		`landsatlook_http_requests_total{host="` + host + `",method="GET",status="2xx"} 1`,
		`landsatlook_http_requests_total{host="` + host + `",method="GET",status="4xx"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestStatusToString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{99, "99"},
	}

	for _, tt := range tests {
		if got := statusToString(tt.code); got != tt.want {
			t.Errorf("statusToString(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
