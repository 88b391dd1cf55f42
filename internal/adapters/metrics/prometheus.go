// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	registry *prometheus.Registry

	downloads          *prometheus.CounterVec
	downloadBytes      *prometheus.CounterVec
	downloadDuration   *prometheus.HistogramVec
	conversions        *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
	searches           *prometheus.CounterVec
	itemsFound         prometheus.Gauge
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
}

var _ output.MetricsCollector = (*Collector)(nil)

// NewCollector creates a new Prometheus metrics collector on its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "landsatlook"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		downloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloads_total",
				Help:      "Total number of asset downloads",
			},
			[]string{"source", "status"},
		),

		downloadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_bytes_total",
				Help:      "Total bytes written by asset downloads",
			},
			[]string{"source"},
		),

		downloadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "download_duration_seconds",
				Help:      "Asset download duration in seconds",
				Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"source"},
		),

		conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of raster conversions",
			},
			[]string{"operation", "status"},
		),

		conversionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Raster conversion duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		searches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total number of catalog searches",
			},
			[]string{"status"},
		),

		itemsFound: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "search_items_found",
				Help:      "Number of items returned by the last search",
			},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of outgoing HTTP requests",
			},
			[]string{"method", "host", "status"},
		),

		httpRequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Time to response headers for outgoing HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "host"},
		),
	}
}

// Registry returns the registry the collector's metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// IncDownloads increments the download counter.
func (c *Collector) IncDownloads(source string, success bool) {
	c.downloads.WithLabelValues(source, statusLabel(success)).Inc()
}

// AddDownloadBytes adds to the downloaded byte counter.
func (c *Collector) AddDownloadBytes(source string, n int64) {
	if n > 0 {
		c.downloadBytes.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveDownloadDuration records download duration.
func (c *Collector) ObserveDownloadDuration(source string, duration time.Duration) {
	c.downloadDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// IncConversions increments the conversion counter.
func (c *Collector) IncConversions(operation string, success bool) {
	c.conversions.WithLabelValues(operation, statusLabel(success)).Inc()
}

// ObserveConversionDuration records conversion duration.
func (c *Collector) ObserveConversionDuration(operation string, duration time.Duration) {
	c.conversionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncSearches increments the search counter.
func (c *Collector) IncSearches(success bool) {
	c.searches.WithLabelValues(statusLabel(success)).Inc()
}

// SetItemsFound sets the number of items returned by the last search.
func (c *Collector) SetItemsFound(count int) {
	c.itemsFound.Set(float64(count))
}

// WriteTextfile writes all metrics to path in the node-exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Handler returns an HTTP handler exposing the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Transport wraps next so outgoing requests are counted and timed.
func (c *Collector) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()

		resp, err := next.RoundTrip(r)

		status := "error"
		if err == nil {
			status = statusToString(resp.StatusCode)
		}
		c.httpRequestsTotal.WithLabelValues(r.Method, r.URL.Host, status).Inc()
		c.httpRequestLatency.WithLabelValues(r.Method, r.URL.Host).Observe(time.Since(start).Seconds())
		return resp, err
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// statusToString converts HTTP status code to string category.
func statusToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return strconv.Itoa(code)
	}
}
