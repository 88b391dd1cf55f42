package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncDownloads increments the download counter for a source (http, s3, local).
	IncDownloads(source string, success bool)

	// AddDownloadBytes adds to the downloaded byte counter.
	AddDownloadBytes(source string, n int64)

	// ObserveDownloadDuration records download duration.
	ObserveDownloadDuration(source string, duration time.Duration)

	// IncConversions increments the raster conversion counter.
	IncConversions(operation string, success bool)

	// ObserveConversionDuration records conversion duration.
	ObserveConversionDuration(operation string, duration time.Duration)

	// IncSearches increments the catalog search counter.
	IncSearches(success bool)

	// SetItemsFound sets the number of items returned by the last search.
	SetItemsFound(count int)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncDownloads implements MetricsCollector.
func (n *NoOpMetrics) IncDownloads(_ string, _ bool) {}

// AddDownloadBytes implements MetricsCollector.
func (n *NoOpMetrics) AddDownloadBytes(_ string, _ int64) {}

// ObserveDownloadDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveDownloadDuration(_ string, _ time.Duration) {}

// IncConversions implements MetricsCollector.
func (n *NoOpMetrics) IncConversions(_ string, _ bool) {}

// ObserveConversionDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveConversionDuration(_ string, _ time.Duration) {}

// IncSearches implements MetricsCollector.
func (n *NoOpMetrics) IncSearches(_ bool) {}

// SetItemsFound implements MetricsCollector.
func (n *NoOpMetrics) SetItemsFound(_ int) {}
