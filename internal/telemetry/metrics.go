package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName  = "github.com/wolfeidau/sitepack"
	tracerName = "github.com/wolfeidau/sitepack"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal      metric.Int64Counter
	BuildErrorsTotal metric.Int64Counter
	BuildDuration    metric.Float64Histogram
	StageDuration    metric.Float64Histogram
	FilesWritten     metric.Int64Counter

	// Image metrics
	ImagesOptimizedTotal metric.Int64Counter
	ImageVariantsTotal   metric.Int64Counter
	ImageCacheHitsTotal  metric.Int64Counter
	ImageBytesSaved      metric.Int64Counter

	// Dev server metrics
	ReloadsTotal  metric.Int64Counter
	ActiveClients metric.Int64UpDownCounter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Build metrics
	m.BuildsTotal, _ = meter.Int64Counter(
		"sitepack.builds.total",
		metric.WithDescription("Total number of builds started"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"sitepack.builds.errors.total",
		metric.WithDescription("Total number of failed builds"),
		metric.WithUnit("{error}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"sitepack.builds.duration",
		metric.WithDescription("Duration of complete builds"),
		metric.WithUnit("ms"),
	)

	m.StageDuration, _ = meter.Float64Histogram(
		"sitepack.builds.stage.duration",
		metric.WithDescription("Duration of individual build stages"),
		metric.WithUnit("ms"),
	)

	m.FilesWritten, _ = meter.Int64Counter(
		"sitepack.files.written.total",
		metric.WithDescription("Total number of output files written"),
		metric.WithUnit("{file}"),
	)

	// Image metrics
	m.ImagesOptimizedTotal, _ = meter.Int64Counter(
		"sitepack.images.optimized.total",
		metric.WithDescription("Total number of images replaced by a smaller encoding"),
		metric.WithUnit("{image}"),
	)

	m.ImageVariantsTotal, _ = meter.Int64Counter(
		"sitepack.images.variants.total",
		metric.WithDescription("Total number of WebP and AVIF variants written"),
		metric.WithUnit("{image}"),
	)

	m.ImageCacheHitsTotal, _ = meter.Int64Counter(
		"sitepack.images.cache_hits.total",
		metric.WithDescription("Total number of image encodes served from the cache"),
		metric.WithUnit("{hit}"),
	)

	m.ImageBytesSaved, _ = meter.Int64Counter(
		"sitepack.images.bytes_saved.total",
		metric.WithDescription("Total bytes removed by image minification"),
		metric.WithUnit("By"),
	)

	// Dev server metrics
	m.ReloadsTotal, _ = meter.Int64Counter(
		"sitepack.devserver.reloads.total",
		metric.WithDescription("Total number of reload notifications broadcast"),
		metric.WithUnit("{reload}"),
	)

	m.ActiveClients, _ = meter.Int64UpDownCounter(
		"sitepack.devserver.clients.active",
		metric.WithDescription("Number of connected live reload clients"),
		metric.WithUnit("{client}"),
	)

	return m
}
