package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicstream",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "musicstream",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.3, 1, 3, 10, 30},
	}, []string{"method", "path"})

	StreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicstream",
		Name:      "stream_requests_total",
		Help:      "Total stream initiations by kind (full or partial).",
	}, []string{"kind"})

	StreamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "musicstream",
		Name:      "stream_bytes_total",
		Help:      "Bytes scheduled for delivery at stream initiation.",
	})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "musicstream",
		Name:      "metadata_cache_hits_total",
		Help:      "Metadata cache lookups answered without a filesystem stat.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "musicstream",
		Name:      "metadata_cache_misses_total",
		Help:      "Metadata cache lookups that fell through to a stat.",
	})

	DownloadsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "musicstream",
		Name:      "downloads_started_total",
		Help:      "Total background downloads started.",
	})

	DownloadsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "musicstream",
		Name:      "downloads_completed_total",
		Help:      "Total background downloads completed successfully.",
	})

	DownloadsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "musicstream",
		Name:      "downloads_failed_total",
		Help:      "Total background downloads that failed and were cleaned up.",
	})

	ActiveDownloads = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "musicstream",
		Name:      "active_downloads",
		Help:      "Number of downloads currently in flight.",
	})

	LibraryTracks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "musicstream",
		Name:      "library_tracks",
		Help:      "Number of audio files currently in the storage directory.",
	})

	LibrarySizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "musicstream",
		Name:      "library_size_bytes",
		Help:      "Total size of the storage directory's audio files in bytes.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		StreamRequestsTotal,
		StreamBytesTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		DownloadsStartedTotal,
		DownloadsCompletedTotal,
		DownloadsFailedTotal,
		ActiveDownloads,
		LibraryTracks,
		LibrarySizeBytes,
	)
}
