package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlbumsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_albums_processed_total",
		Help: "Total number of album jobs processed, by status",
	}, []string{"status"})

	AlbumProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_album_processing_duration_seconds",
		Help:    "Duration of album processing stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	ItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_album_items_total",
		Help: "Album items by final outcome",
	}, []string{"outcome"})

	ItemRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_album_item_retries_total",
		Help: "Downloads re-attempted by the album retry pass",
	})

	PermanentFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_album_permanent_failures_total",
		Help: "Downloads that still failed after the album retry pass",
	})

	FramesSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_frames_saved_total",
		Help: "Total number of frames written across all videos",
	})

	FrameProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_frame_probes_total",
		Help: "Sampled frame timestamps, by result",
	}, []string{"result"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_active_workers",
		Help: "Number of album jobs currently being processed",
	})

	ActiveItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_active_album_items",
		Help: "Album items currently holding a worker slot",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_retry_total",
		Help: "Total number of message redeliveries",
	}, []string{"attempt"})
)
