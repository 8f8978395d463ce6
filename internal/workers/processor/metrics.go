package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "busboard",
		Subsystem: "processor",
		Name:      "runs_total",
		Help:      "Number of completed processing runs",
	})
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "busboard",
		Subsystem: "processor",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a processing run",
		Buckets:   prometheus.DefBuckets,
	})
	routesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "busboard",
		Subsystem: "processor",
		Name:      "routes_processed_total",
		Help:      "Route contributions processed, by final status",
	}, []string{"status"})
	imagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "busboard",
		Subsystem: "processor",
		Name:      "images_processed_total",
		Help:      "Image contributions processed, by final status",
	}, []string{"status"})
)
