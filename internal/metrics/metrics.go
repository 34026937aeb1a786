// Package metrics registers the Prometheus instruments for the scan
// pipeline and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts scans that acquired the state singleton and ran.
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auros_scans_total",
		Help: "Total scans started",
	})

	// ScansRunning tracks scans currently in flight (0 or 1 per process).
	ScansRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auros_scans_running",
		Help: "Number of scans currently running",
	})

	// ScrapeErrors counts per-company scrape failures by source.
	ScrapeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auros_scrape_errors_total",
		Help: "Total scraping errors",
	}, []string{"source"})

	// JobsFound counts postings scraped across all scans.
	JobsFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auros_jobs_found_total",
		Help: "Total jobs found during scans",
	})

	// JobsNew counts newly persisted jobs across all scans.
	JobsNew = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auros_jobs_new_total",
		Help: "Total new jobs added during scans",
	})

	// HTTPRequests counts API requests by method, path, and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auros_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPDuration observes API request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auros_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method", "path"})

	// HTTPInProgress gauges in-flight API requests.
	HTTPInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auros_http_requests_in_progress",
		Help: "In-progress HTTP requests",
	})
)
