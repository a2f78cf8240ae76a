// Package metrics exposes Prometheus collectors for the pipeline stages.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	detectionsTotal            *prometheus.CounterVec
	takedownsTotal             *prometheus.CounterVec
	crawlJobsTotal             *prometheus.CounterVec
	crawlJobDurationSeconds    *prometheus.HistogramVec
	fetchDurationSeconds       *prometheus.HistogramVec
	robotsDeniedTotal          prometheus.Counter
	queueJobsTotal             *prometheus.CounterVec
	schedulerEnqueuedTotal     prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		detectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "antipirataria_detections_total",
				Help: "Detections created, labeled by confidence.",
			},
			[]string{"confidence"},
		)

		takedownsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "antipirataria_takedowns_total",
				Help: "Takedown dispatch outcomes, labeled by resulting status and platform.",
			},
			[]string{"status", "platform"},
		)

		crawlJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "antipirataria_crawl_jobs_total",
				Help: "Crawl jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		crawlJobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "antipirataria_crawl_job_duration_seconds",
				Help:    "Duration of crawl jobs, labeled by status.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "antipirataria_fetch_duration_seconds",
				Help:    "Page fetch latency, labeled by status class.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"status_class"},
		)

		robotsDeniedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "antipirataria_robots_denied_total",
				Help: "URLs skipped because robots.txt disallowed the origin.",
			},
		)

		queueJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "antipirataria_queue_jobs_total",
				Help: "Queue job outcomes, labeled by queue and outcome.",
			},
			[]string{"queue", "outcome"},
		)

		schedulerEnqueuedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "antipirataria_scheduler_enqueued_total",
				Help: "Crawl messages emitted by the scheduler.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "antipirataria_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "antipirataria_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "antipirataria_rate_limit_delays_seconds",
				Help:    "Histogram of per-domain politeness waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// StatusClass maps 204 to "2xx"; zero means the request never completed.
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDetection counts a created detection.
func ObserveDetection(confidence string) {
	Init()
	detectionsTotal.WithLabelValues(confidence).Inc()
}

// ObserveTakedown counts a takedown dispatch outcome.
func ObserveTakedown(status, platform string) {
	Init()
	takedownsTotal.WithLabelValues(status, platform).Inc()
}

// ObserveCrawlJob records a finished crawl job.
func ObserveCrawlJob(status string, duration time.Duration) {
	Init()
	crawlJobsTotal.WithLabelValues(status).Inc()
	crawlJobDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveFetch records one page fetch.
func ObserveFetch(statusCode int, duration time.Duration) {
	Init()
	fetchDurationSeconds.WithLabelValues(StatusClass(statusCode)).Observe(duration.Seconds())
}

// ObserveRobotsDenied counts a robots.txt skip.
func ObserveRobotsDenied() {
	Init()
	robotsDeniedTotal.Inc()
}

// ObserveQueueJob counts a queue job outcome such as completed, retried or dead.
func ObserveQueueJob(queue, outcome string) {
	Init()
	queueJobsTotal.WithLabelValues(queue, outcome).Inc()
}

// ObserveScheduled counts crawl messages emitted by a scheduler cycle.
func ObserveScheduled(n int) {
	Init()
	schedulerEnqueuedTotal.Add(float64(n))
}

// ObserveHTTPRequest records the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
