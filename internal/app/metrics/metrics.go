package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "estatehub",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "estatehub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "estatehub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	searchCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "estatehub",
			Subsystem: "properties",
			Name:      "search_cache_total",
			Help:      "Search cache lookups by result.",
		},
		[]string{"result"},
	)

	bids = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "estatehub",
			Subsystem: "auctions",
			Name:      "bids_total",
			Help:      "Bid attempts by outcome.",
		},
		[]string{"outcome"},
	)

	auctionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "estatehub",
			Subsystem: "auctions",
			Name:      "transitions_total",
			Help:      "Auction lifecycle transitions performed.",
		},
		[]string{"event"},
	)

	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "estatehub",
			Subsystem: "auctions",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of auction lifecycle sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"success"},
	)

	wsSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "estatehub",
			Subsystem: "auctions",
			Name:      "websocket_subscribers",
			Help:      "Connected auction websocket subscribers.",
		},
	)

	scrapeListings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "estatehub",
			Subsystem: "scraper",
			Name:      "listings_total",
			Help:      "Scraped listings by source and result.",
		},
		[]string{"source", "result"},
	)

	scrapeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "estatehub",
			Subsystem: "scraper",
			Name:      "run_duration_seconds",
			Help:      "Duration of scraper source runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"source", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		searchCache,
		bids,
		auctionTransitions,
		sweepDuration,
		wsSubscribers,
		scrapeListings,
		scrapeDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func TrackInFlight() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// RecordHTTPRequest records a served request. path should be a route template.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSearchCache counts a search cache lookup.
func RecordSearchCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	searchCache.WithLabelValues(result).Inc()
}

// RecordBid counts a bid attempt. outcome is "accepted" or a rejection reason.
func RecordBid(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	bids.WithLabelValues(outcome).Inc()
}

// RecordAuctionTransition counts lifecycle events such as auction_ended.
func RecordAuctionTransition(event string) {
	auctionTransitions.WithLabelValues(event).Inc()
}

// RecordSweep records one lifecycle sweep.
func RecordSweep(duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	sweepDuration.WithLabelValues(strconv.FormatBool(success)).Observe(duration.Seconds())
}

// WebsocketConnected adjusts the subscriber gauge by delta.
func WebsocketConnected(delta int) {
	wsSubscribers.Add(float64(delta))
}

// RecordScrape records one source run of the scraper.
func RecordScrape(source string, created, updated, failed int, duration time.Duration, success bool) {
	if source == "" {
		source = "unknown"
	}
	scrapeListings.WithLabelValues(source, "created").Add(float64(created))
	scrapeListings.WithLabelValues(source, "updated").Add(float64(updated))
	scrapeListings.WithLabelValues(source, "failed").Add(float64(failed))
	scrapeDuration.WithLabelValues(source, strconv.FormatBool(success)).Observe(duration.Seconds())
}
