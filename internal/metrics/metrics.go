package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	reqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	reqInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "In-flight HTTP requests",
		},
	)

	reqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_cache_hits_total",
			Help: "Cache hits per cache partition",
		},
		[]string{"cache"},
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_cache_misses_total",
			Help: "Cache misses per cache partition",
		},
		[]string{"cache"},
	)

	cacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "profile_cache_entries",
			Help: "Approximate number of entries per cache partition",
		},
		[]string{"cache"},
	)

	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_remote_fetches_total",
			Help: "Remote directory fetches by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	Registry.MustRegister(reqTotal, reqInFlight, reqDuration, cacheHits, cacheMisses, cacheSize, fetchTotal)
}

// CacheHit records a hit on the named cache partition.
func CacheHit(cache string) { cacheHits.WithLabelValues(cache).Inc() }

// CacheMiss records a miss on the named cache partition.
func CacheMiss(cache string) { cacheMisses.WithLabelValues(cache).Inc() }

// SetCacheSize gauges the entry count of the named cache partition.
func SetCacheSize(cache string, n int) { cacheSize.WithLabelValues(cache).Set(float64(n)) }

// FetchResult records the outcome ("ok" or "error") of a remote fetch of the
// given kind ("profile", "extended_property", "capability", ...).
func FetchResult(kind, outcome string) { fetchTotal.WithLabelValues(kind, outcome).Inc() }

// Middleware instruments HTTP requests
func Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqInFlight.Inc()
		defer reqInFlight.Dec()

		// Capture status code
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		dur := time.Since(start).Seconds()
		reqDuration.WithLabelValues(r.Method, route).Observe(dur)
		reqTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Handler returns a promhttp handler for the Registry
func Handler() http.Handler { return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}) }
