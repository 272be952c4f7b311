package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Faik442/dotnetblueprints/internal/infra/telemetry"
)

// unmatchedRoute labels requests that hit no registered route.
const unmatchedRoute = "unmatched"

// HTTPMetricsOptions configures the HTTP metrics middleware.
type HTTPMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// HTTPMetrics counts and times requests by route template.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTPMetrics registers the collectors, reusing ones already registered
// under the same names.
func NewHTTPMetrics(opts HTTPMetricsOptions) (*HTTPMetrics, error) {
	namespace, subsystem := opts.Namespace, opts.Subsystem
	if namespace == "" {
		namespace = "iam"
	}
	if subsystem == "" {
		subsystem = "http"
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	labels := []string{"method", "route", "status"}

	m := &HTTPMetrics{}
	var err error
	if m.requests, err = telemetry.Register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "HTTP requests by method, route template and status.",
	}, labels)); err != nil {
		return nil, fmt.Errorf("http requests collector: %w", err)
	}
	if m.duration, err = telemetry.Register(opts.Registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route template and status.",
		Buckets:   buckets,
	}, labels)); err != nil {
		return nil, fmt.Errorf("http duration collector: %w", err)
	}
	if m.inFlight, err = telemetry.Register(opts.Registerer, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "in_flight_requests",
		Help:      "HTTP requests currently being served.",
	})); err != nil {
		return nil, fmt.Errorf("http inflight collector: %w", err)
	}

	return m, nil
}

// Handler returns the middleware. A nil receiver yields a pass-through.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		c.Next()

		m.observe(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func (m *HTTPMetrics) observe(method, route string, status int, elapsed time.Duration) {
	// raw paths would make the route label unbounded
	if route == "" {
		route = unmatchedRoute
	}
	labels := prometheus.Labels{"method": method, "route": route, "status": strconv.Itoa(status)}
	m.requests.With(labels).Inc()
	m.duration.With(labels).Observe(elapsed.Seconds())
}
